// Package parser decodes tabular page-text exports into typed rows.
// Two formats are accepted: CSV and XLSX workbooks. Both carry the same
// required columns: pagenum, doc_name, text.
package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lumen-docs/corpusqa/internal/domain"
	"github.com/lumen-docs/corpusqa/internal/domain/record"
)

// Required column names.
const (
	ColPageNum = "pagenum"
	ColDocName = "doc_name"
	ColText    = "text"
)

// xlsxMagic is the ZIP signature an XLSX workbook starts with.
var xlsxMagic = []byte{'P', 'K', 0x03, 0x04}

// Parse sniffs the payload format and decodes it into rows. The column set
// is validated before any row is processed; a bad page number aborts the
// whole call.
func Parse(data []byte) ([]record.Row, error) {
	if bytes.HasPrefix(data, xlsxMagic) {
		return ParseXLSX(bytes.NewReader(data))
	}
	return ParseCSV(bytes.NewReader(data))
}

// ParseCSV decodes a CSV export. The first record is the header.
func ParseCSV(r io.Reader) ([]record.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are tolerated, missing cells read as empty

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: %w", domain.ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []record.Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		row, err := buildRow(rec, cols, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// columnIndex maps the required columns to their header positions.
// Header names are matched case-insensitively with surrounding space
// (and a BOM on the first cell) ignored.
func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\uFEFF")
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, required := range []string{ColPageNum, ColDocName, ColText} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrSchema, strings.Join(missing, ", "))
	}
	return cols, nil
}

// buildRow converts one raw record into a typed row. Cells beyond the
// record's length read as empty.
func buildRow(rec []string, cols map[string]int, line int) (record.Row, error) {
	cell := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	pageNum, err := strconv.Atoi(strings.TrimSpace(cell(ColPageNum)))
	if err != nil {
		return record.Row{}, fmt.Errorf(
			"row %d: pagenum %q is not an integer: %w", line, cell(ColPageNum), domain.ErrParse,
		)
	}

	docName := cell(ColDocName)
	if docName == "" {
		return record.Row{}, fmt.Errorf("row %d: doc_name is empty: %w", line, domain.ErrParse)
	}
	if strings.ContainsAny(docName, `/\`) {
		return record.Row{}, fmt.Errorf(
			"row %d: doc_name %q contains a path separator: %w", line, docName, domain.ErrParse,
		)
	}

	return record.Row{
		DocName: docName,
		PageNum: pageNum,
		Text:    cell(ColText),
	}, nil
}
