package parser

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/lumen-docs/corpusqa/internal/domain"
	"github.com/lumen-docs/corpusqa/internal/domain/record"
)

// ParseXLSX decodes the first sheet of an XLSX workbook. Row 1 is the header.
func ParseXLSX(r io.Reader) ([]record.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets: %w", domain.ErrSchema)
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty sheet %q: %w", sheets[0], domain.ErrSchema)
	}

	cols, err := columnIndex(raw[0])
	if err != nil {
		return nil, err
	}

	var rows []record.Row
	for i, rec := range raw[1:] {
		if len(rec) == 0 {
			continue
		}
		row, err := buildRow(rec, cols, i+2)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
