// Package record holds the page-level data model of the ingestion pipeline:
// tabular rows, per-page records, and per-document aggregates.
package record

// Row is one tabular input row after type validation.
type Row struct {
	DocName string
	PageNum int
	Text    string
}

// PageRecord is the page-level unit of a materialized document.
// Immutable once a document aggregate has been materialized.
type PageRecord struct {
	DocName string `json:"doc_name"`
	PageNum int    `json:"pagenum"`
	Text    string `json:"text"`
}

// DocumentAggregate holds the page records of one document in assembly order.
// Assembly order follows input row order, not page number.
type DocumentAggregate struct {
	DocName string
	Pages   []PageRecord
}

// Aggregate folds rows into per-document aggregates. Rows sharing a
// (doc_name, pagenum) key are merged into one PageRecord whose text is the
// space-joined concatenation of the rows' text values in input order.
// Aggregates are returned in first-seen document order.
func Aggregate(rows []Row) []DocumentAggregate {
	byName := make(map[string]int)
	var aggs []DocumentAggregate

	for _, row := range rows {
		i, ok := byName[row.DocName]
		if !ok {
			i = len(aggs)
			byName[row.DocName] = i
			aggs = append(aggs, DocumentAggregate{DocName: row.DocName})
		}

		pages := aggs[i].Pages
		merged := false
		for j := range pages {
			if pages[j].PageNum == row.PageNum {
				pages[j].Text += " " + row.Text
				merged = true
				break
			}
		}
		if !merged {
			aggs[i].Pages = append(pages, PageRecord{
				DocName: row.DocName,
				PageNum: row.PageNum,
				Text:    row.Text,
			})
		}
	}

	return aggs
}
