// Package artifact persists aggregated documents as on-disk JSON files,
// the hand-off format between aggregation and indexing.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lumen-docs/corpusqa/internal/domain/record"
)

// document is the artifact wire format: {"document": [ {doc_name,pagenum,text}, ... ]}.
type document struct {
	Document []record.PageRecord `json:"document"`
}

// Repo writes and reads per-document artifacts under a working directory.
type Repo struct {
	dir string
}

// New creates an artifact repository rooted at dir. The directory is
// created lazily on the first write.
func New(dir string) *Repo {
	return &Repo{dir: dir}
}

// Dir returns the working directory.
func (r *Repo) Dir() string { return r.dir }

// Materialize writes one artifact per aggregate, in aggregate order,
// overwriting any prior artifact for the same document name. Page records
// are written in assembly order. Returns the artifact paths produced.
func (r *Repo) Materialize(aggs []record.DocumentAggregate) ([]string, error) {
	if len(aggs) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", r.dir, err)
	}

	paths := make([]string, 0, len(aggs))
	for _, agg := range aggs {
		path := r.pathFor(agg.DocName)
		data, err := json.MarshalIndent(document{Document: agg.Pages}, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("marshal artifact for %q: %w", agg.DocName, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write artifact %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Load reads one artifact back into its page records.
func (r *Repo) Load(path string) ([]record.PageRecord, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return doc.Document, nil
}

func (r *Repo) pathFor(docName string) string {
	return filepath.Join(r.dir, docName+".json")
}
