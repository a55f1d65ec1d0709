package ingest

import (
	"context"

	"github.com/lumen-docs/corpusqa/internal/domain"
	"github.com/lumen-docs/corpusqa/internal/domain/record"
)

// ArtifactStore persists per-document page aggregates as JSON files
// and reads them back as the chunker's input.
type ArtifactStore interface {
	Materialize(aggs []record.DocumentAggregate) ([]string, error)
	Load(path string) ([]record.PageRecord, error)
}

// Index stores embedded chunks keyed by their content fingerprint.
type Index interface {
	Upsert(ctx context.Context, entries []domain.IndexEntry) error
}

// Embedder vectorizes chunk text in batches.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
