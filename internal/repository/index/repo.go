// Package index adapts the persistent chromem-go vector store to the
// similarity-index contract of the ingestion and query paths.
package index

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/lumen-docs/corpusqa/internal/domain"
)

// Metadata keys stored alongside each index entry.
const (
	metaDocument = "document"
	metaPage     = "page"
	metaOffset   = "offset"
)

// Repo is the open handle to one named collection of the on-disk index.
// It is opened once at startup and shared by the ingestion and query paths;
// chromem serializes access to the collection internally.
type Repo struct {
	db   *chromem.DB
	col  *chromem.Collection
	path string
}

// Open opens (or creates) the persistent index at path and resolves the
// named collection. embed is only consulted by the underlying store when an
// entry or query arrives without a precomputed vector, which this repository
// never does; it is wired so the collection carries a consistent embedding
// function regardless.
func Open(path, collection string, embed chromem.EmbeddingFunc) (*Repo, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open index at %s: %w: %w", path, domain.ErrIndexIO, err)
	}
	col, err := db.GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w: %w", collection, domain.ErrIndexIO, err)
	}
	return &Repo{db: db, col: col, path: path}, nil
}

// Upsert writes entries keyed by chunk fingerprint. Re-indexing identical
// content replaces the prior entry instead of duplicating it.
func (r *Repo) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.Chunk.Fingerprint(),
			Content:   e.Chunk.Content,
			Embedding: e.Embedding,
			Metadata: map[string]string{
				metaDocument: e.Chunk.DocName,
				metaPage:     strconv.Itoa(e.Chunk.Page),
				metaOffset:   strconv.Itoa(e.Chunk.StartOffset),
			},
		}
	}

	if err := r.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("upsert %d entries: %w: %w", len(entries), domain.ErrIndexIO, err)
	}
	return nil
}

// Query returns up to topK entries ranked by similarity to the embedding.
// An empty collection yields an empty result, not an error.
func (r *Repo) Query(ctx context.Context, embedding []float32, topK int) ([]domain.RetrievedChunk, error) {
	count := r.col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := r.col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search (top %d): %w: %w", topK, domain.ErrIndexIO, err)
	}

	chunks := make([]domain.RetrievedChunk, len(results))
	for i, res := range results {
		page, _ := strconv.Atoi(res.Metadata[metaPage])
		offset, _ := strconv.Atoi(res.Metadata[metaOffset])
		chunks[i] = domain.RetrievedChunk{
			Content:     res.Content,
			DocName:     res.Metadata[metaDocument],
			Page:        page,
			StartOffset: offset,
			Similarity:  res.Similarity,
		}
	}
	return chunks, nil
}

// Count returns the number of entries in the collection.
func (r *Repo) Count() int {
	return r.col.Count()
}

// Ping verifies the index storage directory is still reachable.
func (r *Repo) Ping(_ context.Context) error {
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("index path %s: %w: %w", r.path, domain.ErrIndexIO, err)
	}
	return nil
}
