package domain

import "github.com/lumen-docs/corpusqa/internal/domain/chunk"

// RetrievedChunk is one similarity-search hit with its source attribution.
type RetrievedChunk struct {
	Content     string
	DocName     string
	Page        int
	StartOffset int
	Similarity  float32
}

// IndexEntry pairs a chunk with its embedding for upsert into the
// similarity index. The embedding must be the embedding of Chunk.Content.
type IndexEntry struct {
	Chunk     chunk.Chunk
	Embedding []float32
}
