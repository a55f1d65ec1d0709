package answer

import (
	"context"

	"github.com/lumen-docs/corpusqa/internal/domain"
)

// Index retrieves the closest indexed chunks for a query vector.
type Index interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]domain.RetrievedChunk, error)
}

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator produces the final answer text from a composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
