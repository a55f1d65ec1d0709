package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-docs/corpusqa/internal/domain"
)

// promptTemplate grounds the model on retrieved context and instructs
// it to admit ignorance rather than invent an answer.
const promptTemplate = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the question. " +
	"If you don't know the answer, just say that you don't know. " +
	"Use three sentences maximum and keep the answer concise.\n" +
	"Question: %s \nContext: %s \nAnswer:"

// DefaultTopK is the retrieval depth when none is configured.
const DefaultTopK = 6

// Answer is the composed response with its supporting chunks.
type Answer struct {
	Text    string
	Sources []domain.RetrievedChunk
}

// Service answers questions over the indexed corpus.
type Service struct {
	index     Index
	embedder  Embedder
	generator Generator
	topK      int
	logger    *zap.Logger
}

// New creates an answering service. topK <= 0 falls back to DefaultTopK.
func New(index Index, embedder Embedder, generator Generator, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{
		index:     index,
		embedder:  embedder,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Ask embeds the question, retrieves the closest chunks, and composes
// a grounded answer. An empty index is not an error: generation still
// runs with empty context and the model declines on its own.
func (s *Service) Ask(ctx context.Context, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, fmt.Errorf("query must not be empty: %w", domain.ErrParse)
	}

	start := time.Now()

	embedded, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return Answer{}, fmt.Errorf("embed query: %w", err)
	}

	retrieved, err := s.index.Query(ctx, embedded.Embedding, s.topK)
	if err != nil {
		return Answer{}, fmt.Errorf("query index: %w", err)
	}

	prompt := composePrompt(query, retrieved)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Info("Question answered",
		zap.Int("retrieved", len(retrieved)),
		zap.Int("answer_chars", len(text)),
		zap.Duration("duration", time.Since(start)),
	)

	return Answer{Text: text, Sources: retrieved}, nil
}

// composePrompt joins the retrieved chunks in rank order, best match
// first, separated by blank lines.
func composePrompt(query string, retrieved []domain.RetrievedChunk) string {
	parts := make([]string, len(retrieved))
	for i, r := range retrieved {
		parts[i] = r.Content
	}
	return fmt.Sprintf(promptTemplate, query, strings.Join(parts, "\n\n"))
}
