package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-docs/corpusqa/internal/domain"
	"github.com/lumen-docs/corpusqa/internal/domain/chunk"
	"github.com/lumen-docs/corpusqa/internal/domain/record"
	"github.com/lumen-docs/corpusqa/internal/metrics"
	"github.com/lumen-docs/corpusqa/internal/parser"
)

// DefaultIndexBatchSize caps how many embedded chunks go into one index upsert.
const DefaultIndexBatchSize = 32

// Report summarizes one corpus ingestion run.
type Report struct {
	RunID         string   `json:"run_id"`
	Documents     int      `json:"documents"`
	Pages         int      `json:"pages"`
	Chunks        int      `json:"chunks"`
	ArtifactPaths []string `json:"artifact_paths"`
}

// Service runs the ingestion pipeline: parse, aggregate, materialize,
// chunk, embed, index.
type Service struct {
	artifacts ArtifactStore
	index     Index
	embedder  Embedder
	splitter  chunk.Splitter
	batchSize int
	locks     *keyedMutex
	logger    *zap.Logger
}

// New creates an ingestion service. batchSize <= 0 falls back to
// DefaultIndexBatchSize.
func New(
	artifacts ArtifactStore, index Index, embedder Embedder,
	splitter chunk.Splitter, batchSize int, logger *zap.Logger,
) *Service {
	if batchSize <= 0 {
		batchSize = DefaultIndexBatchSize
	}
	return &Service{
		artifacts: artifacts,
		index:     index,
		embedder:  embedder,
		splitter:  splitter,
		batchSize: batchSize,
		locks:     newKeyedMutex(),
		logger:    logger,
	}
}

// SubmitCorpus ingests a tabular corpus export end to end. The input
// is parsed fail-fast: any malformed row rejects the whole upload
// before anything is written. Re-submitting the same corpus is
// idempotent at the index level because entries are keyed by chunk
// fingerprint.
func (s *Service) SubmitCorpus(ctx context.Context, data []byte) (Report, error) {
	runID := uuid.NewString()
	start := time.Now()

	rows, err := parser.Parse(data)
	if err != nil {
		metrics.IngestRowsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Corpus rejected",
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return Report{}, fmt.Errorf("parse corpus: %w", err)
	}
	metrics.IngestRowsTotal.WithLabelValues("ok").Add(float64(len(rows)))

	aggs := record.Aggregate(rows)
	if len(aggs) == 0 {
		s.logger.Info("Corpus contained no rows",
			zap.String("run_id", runID),
		)
		return Report{RunID: runID}, nil
	}

	docNames := make([]string, 0, len(aggs))
	pages := 0
	for _, agg := range aggs {
		docNames = append(docNames, agg.DocName)
		pages += len(agg.Pages)
	}

	unlock := s.locks.lockAll(docNames)
	defer unlock()

	paths, err := s.artifacts.Materialize(aggs)
	if err != nil {
		return Report{}, fmt.Errorf("materialize artifacts: %w", err)
	}
	metrics.IngestArtifactsTotal.Add(float64(len(paths)))

	// The materialized artifacts are the hand-off to chunking: what gets
	// indexed is exactly what was written to disk.
	chunks, err := s.chunkArtifacts(paths)
	if err != nil {
		return Report{}, err
	}

	if err := s.indexChunks(ctx, chunks); err != nil {
		return Report{}, err
	}
	metrics.IngestChunksTotal.Add(float64(len(chunks)))

	s.logger.Info("Corpus ingested",
		zap.String("run_id", runID),
		zap.Int("documents", len(aggs)),
		zap.Int("pages", pages),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)),
	)

	return Report{
		RunID:         runID,
		Documents:     len(aggs),
		Pages:         pages,
		Chunks:        len(chunks),
		ArtifactPaths: paths,
	}, nil
}

// chunkArtifacts loads each written artifact and splits its page
// records in assembly order.
func (s *Service) chunkArtifacts(paths []string) ([]chunk.Chunk, error) {
	var chunks []chunk.Chunk
	for _, path := range paths {
		pages, err := s.artifacts.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load artifact: %w", err)
		}
		for _, page := range pages {
			for c := range s.splitter.Split(page) {
				chunks = append(chunks, c)
			}
		}
	}
	return chunks, nil
}

// indexChunks embeds and upserts chunks in batches. Each batch is
// upserted as soon as its vectors arrive, so a mid-run failure leaves
// earlier batches indexed; fingerprint keying makes the retry safe.
func (s *Service) indexChunks(ctx context.Context, chunks []chunk.Chunk) error {
	for offset := 0; offset < len(chunks); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		result, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", offset, err)
		}
		if len(result.Embeddings) != len(batch) {
			return fmt.Errorf(
				"embed batch at %d: got %d vectors for %d chunks: %w",
				offset, len(result.Embeddings), len(batch), domain.ErrEmbeddingProvider,
			)
		}

		entries := make([]domain.IndexEntry, len(batch))
		for i, c := range batch {
			entries[i] = domain.IndexEntry{Chunk: c, Embedding: result.Embeddings[i]}
		}

		if err := s.index.Upsert(ctx, entries); err != nil {
			return fmt.Errorf("index batch at %d: %w", offset, err)
		}
	}
	return nil
}
