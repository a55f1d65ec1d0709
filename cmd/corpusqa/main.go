package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/lumen-docs/corpusqa/internal/config"
	"github.com/lumen-docs/corpusqa/internal/domain"
	"github.com/lumen-docs/corpusqa/internal/domain/chunk"
	logpkg "github.com/lumen-docs/corpusqa/internal/logger"
	"github.com/lumen-docs/corpusqa/internal/metrics"
	artifactrepo "github.com/lumen-docs/corpusqa/internal/repository/artifact"
	indexrepo "github.com/lumen-docs/corpusqa/internal/repository/index"
	chiTransport "github.com/lumen-docs/corpusqa/internal/transport/chi"
	openaiTransport "github.com/lumen-docs/corpusqa/internal/transport/openai"
	answeruc "github.com/lumen-docs/corpusqa/internal/usecase/answer"
	embeddinguc "github.com/lumen-docs/corpusqa/internal/usecase/embedding"
	healthuc "github.com/lumen-docs/corpusqa/internal/usecase/health"
	ingestuc "github.com/lumen-docs/corpusqa/internal/usecase/ingest"
	"github.com/lumen-docs/corpusqa/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting corpusqa API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("artifact_dir", cfg.Storage.ArtifactDir),
		zap.String("index_dir", cfg.Storage.IndexDir),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterModelMetrics()
	metrics.RegisterIngestMetrics()

	// Build the embedder chain — composition root
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		MaxRetries: cfg.Embedding.MaxRetries,
		Logger:     logger,
	})
	embedder := embeddinguc.NewInstrumentedEmbedder(
		baseEmbedder, "openai", cfg.Embedding.Model, 0, logger,
	)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:     cfg.Generation.APIKey,
		BaseURL:    cfg.Generation.BaseURL,
		Model:      cfg.Generation.Model,
		Timeout:    time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		MaxRetries: cfg.Generation.MaxRetries,
		Logger:     logger,
	})

	// Open the persistent similarity index. All vectors are computed
	// up front, so the embedding func only covers chromem's internal
	// fallback paths.
	indexRepo, err := indexrepo.Open(
		cfg.Storage.IndexDir, cfg.Storage.Collection,
		embeddingFuncAdapter(embedder),
	)
	if err != nil {
		logger.Fatal("Failed to open similarity index", zap.Error(err))
	}
	logger.Info("Similarity index opened",
		zap.String("collection", cfg.Storage.Collection),
		zap.Int("entries", indexRepo.Count()),
	)

	artifactRepo := artifactrepo.New(cfg.Storage.ArtifactDir)

	splitter, err := chunk.NewSplitter(cfg.Chunking.Window, cfg.Chunking.Overlap)
	if err != nil {
		logger.Fatal("Invalid chunking config", zap.Error(err))
	}

	// Use case services
	ingestSvc := ingestuc.New(
		artifactRepo, indexRepo, embedder, splitter,
		cfg.Embedding.BatchSize, logger,
	)
	answerSvc := answeruc.New(
		indexRepo, embedder, generator,
		cfg.Retrieval.TopK, logger,
	)
	healthSvc := healthuc.New(indexRepo, newEmbeddingHealthChecker(embedder))

	// HTTP server
	server := chiTransport.NewServer(ingestSvc, answerSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embeddingFuncAdapter exposes a domain.Embedder as a chromem.EmbeddingFunc.
func embeddingFuncAdapter(embedder domain.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		res, err := embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
		return res.Embedding, nil
	}
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
