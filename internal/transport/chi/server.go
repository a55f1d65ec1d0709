package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lumen-docs/corpusqa/internal/domain"
	answeruc "github.com/lumen-docs/corpusqa/internal/usecase/answer"
	healthuc "github.com/lumen-docs/corpusqa/internal/usecase/health"
	ingestuc "github.com/lumen-docs/corpusqa/internal/usecase/ingest"
)

// maxUploadBytes bounds a corpus upload body.
const maxUploadBytes = 64 << 20

// ErrorCode identifies an error class in API responses.
type ErrorCode string

const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeEmbeddingProvider  ErrorCode = "embedding_provider_error"
	CodeGenerationProvider ErrorCode = "generation_provider_error"
	CodeIndexUnavailable   ErrorCode = "index_unavailable"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AskRequest is the question payload for POST /ask.
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse carries the composed answer and its supporting chunks.
type AskResponse struct {
	Response string       `json:"response"`
	Sources  []SourceItem `json:"sources"`
}

// SourceItem attributes one retrieved chunk.
type SourceItem struct {
	DocName     string  `json:"doc_name"`
	Page        int     `json:"pagenum"`
	StartOffset int     `json:"start_offset"`
	Similarity  float32 `json:"similarity"`
}

// Ingester runs the corpus ingestion pipeline.
type Ingester interface {
	SubmitCorpus(ctx context.Context, data []byte) (ingestuc.Report, error)
}

// Answerer answers questions over the indexed corpus.
type Answerer interface {
	Ask(ctx context.Context, query string) (answeruc.Answer, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the ingestion and question-answering API over HTTP.
type Server struct {
	ingest        Ingester
	answer        Answerer
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ingest Ingester, answer Answerer, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		ingest: ingest,
		answer: answer,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrSchema, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrParse, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, CodeEmbeddingProvider),
		sentinelHandler(domain.ErrGenerationProvider, http.StatusBadGateway, CodeGenerationProvider),
		sentinelHandler(domain.ErrIndexIO, http.StatusInternalServerError, CodeIndexUnavailable),
	}
	return s
}

// SubmitCorpus handles POST /corpus. The body is either a raw CSV/XLSX
// export or a multipart form with a "file" part.
func (s *Server) SubmitCorpus(w http.ResponseWriter, r *http.Request) {
	data, err := readCorpusBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid upload: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Empty upload body")
		return
	}

	report, err := s.ingest.SubmitCorpus(r.Context(), data)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "Query is required")
		return
	}

	ans, err := s.answer.Ask(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	sources := make([]SourceItem, len(ans.Sources))
	for i, src := range ans.Sources {
		sources[i] = SourceItem{
			DocName:     src.DocName,
			Page:        src.Page,
			StartOffset: src.StartOffset,
			Similarity:  src.Similarity,
		}
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Response: ans.Text,
		Sources:  sources,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// readCorpusBody extracts the tabular payload from either a multipart
// form "file" part or the raw request body.
func readCorpusBody(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("read form file: %w", err)
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing
// internals. Input validation errors pass through in full so callers
// can fix the offending row; provider and index failures collapse to
// the sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrSchema) || errors.Is(err, domain.ErrParse) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrEmbeddingProvider,
		domain.ErrGenerationProvider,
		domain.ErrIndexIO,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
