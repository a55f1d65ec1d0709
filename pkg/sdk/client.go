// Package corpusqa provides a Go client for the corpusqa HTTP API.
package corpusqa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 2 * time.Minute

// Client is the corpusqa SDK entry point.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets the Bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IngestReport summarizes one corpus ingestion run.
type IngestReport struct {
	RunID         string   `json:"run_id"`
	Documents     int      `json:"documents"`
	Pages         int      `json:"pages"`
	Chunks        int      `json:"chunks"`
	ArtifactPaths []string `json:"artifact_paths"`
}

// Source attributes one retrieved chunk of an answer.
type Source struct {
	DocName     string  `json:"doc_name"`
	Page        int     `json:"pagenum"`
	StartOffset int     `json:"start_offset"`
	Similarity  float32 `json:"similarity"`
}

// Answer is a composed response with its supporting chunks.
type Answer struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("corpusqa: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// SubmitCorpus uploads a tabular corpus export (CSV or XLSX bytes)
// and returns the ingestion report.
func (c *Client) SubmitCorpus(ctx context.Context, data []byte) (IngestReport, error) {
	var report IngestReport
	err := c.do(ctx, http.MethodPost, "/api/v1/corpus", "application/octet-stream", bytes.NewReader(data), &report)
	if err != nil {
		return IngestReport{}, err
	}
	return report, nil
}

// Ask submits a question and returns the grounded answer.
func (c *Client) Ask(ctx context.Context, query string) (Answer, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return Answer{}, fmt.Errorf("corpusqa: encode request: %w", err)
	}

	var answer Answer
	if err := c.do(ctx, http.MethodPost, "/api/v1/ask", "application/json", bytes.NewReader(body), &answer); err != nil {
		return Answer{}, err
	}
	return answer, nil
}

// Health reports the server's component health checks.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("corpusqa: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("corpusqa: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("corpusqa: decode response: %w", err)
		}
	}
	return nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && json.Unmarshal(data, apiErr) == nil && apiErr.Message != "" {
		return apiErr
	}
	apiErr.Code = "unknown"
	apiErr.Message = http.StatusText(resp.StatusCode)
	return apiErr
}
