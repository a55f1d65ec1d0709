package corpusqa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_SubmitCorpus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/corpus" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "pagenum,doc_name,text\n" {
			t.Errorf("body not forwarded: %q", body)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(IngestReport{RunID: "r1", Documents: 1})
	}))
	defer server.Close()

	c := New(server.URL)
	report, err := c.SubmitCorpus(context.Background(), []byte("pagenum,doc_name,text\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RunID != "r1" || report.Documents != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestClient_Ask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ask" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["query"] != "what?" {
			t.Errorf("unexpected query: %q", req["query"])
		}
		_ = json.NewEncoder(w).Encode(Answer{
			Response: "this.",
			Sources:  []Source{{DocName: "a.pdf", Page: 2, Similarity: 0.8}},
		})
	}))
	defer server.Close()

	c := New(server.URL)
	ans, err := c.Ask(context.Background(), "what?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Response != "this." || len(ans.Sources) != 1 {
		t.Errorf("unexpected answer: %+v", ans)
	}
}

func TestClient_SendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(Answer{Response: "ok"})
	}))
	defer server.Close()

	c := New(server.URL, WithAPIKey("sk-test"))
	if _, err := c.Ask(context.Background(), "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "validation_failed",
			"message": `column "text" not found`,
		})
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.SubmitCorpus(context.Background(), []byte("bad"))
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "validation_failed" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestClient_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.Ask(context.Background(), "q")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Code != "unknown" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}
