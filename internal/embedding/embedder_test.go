package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nbai/nbai/internal/modelapi"
)

func TestGeminiEmbedderSingleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/text-embedding-004:embedContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("x-goog-api-key = %q", r.Header.Get("x-goog-api-key"))
		}
		var body struct {
			Model   string `json:"model"`
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "models/text-embedding-004" || body.Content.Parts[0].Text != "who scored most?" {
			t.Errorf("body = %+v", body)
		}
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer srv.Close()

	embedder := newTestEmbedder(t, modelapi.ProviderGemini, srv.URL, "")
	vectors, err := embedder.Embed(context.Background(), []string{"who scored most?"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 3 || vectors[0][2] != 0.3 {
		t.Fatalf("Embed() = %v", vectors)
	}
}

func TestGeminiEmbedderBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":batchEmbedContents") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Requests []json.RawMessage `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Requests) != 2 {
			t.Errorf("requests = %d", len(body.Requests))
		}
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,0]},{"values":[0,1]}]}`))
	}))
	defer srv.Close()

	embedder := newTestEmbedder(t, modelapi.ProviderGemini, srv.URL, "")
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || vectors[1][1] != 1 {
		t.Fatalf("Embed() = %v", vectors)
	}
}

func TestGeminiEmbedderRejectsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,0]}]}`))
	}))
	defer srv.Close()

	embedder := newTestEmbedder(t, modelapi.ProviderGemini, srv.URL, "")
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	embedder := newTestEmbedder(t, modelapi.ProviderOpenAI, srv.URL, "text-embedding-3-small")
	if embedder.Model() != "text-embedding-3-small" {
		t.Fatalf("Model() = %q", embedder.Model())
	}
	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("Embed() = %v", vectors)
	}
}

func TestEmbedderSurfacesHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	embedder := newTestEmbedder(t, modelapi.ProviderGemini, srv.URL, "")
	if _, err := embedder.Embed(context.Background(), []string{"q"}); err == nil {
		t.Fatal("expected HTTP failure")
	}
}

func newTestEmbedder(t *testing.T, provider, baseURL, model string) Embedder {
	t.Helper()
	client, err := modelapi.NewClient(modelapi.Settings{Provider: provider, BaseURL: baseURL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	embedder, err := NewEmbedder(client, model)
	if err != nil {
		t.Fatalf("NewEmbedder() error = %v", err)
	}
	return embedder
}
