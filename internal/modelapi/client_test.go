package modelapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientValidatesSettings(t *testing.T) {
	if _, err := NewClient(Settings{Provider: "bard", APIKey: "k"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
	if _, err := NewClient(Settings{Provider: ProviderGemini}); err == nil {
		t.Fatal("expected missing api key error")
	}
	c, err := NewClient(Settings{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.Provider() != ProviderGemini {
		t.Fatalf("Provider() = %q", c.Provider())
	}
}

func TestGeminiURL(t *testing.T) {
	c, err := NewClient(Settings{Provider: ProviderGemini, BaseURL: "http://gemini.local/", APIKey: "secret-key"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	got := c.GeminiURL("models/text-embedding-004", "embedContent")
	want := "http://gemini.local/v1beta/models/text-embedding-004:embedContent"
	if got != want {
		t.Fatalf("GeminiURL() = %q, want %q", got, want)
	}
}

func TestPostJSONSetsBearerForOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(Settings{Provider: ProviderOpenAI, BaseURL: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.PostJSON(context.Background(), c.OpenAIURL("/v1/anything"), map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if !out.OK {
		t.Fatal("expected decoded response")
	}
}

func TestPostJSONReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	c, err := NewClient(Settings{Provider: ProviderGemini, BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	err = c.PostJSON(context.Background(), c.GeminiURL("m", "generateContent"), map[string]string{}, &struct{}{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("PostJSON() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("StatusCode = %d", statusErr.StatusCode)
	}
	if len(statusErr.Body) > 520 {
		t.Fatalf("body not truncated: %d bytes", len(statusErr.Body))
	}
}

func TestPostJSONSendsGeminiKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "gemini-secret" {
			t.Errorf("x-goog-api-key = %q", got)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("RawQuery = %q, want empty", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("Authorization = %q, want empty", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient(Settings{Provider: ProviderGemini, BaseURL: srv.URL, APIKey: "gemini-secret"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if err := c.PostJSON(context.Background(), c.GeminiURL("m", "generateContent"), map[string]string{}, &struct{}{}); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
}

func TestPostJSONTransportErrorOmitsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	c, err := NewClient(Settings{Provider: ProviderGemini, BaseURL: baseURL, APIKey: "SECRET-KEY-123"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	err = c.PostJSON(context.Background(), c.GeminiURL("text-embedding-004", "embedContent"), map[string]string{}, &struct{}{})
	if err == nil {
		t.Fatal("expected transport error against closed server")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Fatalf("error leaks api key: %v", err)
	}
}
