// Package modelapi holds the HTTP plumbing shared by the embedding and
// generation clients for Gemini and OpenAI-compatible endpoints.
package modelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nbai/nbai/internal/config"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultOpenAIBaseURL = "https://api.openai.com"

	maxResponseBytes = 8 << 20
)

type Settings struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

func SettingsFromConfig(cfg config.AIConfig) Settings {
	return Settings{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Timeout:  cfg.Timeout,
	}
}

type Client struct {
	provider string
	baseURL  string
	apiKey   string
	http     *http.Client
}

func NewClient(settings Settings) (*Client, error) {
	provider := strings.ToLower(strings.TrimSpace(settings.Provider))
	if provider == "" {
		provider = ProviderGemini
	}
	baseURL := strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	switch provider {
	case ProviderGemini:
		if baseURL == "" {
			baseURL = DefaultGeminiBaseURL
		}
	case ProviderOpenAI:
		if baseURL == "" {
			baseURL = DefaultOpenAIBaseURL
		}
	default:
		return nil, fmt.Errorf("unsupported model provider %q", settings.Provider)
	}
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		provider: provider,
		baseURL:  baseURL,
		apiKey:   strings.TrimSpace(settings.APIKey),
		http:     &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Provider() string {
	return c.provider
}

// GeminiURL builds models/{model}:{method}. The key travels in the
// x-goog-api-key header so it never appears in URL-bearing errors.
func (c *Client) GeminiURL(model, method string) string {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	return fmt.Sprintf("%s/v1beta/models/%s:%s", c.baseURL, url.PathEscape(model), method)
}

func (c *Client) OpenAIURL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// PostJSON sends payload and decodes a 2xx response into out. Non-2xx
// responses become errors carrying a truncated copy of the body.
func (c *Client) PostJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch c.provider {
	case ProviderOpenAI:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	case ProviderGemini:
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response body: %w", c.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Provider: c.provider, StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.provider, err)
	}
	return nil
}

type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
