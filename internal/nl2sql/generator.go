package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/nbai/nbai/internal/modelapi"
)

// Generator performs a single non-conversational completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

type GeneratorConfig struct {
	Model       string
	Temperature float64
}

func NewGenerator(client *modelapi.Client, cfg GeneratorConfig) (Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	model := strings.TrimSpace(cfg.Model)
	switch client.Provider() {
	case modelapi.ProviderGemini:
		if model == "" {
			model = "gemini-2.5-flash"
		}
		return &GeminiGenerator{client: client, model: model, temperature: cfg.Temperature}, nil
	case modelapi.ProviderOpenAI:
		if model == "" {
			model = "gpt-5"
		}
		return &OpenAIGenerator{client: client, model: model, temperature: cfg.Temperature}, nil
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", client.Provider())
	}
}

type GeminiGenerator struct {
	client      *modelapi.Client
	model       string
	temperature float64
}

func (g *GeminiGenerator) Model() string {
	return g.model
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role"`
		Parts []part `json:"parts"`
	}
	payload := map[string]any{
		"contents": []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		"generationConfig": map[string]any{
			"temperature": g.temperature,
		},
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := g.client.PostJSON(ctx, g.client.GeminiURL(g.model, "generateContent"), payload, &resp); err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content")
	}
	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}
