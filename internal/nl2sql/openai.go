package nl2sql

import (
	"context"
	"fmt"

	"github.com/nbai/nbai/internal/modelapi"
)

type OpenAIGenerator struct {
	client      *modelapi.Client
	model       string
	temperature float64
}

func (o *OpenAIGenerator) Model() string {
	return o.model
}

func (o *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": o.temperature,
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := o.client.PostJSON(ctx, o.client.OpenAIURL("/v1/chat/completions"), payload, &parsed); err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
