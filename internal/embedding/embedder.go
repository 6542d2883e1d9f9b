package embedding

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nbai/nbai/internal/modelapi"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// NewEmbedder picks the implementation matching the client's provider.
func NewEmbedder(client *modelapi.Client, model string) (Embedder, error) {
	if client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	model = strings.TrimSpace(model)
	switch client.Provider() {
	case modelapi.ProviderGemini:
		if model == "" {
			model = "text-embedding-004"
		}
		return &GeminiEmbedder{client: client, model: model}, nil
	case modelapi.ProviderOpenAI:
		if model == "" {
			model = "text-embedding-3-small"
		}
		return &OpenAIEmbedder{client: client, model: model}, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", client.Provider())
	}
}

type GeminiEmbedder struct {
	client *modelapi.Client
	model  string
}

func (g *GeminiEmbedder) Model() string {
	return g.model
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiValues struct {
	Values []float32 `json:"values"`
}

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	modelRef := "models/" + strings.TrimPrefix(g.model, "models/")

	if len(texts) == 1 {
		var resp struct {
			Embedding geminiValues `json:"embedding"`
		}
		req := geminiEmbedRequest{Model: modelRef, Content: geminiContent{Parts: []geminiPart{{Text: texts[0]}}}}
		if err := g.client.PostJSON(ctx, g.client.GeminiURL(g.model, "embedContent"), req, &resp); err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("embed content: empty embedding")
		}
		return [][]float32{resp.Embedding.Values}, nil
	}

	requests := make([]geminiEmbedRequest, 0, len(texts))
	for _, text := range texts {
		requests = append(requests, geminiEmbedRequest{Model: modelRef, Content: geminiContent{Parts: []geminiPart{{Text: text}}}})
	}
	var resp struct {
		Embeddings []geminiValues `json:"embeddings"`
	}
	if err := g.client.PostJSON(ctx, g.client.GeminiURL(g.model, "batchEmbedContents"), map[string]any{"requests": requests}, &resp); err != nil {
		return nil, fmt.Errorf("batch embed contents: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("batch embed contents: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Values) == 0 {
			return nil, fmt.Errorf("batch embed contents: empty embedding at %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

type OpenAIEmbedder struct {
	client *modelapi.Client
	model  string
}

func (o *OpenAIEmbedder) Model() string {
	return o.model
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	payload := map[string]any{"model": o.model, "input": texts}
	if err := o.client.PostJSON(ctx, o.client.OpenAIURL("/v1/embeddings"), payload, &resp); err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("create embeddings: empty embedding at %d", i)
		}
		out[i] = d.Embedding
	}
	return out, nil
}
