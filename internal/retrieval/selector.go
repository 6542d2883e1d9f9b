package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/nbai/nbai/internal/embedding"
	"github.com/nbai/nbai/internal/observability"
)

const DefaultTopK = 8

type SnapshotLoader interface {
	Load(ctx context.Context) (embedding.Snapshot, error)
}

type QueryEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Match struct {
	TableName string  `json:"table_name"`
	Score     float64 `json:"score"`
}

type Selector struct {
	loader   SnapshotLoader
	embedder QueryEmbedder
	logger   *slog.Logger
}

func NewSelector(loader SnapshotLoader, embedder QueryEmbedder, logger *slog.Logger) (*Selector, error) {
	if loader == nil {
		return nil, fmt.Errorf("snapshot loader is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &Selector{loader: loader, embedder: embedder, logger: observability.LoggerOrDiscard(logger)}, nil
}

// Select returns the names of the topK tables most similar to question.
func (s *Selector) Select(ctx context.Context, question string, topK int) ([]string, error) {
	matches, err := s.Rank(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.TableName
	}
	return names, nil
}

// Rank is Select with similarity scores attached.
func (s *Selector) Rank(ctx context.Context, question string, topK int) ([]Match, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	snap, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedding snapshot: %w", err)
	}
	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed question: got %d vectors", len(vectors))
	}
	if dims := snap.Dimensions(); len(vectors[0]) != dims {
		return nil, fmt.Errorf("question embedding has %d dimensions, snapshot has %d", len(vectors[0]), dims)
	}

	matches := RankRecords(vectors[0], snap.Records, topK)
	s.logger.DebugContext(ctx, "tables_selected",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.Any("tables", matches),
	)
	return matches, nil
}

// RankRecords scores every record against query and keeps the topK best.
// Equal scores keep snapshot order.
func RankRecords(query []float32, records []embedding.Record, topK int) []Match {
	matches := make([]Match, len(records))
	for i, r := range records {
		matches[i] = Match{TableName: r.TableName, Score: CosineSimilarity(query, r.Vector)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK >= 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// CosineSimilarity returns 0 for zero-length or mismatched vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
