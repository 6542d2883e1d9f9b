package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nbai/nbai/internal/observability"
)

var ErrEmptySQL = errors.New("model returned empty SQL")

// Synthesizer turns a question plus schema context into one SQL statement.
// The statement is not validated here; execution is the validator.
type Synthesizer struct {
	generator Generator
	dialect   string
	logger    *slog.Logger
}

func NewSynthesizer(generator Generator, dialect string, logger *slog.Logger) (*Synthesizer, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	return &Synthesizer{generator: generator, dialect: dialect, logger: observability.LoggerOrDiscard(logger)}, nil
}

func (s *Synthesizer) Synthesize(ctx context.Context, schema, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is required")
	}
	raw, err := s.generator.Generate(ctx, BuildPrompt(s.dialect, schema, question))
	if err != nil {
		return "", err
	}
	statement := stripMarkdownSQL(raw)
	if statement == "" {
		return "", ErrEmptySQL
	}
	s.logger.DebugContext(ctx, "sql_generated",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("model", s.generator.Model()),
		slog.String("sql", statement),
	)
	return statement, nil
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		info := strings.TrimSpace(trimmed[:newline])
		if info == "" || !strings.ContainsAny(info, " \t;(") {
			trimmed = trimmed[newline+1:]
		}
	} else {
		trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "sql"), "SQL")
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
