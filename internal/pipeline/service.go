package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nbai/nbai/internal/observability"
	"github.com/nbai/nbai/internal/query"
	"github.com/nbai/nbai/internal/schema"
)

const (
	StageRetrieval  = "retrieval"
	StageEnrichment = "enrichment"
	StageSynthesis  = "synthesis"
	StageExecution  = "execution"
)

type TableSelector interface {
	Select(ctx context.Context, question string, topK int) ([]string, error)
}

type SchemaEnricher interface {
	Enrich(ctx context.Context, tableNames []string) (string, error)
}

type SQLSynthesizer interface {
	Synthesize(ctx context.Context, schema, question string) (string, error)
}

type QueryExecutor interface {
	Execute(ctx context.Context, statement string) (query.Result, error)
}

type Status string

const (
	StatusAnswered  Status = "answered"
	StatusNoResults Status = "no_results"
	StatusError     Status = "error"
)

// Answer is what get_nba_stats hands back to the conversational layer.
type Answer struct {
	Status    Status   `json:"status"`
	Message   string   `json:"message,omitempty"`
	Code      string   `json:"code,omitempty"`
	Tables    []string `json:"tables,omitempty"`
	SQL       string   `json:"sql,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	Rows      [][]any  `json:"rows,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Text renders the answer the way the tool reports it: a markdown table of
// rows, the no-results sentinel, or the generic error message.
func (a Answer) Text() string {
	if a.Status != StatusAnswered {
		return a.Message
	}
	cells := make([][]string, len(a.Rows))
	for i, row := range a.Rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = schema.FormatValue(v)
		}
	}
	text := schema.MarkdownTable(a.Columns, cells)
	if a.Truncated {
		text += fmt.Sprintf("\n(showing the first %d rows)", len(a.Rows))
	}
	return text
}

type Config struct {
	Selector    TableSelector
	Enricher    SchemaEnricher
	Synthesizer SQLSynthesizer
	Executor    QueryExecutor
	TopK        int
	Logger      *slog.Logger
}

type Service struct {
	selector    TableSelector
	enricher    SchemaEnricher
	synthesizer SQLSynthesizer
	executor    QueryExecutor
	topK        int
	logger      *slog.Logger
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Selector == nil || cfg.Enricher == nil || cfg.Synthesizer == nil || cfg.Executor == nil {
		return nil, fmt.Errorf("selector, enricher, synthesizer and executor are required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 8
	}
	return &Service{
		selector:    cfg.Selector,
		enricher:    cfg.Enricher,
		synthesizer: cfg.Synthesizer,
		executor:    cfg.Executor,
		topK:        topK,
		logger:      observability.LoggerOrDiscard(cfg.Logger),
	}, nil
}

// Run answers question in four sequential stages. Failures come back as
// *RetrievalError, *EnrichmentError, *SynthesisError or *ExecutionError.
// The returned Answer carries whatever stages completed.
func (s *Service) Run(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	answer := Answer{}

	start := time.Now()
	tables, err := s.selector.Select(ctx, question, s.topK)
	observability.ObserveStage(StageRetrieval, time.Since(start))
	if err != nil {
		return answer, &RetrievalError{Err: err}
	}
	answer.Tables = tables
	observability.ObserveSelectedTables(tables)

	start = time.Now()
	schemaText, err := s.enricher.Enrich(ctx, tables)
	observability.ObserveStage(StageEnrichment, time.Since(start))
	if err != nil {
		return answer, &EnrichmentError{Tables: tables, Err: err}
	}
	if strings.TrimSpace(schemaText) == "" {
		return answer, &EnrichmentError{Tables: tables, Err: errors.New("no schema context for selected tables")}
	}

	start = time.Now()
	statement, err := s.synthesizer.Synthesize(ctx, schemaText, question)
	observability.ObserveStage(StageSynthesis, time.Since(start))
	if err != nil {
		return answer, &SynthesisError{Err: err}
	}
	answer.SQL = statement

	start = time.Now()
	result, err := s.executor.Execute(ctx, statement)
	observability.ObserveStage(StageExecution, time.Since(start))
	if err != nil {
		return answer, &ExecutionError{Statement: statement, Err: err}
	}
	observability.ObserveQueryRows(len(result.Rows))

	answer.Columns = result.Columns
	if result.Empty() {
		answer.Status = StatusNoResults
		answer.Message = MessageNoResults
		return answer, nil
	}
	answer.Status = StatusAnswered
	answer.Rows = result.Rows
	answer.Truncated = result.Truncated
	return answer, nil
}

// GetNBAStats is the tool entry point. It never returns an error: failures
// are logged with their cause and reported with a generic message.
func (s *Service) GetNBAStats(ctx context.Context, question string) Answer {
	traceID := observability.TraceIDFromContext(ctx)
	s.logger.InfoContext(ctx, "get_nba_stats", slog.String("trace_id", traceID), slog.String("question", question))

	answer, err := s.Run(ctx, question)
	if err == nil {
		outcome := observability.OutcomeAnswered
		if answer.Status == StatusNoResults {
			outcome = observability.OutcomeNoResults
		}
		observability.ObserveStatsOutcome(outcome)
		s.logger.InfoContext(ctx, "get_nba_stats_completed",
			slog.String("trace_id", traceID),
			slog.String("status", string(answer.Status)),
			slog.Any("tables", answer.Tables),
			slog.Int("rows", len(answer.Rows)),
		)
		return answer
	}

	failure := Classify(err)
	observability.ObserveStatsOutcome(failure.Outcome)
	attrs := []any{
		slog.String("trace_id", traceID),
		slog.String("stage", failure.Stage),
		slog.String("code", failure.Code),
		slog.String("error", err.Error()),
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		attrs = append(attrs, slog.String("sql", execErr.Statement))
	}
	s.logger.ErrorContext(ctx, "get_nba_stats_failed", attrs...)

	answer.Status = StatusError
	answer.Code = failure.Code
	answer.Message = failure.Message
	answer.Columns = nil
	answer.Rows = nil
	return answer
}
