package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nbai/nbai/internal/catalog"
	"github.com/nbai/nbai/internal/database"
	"github.com/nbai/nbai/internal/observability"
)

const (
	DefaultSampleRows = 5
	blockSeparator    = "\n---\n"
)

// Snippet is the prompt context for one table. It is rebuilt on every call.
type Snippet struct {
	TableName   string
	Definition  string
	Columns     []string
	ExampleRows [][]string
}

func (s Snippet) Format() string {
	return fmt.Sprintf("Table: `%s`\nSchema: %s\nExamples:\n%s\n", s.TableName, s.Definition, MarkdownTable(s.Columns, s.ExampleRows))
}

type Enricher struct {
	opener     database.Opener
	sampleRows int
	logger     *slog.Logger
}

func NewEnricher(opener database.Opener, sampleRows int, logger *slog.Logger) (*Enricher, error) {
	if opener == nil {
		return nil, fmt.Errorf("database opener is required")
	}
	if sampleRows < 0 {
		return nil, fmt.Errorf("sample rows must be >= 0")
	}
	return &Enricher{opener: opener, sampleRows: sampleRows, logger: observability.LoggerOrDiscard(logger)}, nil
}

// Enrich formats one block per table joined by "---" lines. Any failure
// discards the whole batch; an empty input yields an empty string.
func (e *Enricher) Enrich(ctx context.Context, tableNames []string) (string, error) {
	snippets, err := e.Snippets(ctx, tableNames)
	if err != nil {
		return "", err
	}
	blocks := make([]string, len(snippets))
	for i, s := range snippets {
		blocks[i] = s.Format()
	}
	return strings.Join(blocks, blockSeparator), nil
}

func (e *Enricher) Snippets(ctx context.Context, tableNames []string) ([]Snippet, error) {
	if len(tableNames) == 0 {
		return nil, nil
	}
	for _, name := range tableNames {
		if !catalog.Known(name) {
			return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownTable, name)
		}
	}

	db, err := e.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	dialect := e.opener.Dialect()
	snippets := make([]Snippet, 0, len(tableNames))
	for _, name := range tableNames {
		definition, err := dialect.TableDefinition(ctx, db, name)
		if err != nil {
			return nil, err
		}
		columns, rows, err := e.sample(ctx, db, dialect, name)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, Snippet{TableName: name, Definition: definition, Columns: columns, ExampleRows: rows})
	}

	e.logger.DebugContext(ctx, "schema_enriched",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.Int("tables", len(snippets)),
	)
	return snippets, nil
}

func (e *Enricher) sample(ctx context.Context, db *sql.DB, dialect database.Dialect, table string) ([]string, [][]string, error) {
	rows, err := db.QueryContext(ctx, dialect.SampleRowsQuery(table, e.sampleRows))
	if err != nil {
		return nil, nil, fmt.Errorf("query sample rows of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("sample columns of %q: %w", table, err)
	}
	out := make([][]string, 0, e.sampleRows)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, nil, fmt.Errorf("scan sample row of %q: %w", table, err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = FormatValue(v)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate sample rows of %q: %w", table, err)
	}
	return columns, out, nil
}
