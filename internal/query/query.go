package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nbai/nbai/internal/database"
	"github.com/nbai/nbai/internal/observability"
)

const DefaultMaxRows = 100

var ErrStatementNotAllowed = errors.New("statement not allowed")

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// Empty reports the no-results outcome, which is not an error.
func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

type Executor struct {
	opener  database.Opener
	maxRows int
	logger  *slog.Logger
}

func NewExecutor(opener database.Opener, maxRows int, logger *slog.Logger) (*Executor, error) {
	if opener == nil {
		return nil, fmt.Errorf("database opener is required")
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Executor{opener: opener, maxRows: maxRows, logger: observability.LoggerOrDiscard(logger)}, nil
}

// Execute runs exactly one read statement on a connection opened for this call.
func (e *Executor) Execute(ctx context.Context, statement string) (Result, error) {
	sqlText, err := Guard(statement)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	db, err := e.opener.Open(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	result := Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if len(result.Rows) == e.maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	result.Duration = time.Since(start)

	attrs := []any{
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.Int("rows", len(result.Rows)),
		slog.Bool("truncated", result.Truncated),
		slog.Duration("duration", result.Duration),
	}
	if !result.Empty() {
		first := make(map[string]any, len(columns))
		for i, c := range columns {
			first[c] = result.Rows[0][i]
		}
		attrs = append(attrs, slog.Any("first_row", first))
	}
	e.logger.DebugContext(ctx, "query_executed", attrs...)
	return result, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

// Guard returns the statement without leading comments or trailing semicolons,
// or ErrStatementNotAllowed when it is not a single SELECT or WITH query.
func Guard(statement string) (string, error) {
	sqlText := stripTrailingSemicolons(stripLeadingComments(statement))
	if !isAllowedSQL(sqlText) {
		return "", fmt.Errorf("%w: only SELECT and WITH queries may run", ErrStatementNotAllowed)
	}
	if hasMultipleStatements(sqlText) {
		return "", fmt.Errorf("%w: exactly one statement may run", ErrStatementNotAllowed)
	}
	return sqlText, nil
}

// isAllowedSQL looks past opening parentheses so "(SELECT ...) UNION (SELECT ...)"
// is accepted.
func isAllowedSQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimLeft(sqlText, "( \t\r\n"))
	if normalized == "" {
		return false
	}
	if strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with") {
		return true
	}
	return false
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func stripLeadingComments(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for {
		switch {
		case strings.HasPrefix(trimmed, "--"):
			newline := strings.IndexByte(trimmed, '\n')
			if newline < 0 {
				return ""
			}
			trimmed = strings.TrimSpace(trimmed[newline+1:])
		case strings.HasPrefix(trimmed, "/*"):
			end := strings.Index(trimmed, "*/")
			if end < 0 {
				return ""
			}
			trimmed = strings.TrimSpace(trimmed[end+2:])
		default:
			return trimmed
		}
	}
}

// hasMultipleStatements looks for a semicolon outside literals, quoted
// identifiers and comments.
func hasMultipleStatements(sqlText string) bool {
	for i := 0; i < len(sqlText); i++ {
		switch c := sqlText[i]; c {
		case '\'', '"', '`':
			end := strings.IndexByte(sqlText[i+1:], c)
			if end < 0 {
				return false
			}
			i += end + 1
		case '-':
			if i+1 < len(sqlText) && sqlText[i+1] == '-' {
				end := strings.IndexByte(sqlText[i:], '\n')
				if end < 0 {
					return false
				}
				i += end
			}
		case '/':
			if i+1 < len(sqlText) && sqlText[i+1] == '*' {
				end := strings.Index(sqlText[i+2:], "*/")
				if end < 0 {
					return false
				}
				i += end + 3
			}
		case ';':
			return strings.TrimSpace(stripLeadingComments(sqlText[i+1:])) != ""
		}
	}
	return false
}
