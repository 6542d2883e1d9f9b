package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"
)

const (
	SQLite   = "sqlite"
	DuckDB   = "duckdb"
	Postgres = "postgres"
)

var ErrTableNotFound = errors.New("table not found")

// Dialect captures the per-engine differences the pipeline cares about.
type Dialect struct {
	Name       string
	DriverName string
}

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SQLite:
		return Dialect{Name: SQLite, DriverName: "sqlite3"}, nil
	case DuckDB:
		return Dialect{Name: DuckDB, DriverName: "duckdb"}, nil
	case Postgres:
		return Dialect{Name: Postgres, DriverName: "pgx"}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
}

// QuoteIdent double-quotes an identifier; all three engines accept that form.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) SampleRowsQuery(table string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdent(table), limit)
}

// ReadOnlyDSN rewrites dsn so the engine rejects writes at the connection level.
// In-memory databases are returned unchanged.
func (d Dialect) ReadOnlyDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	switch d.Name {
	case SQLite:
		if dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			return dsn
		}
		if !strings.HasPrefix(dsn, "file:") {
			path, params, hasParams := strings.Cut(dsn, "?")
			dsn = "file:" + sqliteURIPath.Replace(path)
			if hasParams {
				dsn += "?" + params
			}
		}
		return appendParam(dsn, "mode", "ro")
	case DuckDB:
		if dsn == "" || dsn == ":memory:" {
			return dsn
		}
		return appendParam(dsn, "access_mode", "READ_ONLY")
	case Postgres:
		if strings.Contains(dsn, "default_transaction_read_only") {
			return dsn
		}
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			return appendParam(dsn, "default_transaction_read_only", "on")
		}
		return strings.TrimSpace(dsn + " default_transaction_read_only=on")
	default:
		return dsn
	}
}

// sqliteURIPath escapes the characters SQLite treats specially in a file: URI path.
var sqliteURIPath = strings.NewReplacer("%", "%25", "#", "%23", " ", "%20")

func appendParam(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}

// TableDefinition returns the CREATE TABLE text for table. Lookups are
// parameterized; ErrTableNotFound is returned when the engine has no such table.
func (d Dialect) TableDefinition(ctx context.Context, db *sql.DB, table string) (string, error) {
	switch d.Name {
	case SQLite:
		return scanDefinition(ctx, db, table, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`)
	case DuckDB:
		return scanDefinition(ctx, db, table, `SELECT sql FROM duckdb_tables() WHERE table_name = ?`)
	case Postgres:
		return postgresDefinition(ctx, db, table)
	default:
		return "", fmt.Errorf("unsupported dialect %q", d.Name)
	}
}

func scanDefinition(ctx context.Context, db *sql.DB, table, query string) (string, error) {
	var definition sql.NullString
	if err := db.QueryRowContext(ctx, query, table).Scan(&definition); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %q", ErrTableNotFound, table)
		}
		return "", fmt.Errorf("query definition of %q: %w", table, err)
	}
	if !definition.Valid || strings.TrimSpace(definition.String) == "" {
		return "", fmt.Errorf("%w: %q has no definition", ErrTableNotFound, table)
	}
	return strings.TrimSpace(definition.String), nil
}

const postgresColumnsQuery = `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`

func postgresDefinition(ctx context.Context, db *sql.DB, table string) (string, error) {
	rows, err := db.QueryContext(ctx, postgresColumnsQuery, table)
	if err != nil {
		return "", fmt.Errorf("query columns of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return "", fmt.Errorf("scan column of %q: %w", table, err)
		}
		column := "  " + QuoteIdent(name) + " " + strings.ToUpper(dataType)
		if strings.EqualFold(nullable, "NO") {
			column += " NOT NULL"
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate columns of %q: %w", table, err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("%w: %q", ErrTableNotFound, table)
	}
	return "CREATE TABLE " + QuoteIdent(table) + " (\n" + strings.Join(columns, ",\n") + "\n)", nil
}
