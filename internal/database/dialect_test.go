package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nbai/nbai/internal/config"
)

func TestDialectFor(t *testing.T) {
	cases := map[string]string{"sqlite": "sqlite3", "DuckDB": "duckdb", " postgres ": "pgx"}
	for name, driver := range cases {
		d, err := DialectFor(name)
		if err != nil {
			t.Fatalf("DialectFor(%q) error = %v", name, err)
		}
		if d.DriverName != driver {
			t.Fatalf("DialectFor(%q).DriverName = %q, want %q", name, d.DriverName, driver)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent("Player Per Game"); got != `"Player Per Game"` {
		t.Fatalf("QuoteIdent() = %s", got)
	}
	if got := QuoteIdent(`a"b`); got != `"a""b"` {
		t.Fatalf("QuoteIdent() = %s", got)
	}
}

func TestSampleRowsQuery(t *testing.T) {
	d, _ := DialectFor(SQLite)
	if got := d.SampleRowsQuery("End of Season Teams (Voting)", 5); got != `SELECT * FROM "End of Season Teams (Voting)" LIMIT 5` {
		t.Fatalf("SampleRowsQuery() = %s", got)
	}
}

func TestReadOnlyDSN(t *testing.T) {
	tests := []struct {
		driver string
		dsn    string
		want   string
	}{
		{SQLite, "nba_stats.db", "file:nba_stats.db?mode=ro"},
		{SQLite, "file:nba.db?cache=shared", "file:nba.db?cache=shared&mode=ro"},
		{SQLite, "file:nba.db?mode=ro", "file:nba.db?mode=ro"},
		{SQLite, ":memory:", ":memory:"},
		{SQLite, "/data/nba stats/nba#1.db?_busy_timeout=500", "file:/data/nba%20stats/nba%231.db?_busy_timeout=500&mode=ro"},
		{DuckDB, "/data/nba.duckdb", "/data/nba.duckdb?access_mode=READ_ONLY"},
		{DuckDB, "", ""},
		{Postgres, "postgres://u:p@db:5432/nba?sslmode=disable", "postgres://u:p@db:5432/nba?sslmode=disable&default_transaction_read_only=on"},
		{Postgres, "host=db dbname=nba", "host=db dbname=nba default_transaction_read_only=on"},
	}
	for _, tc := range tests {
		d, err := DialectFor(tc.driver)
		if err != nil {
			t.Fatalf("DialectFor() error = %v", err)
		}
		if got := d.ReadOnlyDSN(tc.dsn); got != tc.want {
			t.Fatalf("%s ReadOnlyDSN(%q) = %q, want %q", tc.driver, tc.dsn, got, tc.want)
		}
	}
}

func TestSQLiteTableDefinitionUsesParameter(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = \?`).
		WithArgs("Player Per Game").
		WillReturnRows(sqlmock.NewRows([]string{"sql"}).AddRow(`CREATE TABLE "Player Per Game" (player TEXT, pts_per_game REAL)`))

	d, _ := DialectFor(SQLite)
	got, err := d.TableDefinition(context.Background(), db, "Player Per Game")
	if err != nil {
		t.Fatalf("TableDefinition() error = %v", err)
	}
	if !strings.Contains(got, "pts_per_game") {
		t.Fatalf("TableDefinition() = %q", got)
	}
	assertSQLMock(t, mock)
}

func TestTableDefinitionMissingTable(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(`SELECT sql FROM sqlite_master`).
		WithArgs("Ghost").
		WillReturnRows(sqlmock.NewRows([]string{"sql"}))

	d, _ := DialectFor(SQLite)
	if _, err := d.TableDefinition(context.Background(), db, "Ghost"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("TableDefinition() error = %v, want ErrTableNotFound", err)
	}
	assertSQLMock(t, mock)
}

func TestPostgresTableDefinitionRendersCreateTable(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(`FROM information_schema.columns`).
		WithArgs("Team Summaries").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("season", "integer", "NO").
			AddRow("team", "text", "YES"))

	d, _ := DialectFor(Postgres)
	got, err := d.TableDefinition(context.Background(), db, "Team Summaries")
	if err != nil {
		t.Fatalf("TableDefinition() error = %v", err)
	}
	want := "CREATE TABLE \"Team Summaries\" (\n  \"season\" INTEGER NOT NULL,\n  \"team\" TEXT\n)"
	if got != want {
		t.Fatalf("TableDefinition() = %q, want %q", got, want)
	}
	assertSQLMock(t, mock)
}

func TestPostgresTableDefinitionMissingTable(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(`FROM information_schema.columns`).
		WithArgs("Ghost").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}))

	d, _ := DialectFor(Postgres)
	if _, err := d.TableDefinition(context.Background(), db, "Ghost"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("TableDefinition() error = %v, want ErrTableNotFound", err)
	}
	assertSQLMock(t, mock)
}

func TestDuckDBTableDefinitionAndReadOnlyOpener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nba.duckdb")
	writable, err := NewOpener(config.DatabaseConfig{Driver: DuckDB, DSN: path})
	if err != nil {
		t.Fatalf("NewOpener() error = %v", err)
	}
	db, err := writable.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE "Team Abbrev" (season INTEGER, team VARCHAR, abbreviation VARCHAR)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	readOnly, err := NewOpener(config.DatabaseConfig{Driver: DuckDB, DSN: path, ReadOnly: true})
	if err != nil {
		t.Fatalf("NewOpener() error = %v", err)
	}
	db, err = readOnly.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	definition, err := readOnly.Dialect().TableDefinition(context.Background(), db, "Team Abbrev")
	if err != nil {
		t.Fatalf("TableDefinition() error = %v", err)
	}
	if !strings.Contains(definition, "abbreviation") {
		t.Fatalf("TableDefinition() = %q", definition)
	}
	if _, err := db.Exec(`INSERT INTO "Team Abbrev" VALUES (2024, 'Boston Celtics', 'BOS')`); err == nil {
		t.Fatal("expected write to fail on a read-only connection")
	}
}

func TestSQLiteReadOnlyOpenerOnPathWithSpace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nba stats", "nba_stats.db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	writable, err := NewOpener(config.DatabaseConfig{Driver: SQLite, DSN: path})
	if err != nil {
		t.Fatalf("NewOpener() error = %v", err)
	}
	db, err := writable.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE "Player Per Game" (season INTEGER, player TEXT, pts_per_game REAL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO "Player Per Game" VALUES (2024, 'Luka Doncic', 33.9)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	readOnly, err := NewOpener(config.DatabaseConfig{Driver: SQLite, DSN: path, ReadOnly: true})
	if err != nil {
		t.Fatalf("NewOpener() error = %v", err)
	}
	db, err = readOnly.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	definition, err := readOnly.Dialect().TableDefinition(context.Background(), db, "Player Per Game")
	if err != nil {
		t.Fatalf("TableDefinition() error = %v", err)
	}
	if !strings.Contains(definition, "pts_per_game") {
		t.Fatalf("TableDefinition() = %q", definition)
	}
	if _, err := db.Exec(`WITH gone AS (SELECT 1) DELETE FROM "Player Per Game"`); err == nil {
		t.Fatal("expected WITH ... DELETE to fail on a read-only connection")
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "Player Per Game"`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}

func TestNewOpenerRequiresDSN(t *testing.T) {
	if _, err := NewOpener(config.DatabaseConfig{Driver: SQLite}); err == nil {
		t.Fatal("expected dsn error")
	}
	if _, err := NewOpener(config.DatabaseConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("expected driver error")
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
