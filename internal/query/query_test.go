package query

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nbai/nbai/internal/database"
)

func TestExecuteReturnsRows(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(`SELECT player, pts_per_game FROM "Player Per Game" ORDER BY pts_per_game DESC LIMIT 2`).
		WillReturnRows(sqlmock.NewRows([]string{"player", "pts_per_game"}).
			AddRow([]byte("Wilt Chamberlain"), 50.4).
			AddRow("Elgin Baylor", 38.3))
	mock.ExpectClose()

	executor := newTestExecutor(t, db, 0)
	result, err := executor.Execute(context.Background(), `SELECT player, pts_per_game FROM "Player Per Game" ORDER BY pts_per_game DESC LIMIT 2;`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Empty() {
		t.Fatal("Empty() = true, want false")
	}
	if len(result.Columns) != 2 || result.Columns[1] != "pts_per_game" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if result.Rows[0][0] != "Wilt Chamberlain" {
		t.Fatalf("Rows[0][0] = %#v, want normalized string", result.Rows[0][0])
	}
	if result.Truncated {
		t.Fatal("Truncated = true")
	}
	assertSQLMock(t, mock)
}

func TestExecuteEmptyResultIsNotAnError(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(`SELECT * FROM "Team Summaries" WHERE w > 82`).
		WillReturnRows(sqlmock.NewRows([]string{"team", "w"}))
	mock.ExpectClose()

	executor := newTestExecutor(t, db, 0)
	result, err := executor.Execute(context.Background(), `SELECT * FROM "Team Summaries" WHERE w > 82`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Empty() {
		t.Fatalf("Empty() = false, rows = %v", result.Rows)
	}
	if len(result.Columns) != 2 {
		t.Fatalf("Columns = %v", result.Columns)
	}
	assertSQLMock(t, mock)
}

func TestExecuteTruncatesAtMaxRows(t *testing.T) {
	db, mock := newSQLMock(t)
	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery(`SELECT n FROM t`).WillReturnRows(rows)
	mock.ExpectClose()

	executor := newTestExecutor(t, db, 3)
	result, err := executor.Execute(context.Background(), "SELECT n FROM t")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 3 || !result.Truncated {
		t.Fatalf("rows/truncated = %d/%v", len(result.Rows), result.Truncated)
	}
	assertSQLMock(t, mock)
}

func TestExecuteWrapsDatabaseErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(`SELECT nope FROM "Advanced"`).WillReturnError(errors.New("no such column: nope"))
	mock.ExpectClose()

	executor := newTestExecutor(t, db, 0)
	if _, err := executor.Execute(context.Background(), `SELECT nope FROM "Advanced"`); err == nil {
		t.Fatal("expected execution error")
	}
	assertSQLMock(t, mock)
}

func TestExecuteRejectsDisallowedStatementsWithoutConnecting(t *testing.T) {
	opener := &countingOpener{}
	executor, err := NewExecutor(opener, 0, nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	for _, statement := range []string{
		"",
		"DROP TABLE \"Advanced\"",
		"DELETE FROM \"Player Totals\"",
		"SELECT 1; DELETE FROM \"Player Totals\"",
		"-- harmless\nUPDATE t SET a = 1",
	} {
		if _, err := executor.Execute(context.Background(), statement); !errors.Is(err, ErrStatementNotAllowed) {
			t.Fatalf("Execute(%q) error = %v, want ErrStatementNotAllowed", statement, err)
		}
	}
	if opener.calls != 0 {
		t.Fatalf("opener called %d times", opener.calls)
	}
}

func TestGuard(t *testing.T) {
	allowed := map[string]string{
		"SELECT 1;;":                              "SELECT 1",
		"  with x as (select 1) select * from x ": "with x as (select 1) select * from x",
		"-- top scorers\nSELECT 'a;b' AS s":       "SELECT 'a;b' AS s",
		"/* c */ SELECT \"semi;colon\" FROM t":    "SELECT \"semi;colon\" FROM t",
		"SELECT 'It''s' AS s":                     "SELECT 'It''s' AS s",
		"SELECT 1 -- trailing; comment\n":         "SELECT 1 -- trailing; comment",
		"SELECT 1 /* ; */ FROM t":                 "SELECT 1 /* ; */ FROM t",
	}
	for in, want := range allowed {
		got, err := Guard(in)
		if err != nil {
			t.Fatalf("Guard(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("Guard(%q) = %q, want %q", in, got, want)
		}
	}
	for _, in := range []string{"INSERT INTO t VALUES (1)", "SELECT 1; SELECT 2", "PRAGMA table_info(t)", "-- only a comment"} {
		if _, err := Guard(in); !errors.Is(err, ErrStatementNotAllowed) {
			t.Fatalf("Guard(%q) error = %v, want ErrStatementNotAllowed", in, err)
		}
	}
}

func TestGuardAcceptsParenthesizedUnion(t *testing.T) {
	union := `(SELECT "Player" FROM "Player Per Game" ORDER BY "PTS" DESC LIMIT 1) UNION ALL (SELECT "Player" FROM "Player Per Game" ORDER BY "AST" DESC LIMIT 1)`
	got, err := Guard(union + ";")
	if err != nil {
		t.Fatalf("Guard() error = %v", err)
	}
	if got != union {
		t.Fatalf("Guard() = %q, want %q", got, union)
	}
	for _, in := range []string{"(DELETE FROM t)", "((  UPDATE t SET a = 1))", "(", "(SELECT 1); DROP TABLE t"} {
		if _, err := Guard(in); !errors.Is(err, ErrStatementNotAllowed) {
			t.Fatalf("Guard(%q) error = %v, want ErrStatementNotAllowed", in, err)
		}
	}
}

func newTestExecutor(t *testing.T, db *sql.DB, maxRows int) *Executor {
	t.Helper()
	executor, err := NewExecutor(&mockOpener{db: db}, maxRows, nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	return executor
}

type mockOpener struct {
	db *sql.DB
}

func (m *mockOpener) Dialect() database.Dialect {
	d, _ := database.DialectFor(database.SQLite)
	return d
}

func (m *mockOpener) Open(context.Context) (*sql.DB, error) {
	return m.db, nil
}

type countingOpener struct {
	calls int
}

func (c *countingOpener) Dialect() database.Dialect {
	d, _ := database.DialectFor(database.SQLite)
	return d
}

func (c *countingOpener) Open(context.Context) (*sql.DB, error) {
	c.calls++
	return nil, errors.New("unexpected open")
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
