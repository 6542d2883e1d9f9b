package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nbai/nbai/internal/config"
)

// Opener hands out a fresh handle per call. Callers close it when done, so no
// connection outlives the operation that needed it.
type Opener interface {
	Dialect() Dialect
	Open(ctx context.Context) (*sql.DB, error)
}

type SQLOpener struct {
	dialect Dialect
	dsn     string
}

func NewOpener(cfg config.DatabaseConfig) (*SQLOpener, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" && dialect.Name != DuckDB {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.ReadOnly {
		dsn = dialect.ReadOnlyDSN(dsn)
	}
	return &SQLOpener{dialect: dialect, dsn: dsn}, nil
}

func (o *SQLOpener) Dialect() Dialect {
	return o.dialect
}

func (o *SQLOpener) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(o.dialect.DriverName, o.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", o.dialect.Name, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s database: %w", o.dialect.Name, err)
	}
	return db, nil
}

// Ping opens and closes a handle; used by readiness checks.
func Ping(ctx context.Context, opener Opener) error {
	if opener == nil {
		return fmt.Errorf("database opener is required")
	}
	db, err := opener.Open(ctx)
	if err != nil {
		return err
	}
	return db.Close()
}
