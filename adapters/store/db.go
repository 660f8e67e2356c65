package store

import (
	"context"
	"strings"

	"abstkit/internal/errors"
	"abstkit/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects to DATABASE_URL: postgres URLs go through lib/pq, anything
// else is treated as a sqlite file path
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	driver, dsn := resolve(url)

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, errors.Wrapf(err, "failed to connect to %s database", driver))
	}
	if driver == "sqlite" {
		// single writer
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// OpenAndMigrate opens the database and ensures the schema exists
func OpenAndMigrate(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return db, nil
}

func resolve(url string) (driver, dsn string) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "postgres", url
	}
	path := strings.TrimPrefix(url, "sqlite://")
	if path == "" || path == ":memory:" {
		return "sqlite", "file::memory:?_time_format=sqlite"
	}
	return "sqlite", "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}
