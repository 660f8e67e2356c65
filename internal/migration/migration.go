package migration

import (
	"context"

	"abstkit/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the job ledger and usage tables
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Statements are written for
// both postgres and sqlite; column types differ only in the timestamp type.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	ts := timestampType(db)

	if err := r.createBatchJobsTable(ctx, db, ts); err != nil {
		return errors.Wrap(err, "failed to create batch_jobs table")
	}

	if err := r.createLLMUsageTable(ctx, db, ts); err != nil {
		return errors.Wrap(err, "failed to create llm_usage table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func timestampType(db *sqlx.DB) string {
	if db.DriverName() == "postgres" {
		return "TIMESTAMP WITH TIME ZONE"
	}
	return "TIMESTAMP"
}

func (r *MigrationRunner) createBatchJobsTable(ctx context.Context, db *sqlx.DB, ts string) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS batch_jobs (
			id VARCHAR(36) PRIMARY KEY,
			batch_id VARCHAR(100) UNIQUE NOT NULL,
			input_file TEXT NOT NULL,
			input_file_id VARCHAR(100) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status VARCHAR(30) NOT NULL,
			attempt INTEGER NOT NULL DEFAULT 0,
			request_count INTEGER NOT NULL DEFAULT 0,
			output_file_id VARCHAR(100) NOT NULL DEFAULT '',
			created_at `+ts+` NOT NULL,
			updated_at `+ts+` NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createLLMUsageTable(ctx context.Context, db *sqlx.DB, ts string) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS llm_usage (
			id VARCHAR(36) PRIMARY KEY,
			run_id VARCHAR(36) NOT NULL,
			provider VARCHAR(50) NOT NULL,
			model VARCHAR(100) NOT NULL,
			operation_type VARCHAR(50) NOT NULL,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			created_at `+ts+` NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_batch_jobs_created_at ON batch_jobs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_jobs_status ON batch_jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_llm_usage_created_at ON llm_usage(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_llm_usage_run_id ON llm_usage(run_id)`,
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
