package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"abstkit/internal/errors"
	"abstkit/models"
	"abstkit/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// JobRepositoryImpl keeps submitted batch jobs in batch_jobs
type JobRepositoryImpl struct {
	db *sqlx.DB
}

// NewJobRepository creates a batch job repository
func NewJobRepository(db *sqlx.DB) ports.JobRepository {
	return &JobRepositoryImpl{db: db}
}

// Record inserts a job, filling ID and timestamps when unset
func (r *JobRepositoryImpl) Record(ctx context.Context, job *models.BatchJob) error {
	now := time.Now().UTC()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO batch_jobs (
			id, batch_id, input_file, input_file_id, description, status,
			attempt, request_count, output_file_id, created_at, updated_at
		) VALUES (
			:id, :batch_id, :input_file, :input_file_id, :description, :status,
			:attempt, :request_count, :output_file_id, :created_at, :updated_at
		)
	`, job)
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrapf(err, "failed to record batch %s", job.BatchID))
	}
	return nil
}

// UpdateStatus stores the latest remote status of a batch
func (r *JobRepositoryImpl) UpdateStatus(ctx context.Context, batchID, status, outputFileID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE batch_jobs SET status = ?, output_file_id = ?, updated_at = ?
		WHERE batch_id = ?
	`), status, outputFileID, time.Now().UTC(), batchID)
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrapf(err, "failed to update batch %s", batchID))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("batch " + batchID)
	}
	return nil
}

func (r *JobRepositoryImpl) Get(ctx context.Context, batchID string) (*models.BatchJob, error) {
	var job models.BatchJob
	err := r.db.GetContext(ctx, &job, r.db.Rebind(`
		SELECT id, batch_id, input_file, input_file_id, description, status,
		       attempt, request_count, output_file_id, created_at, updated_at
		FROM batch_jobs WHERE batch_id = ?
	`), batchID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("batch " + batchID)
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return &job, nil
}

// List returns jobs newest first; limit <= 0 means all
func (r *JobRepositoryImpl) List(ctx context.Context, limit int) ([]*models.BatchJob, error) {
	query := `
		SELECT id, batch_id, input_file, input_file_id, description, status,
		       attempt, request_count, output_file_id, created_at, updated_at
		FROM batch_jobs ORDER BY created_at DESC, batch_id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var jobs []*models.BatchJob
	if err := r.db.SelectContext(ctx, &jobs, r.db.Rebind(query), args...); err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return jobs, nil
}
