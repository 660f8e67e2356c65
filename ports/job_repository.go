package ports

import (
	"context"

	"abstkit/models"
)

// JobRepository persists submitted batch jobs
type JobRepository interface {
	Record(ctx context.Context, job *models.BatchJob) error
	UpdateStatus(ctx context.Context, batchID, status, outputFileID string) error
	Get(ctx context.Context, batchID string) (*models.BatchJob, error)
	List(ctx context.Context, limit int) ([]*models.BatchJob, error)
}
