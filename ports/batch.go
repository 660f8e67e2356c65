package ports

import (
	"context"

	"abstkit/domain/batch"
)

// BatchAPI is the remote file + batch surface
type BatchAPI interface {
	UploadFile(ctx context.Context, path, purpose string) (*batch.File, error)
	FileContent(ctx context.Context, fileID string) ([]byte, error)

	CreateBatch(ctx context.Context, inputFileID, endpoint, window string, metadata map[string]string) (*batch.Batch, error)
	RetrieveBatch(ctx context.Context, batchID string) (*batch.Batch, error)
	CancelBatch(ctx context.Context, batchID string) (*batch.Batch, error)
	ListBatches(ctx context.Context, limit int) ([]batch.Batch, error)
}
