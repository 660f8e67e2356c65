package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchJob is one submitted Batch API job as kept in the ledger
type BatchJob struct {
	ID           uuid.UUID `json:"id" db:"id"`
	BatchID      string    `json:"batch_id" db:"batch_id"`
	InputFile    string    `json:"input_file" db:"input_file"`
	InputFileID  string    `json:"input_file_id" db:"input_file_id"`
	Description  string    `json:"description" db:"description"`
	Status       string    `json:"status" db:"status"`
	Attempt      int       `json:"attempt" db:"attempt"`
	RequestCount int       `json:"request_count" db:"request_count"`
	OutputFileID string    `json:"output_file_id" db:"output_file_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the job reached a state the Batch API will not
// move out of
func (j *BatchJob) Terminal() bool {
	switch j.Status {
	case "completed", "failed", "expired", "cancelled":
		return true
	}
	return false
}
