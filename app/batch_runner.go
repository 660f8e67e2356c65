package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"abstkit/domain/batch"
	"abstkit/internal"
	"abstkit/internal/config"
	"abstkit/internal/errors"
	"abstkit/models"
	"abstkit/ports"
)

// BatchRunner submits JSONL request files to the Batch API, waits for them
// and collects their outputs. Every created batch is written to the ledger
// CSV and, when a job repository is present, to the job store.
type BatchRunner struct {
	api    ports.BatchAPI
	jobs   ports.JobRepository
	ledger *Ledger
	cfg    config.BatchConfig
	logger *internal.Logger
}

// NewBatchRunner creates a runner; jobs may be nil
func NewBatchRunner(api ports.BatchAPI, jobs ports.JobRepository, cfg config.BatchConfig) *BatchRunner {
	return &BatchRunner{
		api:    api,
		jobs:   jobs,
		ledger: NewLedger(cfg.LedgerPath),
		cfg:    cfg,
		logger: internal.DefaultLogger,
	}
}

// Ledger exposes the runner's ledger
func (r *BatchRunner) Ledger() *Ledger {
	return r.ledger
}

// Job is one submitted batch
type Job struct {
	BatchID      string
	InputFile    string
	InputFileID  string
	Description  string
	Attempt      int
	RequestCount int
}

// WriteJSONL writes one request per line
func WriteJSONL(path string, requests []batch.Request) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, req := range requests {
		if err := enc.Encode(req); err != nil {
			return errors.Wrapf(err, "failed to encode request %s", req.CustomID)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// Submit uploads a JSONL file and creates a batch from it
func (r *BatchRunner) Submit(ctx context.Context, jsonlPath, description string, requestCount int) (*Job, error) {
	file, err := r.api.UploadFile(ctx, jsonlPath, batch.PurposeBatch)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to upload %s", jsonlPath)
	}
	r.logger.Info("[BatchRunner] uploaded %s as %s", jsonlPath, file.ID)

	job := &Job{
		InputFile:    jsonlPath,
		InputFileID:  file.ID,
		Description:  description,
		RequestCount: requestCount,
	}
	if err := r.create(ctx, job, description); err != nil {
		return nil, err
	}
	return job, nil
}

// create starts a batch for job's input file and records it
func (r *BatchRunner) create(ctx context.Context, job *Job, description string) error {
	b, err := r.api.CreateBatch(ctx, job.InputFileID, batch.EndpointChatCompletions, r.cfg.CompletionWindow,
		map[string]string{"description": description})
	if err != nil {
		return errors.Wrapf(err, "failed to create batch for %s", job.InputFileID)
	}
	job.BatchID = b.ID
	r.logger.Info("[BatchRunner] created batch %s (%s)", b.ID, description)

	if err := r.ledger.Append(LedgerEntry{InputFile: job.InputFile, BatchID: b.ID, InputFileID: job.InputFileID}); err != nil {
		return err
	}
	if r.jobs != nil {
		record := &models.BatchJob{
			BatchID:      b.ID,
			InputFile:    job.InputFile,
			InputFileID:  job.InputFileID,
			Description:  description,
			Status:       string(b.Status),
			Attempt:      job.Attempt,
			RequestCount: job.RequestCount,
		}
		if err := r.jobs.Record(ctx, record); err != nil {
			r.logger.Warn("[BatchRunner] failed to record job %s: %v", b.ID, err)
		}
	}
	return nil
}

// Wait polls until the batch completes. A failed batch is recreated from the
// same input file up to MaxRetries times and each retry is polled in turn.
// Expired or cancelled batches are not retried.
func (r *BatchRunner) Wait(ctx context.Context, job *Job) (*batch.Batch, error) {
	for {
		b, err := r.api.RetrieveBatch(ctx, job.BatchID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to retrieve batch %s", job.BatchID)
		}
		r.updateStatus(ctx, b)
		r.logger.Debug("[BatchRunner] batch %s status=%s", b.ID, b.Status)

		switch b.Status {
		case batch.StatusCompleted:
			r.logger.Info("[BatchRunner] batch %s completed", b.ID)
			return b, nil
		case batch.StatusFailed:
			if job.Attempt >= r.cfg.MaxRetries {
				r.logger.Error("[BatchRunner] batch %s failed after %d retries", b.ID, job.Attempt)
				return b, errors.BatchFailed(b.ID, string(b.Status))
			}
			job.Attempt++
			r.logger.Warn("[BatchRunner] batch %s failed, retry %d/%d", b.ID, job.Attempt, r.cfg.MaxRetries)
			if err := r.create(ctx, job, fmt.Sprintf("retry-%d", job.Attempt)); err != nil {
				return nil, err
			}
			continue
		case batch.StatusExpired, batch.StatusCancelled:
			return b, errors.BatchFailed(b.ID, string(b.Status))
		}

		if err := sleep(ctx, r.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

// Run writes, submits and waits for a set of requests
func (r *BatchRunner) Run(ctx context.Context, jsonlPath, description string, requests []batch.Request) (*Job, *batch.Batch, error) {
	if err := WriteJSONL(jsonlPath, requests); err != nil {
		return nil, nil, err
	}
	job, err := r.Submit(ctx, jsonlPath, description, len(requests))
	if err != nil {
		return nil, nil, err
	}
	b, err := r.Wait(ctx, job)
	return job, b, err
}

// Collect downloads and parses the outputs of completed batches. Batches
// that are not completed or have no output file are skipped.
func (r *BatchRunner) Collect(ctx context.Context, batchIDs []string) ([]batch.Output, error) {
	var outputs []batch.Output
	for _, id := range batchIDs {
		b, err := r.api.RetrieveBatch(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to retrieve batch %s", id)
		}
		if b.Status != batch.StatusCompleted || b.OutputFileID == "" {
			r.logger.Warn("[BatchRunner] skipping batch %s (status=%s)", id, b.Status)
			continue
		}
		data, err := r.api.FileContent(ctx, b.OutputFileID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to download output of %s", id)
		}
		outputs = append(outputs, batch.ParseOutput(data)...)
	}
	return outputs, nil
}

// CollectLedger collects every batch listed in the ledger
func (r *BatchRunner) CollectLedger(ctx context.Context) ([]batch.Output, error) {
	ids, err := r.ledger.BatchIDs()
	if err != nil {
		return nil, err
	}
	return r.Collect(ctx, ids)
}

// JobStatus pairs a ledger row with the live batch state
type JobStatus struct {
	LedgerEntry
	Status        batch.Status
	RequestCounts batch.RequestCounts
	Err           error
}

// Status reports the live status of every ledger batch
func (r *BatchRunner) Status(ctx context.Context) ([]JobStatus, error) {
	entries, err := r.ledger.Entries()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var statuses []JobStatus
	for _, e := range entries {
		if seen[e.BatchID] {
			continue
		}
		seen[e.BatchID] = true

		st := JobStatus{LedgerEntry: e}
		b, err := r.api.RetrieveBatch(ctx, e.BatchID)
		if err != nil {
			st.Err = err
		} else {
			st.Status = b.Status
			st.RequestCounts = b.RequestCounts
			r.updateStatus(ctx, b)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Cancel asks the API to cancel a batch
func (r *BatchRunner) Cancel(ctx context.Context, batchID string) (*batch.Batch, error) {
	b, err := r.api.CancelBatch(ctx, batchID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to cancel batch %s", batchID)
	}
	r.updateStatus(ctx, b)
	return b, nil
}

func (r *BatchRunner) updateStatus(ctx context.Context, b *batch.Batch) {
	if r.jobs == nil {
		return
	}
	if err := r.jobs.UpdateStatus(ctx, b.ID, string(b.Status), b.OutputFileID); err != nil && !errors.Is(err, errors.CodeNotFound) {
		r.logger.Warn("[BatchRunner] failed to update job %s: %v", b.ID, err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
