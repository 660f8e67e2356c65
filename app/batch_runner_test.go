package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"abstkit/adapters/store"
	"abstkit/domain/batch"
	"abstkit/internal/config"
	"abstkit/internal/errors"
	"abstkit/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatchConfig(t *testing.T) config.BatchConfig {
	dir := t.TempDir()
	return config.BatchConfig{
		PollInterval:     time.Millisecond,
		MaxRetries:       5,
		MaxInputTokens:   8000,
		MaxOutputTokens:  2000,
		TokenBudget:      1500000,
		CompletionWindow: "24h",
		WorkDir:          filepath.Join(dir, "data"),
		LedgerPath:       filepath.Join(dir, "request_input_id.csv"),
	}
}

func chatRequests(contents ...string) []batch.Request {
	var reqs []batch.Request
	for i, c := range contents {
		reqs = append(reqs, batch.NewChatRequest(
			"request-"+string(rune('a'+i)), "gpt-4.1-mini",
			[]batch.Message{{Role: "system", Content: "sys"}, {Role: "user", Content: c}}, 100))
	}
	return reqs
}

func TestWriteJSONL_KeepsNonASCII(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "batch_1.jsonl")
	require.NoError(t, WriteJSONL(path, chatRequests("用語 <抽出>", "二行目")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "用語 <抽出>")
	assert.Contains(t, lines[0], `"url":"/v1/chat/completions"`)
}

func TestBatchRunner_RunCompletes(t *testing.T) {
	ctx := context.Background()
	cfg := testBatchConfig(t)
	api := testkit.NewFakeBatchAPI([]batch.Status{batch.StatusValidating, batch.StatusInProgress, batch.StatusCompleted})
	runner := NewBatchRunner(api, nil, cfg)

	job, b, err := runner.Run(ctx, filepath.Join(cfg.WorkDir, "batch_1.jsonl"), "batch-1", chatRequests("一", "二"))
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, b.Status)
	assert.Equal(t, 0, job.Attempt)

	entries, err := runner.Ledger().Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1, "one ledger row per batch")
	assert.Equal(t, job.BatchID, entries[0].BatchID)
	assert.Equal(t, job.InputFileID, entries[0].InputFileID)

	outputs, err := runner.CollectLedger(ctx)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "一", outputs[0].Content)
	assert.Equal(t, "request-b", outputs[1].CustomID)
}

func TestBatchRunner_WaitRetriesFailedBatches(t *testing.T) {
	ctx := context.Background()
	cfg := testBatchConfig(t)
	api := testkit.NewFakeBatchAPI(
		[]batch.Status{batch.StatusFailed},
		[]batch.Status{batch.StatusInProgress, batch.StatusFailed},
		[]batch.Status{batch.StatusInProgress, batch.StatusCompleted},
	)
	db, err := store.OpenAndMigrate(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	jobs := store.NewJobRepository(db)
	runner := NewBatchRunner(api, jobs, cfg)

	job, b, err := runner.Run(ctx, filepath.Join(cfg.WorkDir, "batch_1.jsonl"), "batch-1", chatRequests("一"))
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, b.Status)
	assert.Equal(t, 2, job.Attempt)
	require.Len(t, api.Created, 3)
	assert.Equal(t, api.Created[2], job.BatchID)

	listed, err := api.ListBatches(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "retry-2", listed[0].Metadata["description"])
	assert.Equal(t, "retry-1", listed[1].Metadata["description"])
	for _, l := range listed {
		assert.Equal(t, job.InputFileID, l.InputFileID, "retries reuse the uploaded file")
	}

	entries, err := runner.Ledger().Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	first, err := jobs.Get(ctx, api.Created[0])
	require.NoError(t, err)
	assert.Equal(t, string(batch.StatusFailed), first.Status)
	last, err := jobs.Get(ctx, job.BatchID)
	require.NoError(t, err)
	assert.Equal(t, string(batch.StatusCompleted), last.Status)
	assert.Equal(t, 2, last.Attempt)
	assert.NotEmpty(t, last.OutputFileID)
}

func TestBatchRunner_WaitGivesUp(t *testing.T) {
	ctx := context.Background()
	cfg := testBatchConfig(t)
	cfg.MaxRetries = 2
	api := testkit.NewFakeBatchAPI(
		[]batch.Status{batch.StatusFailed},
		[]batch.Status{batch.StatusFailed},
		[]batch.Status{batch.StatusFailed},
	)
	runner := NewBatchRunner(api, nil, cfg)

	_, _, err := runner.Run(ctx, filepath.Join(cfg.WorkDir, "b.jsonl"), "b", chatRequests("x"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeBatchFailed, errors.GetCode(err))
	assert.Len(t, api.Created, 3)
}

func TestBatchRunner_TerminalStatesWithoutRetry(t *testing.T) {
	for _, status := range []batch.Status{batch.StatusExpired, batch.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			cfg := testBatchConfig(t)
			api := testkit.NewFakeBatchAPI([]batch.Status{status})
			runner := NewBatchRunner(api, nil, cfg)

			_, b, err := runner.Run(context.Background(), filepath.Join(cfg.WorkDir, "b.jsonl"), "b", chatRequests("x"))
			assert.Equal(t, errors.CodeBatchFailed, errors.GetCode(err))
			assert.Equal(t, status, b.Status)
			assert.Len(t, api.Created, 1)
		})
	}
}

func TestBatchRunner_WaitHonoursContext(t *testing.T) {
	cfg := testBatchConfig(t)
	cfg.PollInterval = time.Hour
	api := testkit.NewFakeBatchAPI([]batch.Status{batch.StatusInProgress})
	runner := NewBatchRunner(api, nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := runner.Run(ctx, filepath.Join(cfg.WorkDir, "b.jsonl"), "b", chatRequests("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBatchRunner_CollectSkipsUnfinished(t *testing.T) {
	ctx := context.Background()
	cfg := testBatchConfig(t)
	api := testkit.NewFakeBatchAPI(
		[]batch.Status{batch.StatusCompleted},
		[]batch.Status{batch.StatusInProgress},
	)
	runner := NewBatchRunner(api, nil, cfg)

	path := filepath.Join(cfg.WorkDir, "a.jsonl")
	require.NoError(t, WriteJSONL(path, chatRequests("done")))
	done, err := runner.Submit(ctx, path, "a", 1)
	require.NoError(t, err)
	pending, err := runner.Submit(ctx, path, "b", 1)
	require.NoError(t, err)

	outputs, err := runner.Collect(ctx, []string{done.BatchID, pending.BatchID})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "done", outputs[0].Content)
}

func TestBatchRunner_StatusAndCancel(t *testing.T) {
	ctx := context.Background()
	cfg := testBatchConfig(t)
	api := testkit.NewFakeBatchAPI([]batch.Status{batch.StatusInProgress})
	runner := NewBatchRunner(api, nil, cfg)

	path := filepath.Join(cfg.WorkDir, "a.jsonl")
	require.NoError(t, WriteJSONL(path, chatRequests("x")))
	job, err := runner.Submit(ctx, path, "a", 1)
	require.NoError(t, err)

	statuses, err := runner.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, batch.StatusInProgress, statuses[0].Status)
	assert.Equal(t, path, statuses[0].InputFile)

	b, err := runner.Cancel(ctx, job.BatchID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCancelled, b.Status)
	assert.Equal(t, []string{job.BatchID}, api.Cancelled)
}
