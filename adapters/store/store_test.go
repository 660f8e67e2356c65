package store

import (
	"context"
	"testing"
	"time"

	"abstkit/internal/errors"
	"abstkit/internal/migration"
	"abstkit/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := OpenAndMigrate(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestResolve(t *testing.T) {
	tests := []struct {
		url    string
		driver string
	}{
		{"postgres://u:p@localhost/abstkit", "postgres"},
		{"postgresql://localhost/abstkit", "postgres"},
		{"abstkit.db", "sqlite"},
		{"sqlite://data/jobs.db", "sqlite"},
		{"", "sqlite"},
	}
	for _, tt := range tests {
		driver, _ := resolve(tt.url)
		assert.Equal(t, tt.driver, driver, tt.url)
	}

	_, dsn := resolve("sqlite://data/jobs.db")
	assert.Contains(t, dsn, "file:data/jobs.db?")
}

func TestMigrationIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM batch_jobs`))
	assert.Equal(t, 0, n)
}

func TestJobRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	first := &models.BatchJob{BatchID: "batch_1", InputFile: "data/batch_1.jsonl", InputFileID: "file-1", Status: "validating", RequestCount: 4}
	require.NoError(t, repo.Record(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)

	second := &models.BatchJob{BatchID: "batch_2", InputFile: "data/batch_1.jsonl", InputFileID: "file-1", Status: "validating", Attempt: 1, CreatedAt: first.CreatedAt.Add(time.Second)}
	require.NoError(t, repo.Record(ctx, second))

	require.NoError(t, repo.UpdateStatus(ctx, "batch_1", "completed", "file-out"))

	got, err := repo.Get(ctx, "batch_1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "file-out", got.OutputFileID)
	assert.Equal(t, 4, got.RequestCount)
	assert.Equal(t, first.ID, got.ID)

	jobs, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "batch_2", jobs[0].BatchID)

	jobs, err = repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	_, err = repo.Get(ctx, "missing")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(repo.UpdateStatus(ctx, "missing", "failed", "")))

	assert.Error(t, repo.Record(ctx, &models.BatchJob{BatchID: "batch_1", InputFile: "x", InputFileID: "y", Status: "validating"}), "batch_id is unique")
}

func TestLLMUsageRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLLMUsageRepository(openTestDB(t))
	run := uuid.New()
	now := time.Now()

	records := []*models.LLMUsage{
		{RunID: run, Provider: "openai", Model: "gpt-4.1-mini", OperationType: models.OpRewrite, PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, CreatedAt: now.Add(-time.Hour)},
		{RunID: run, Provider: "openai", Model: "gpt-4.1-mini", OperationType: models.OpRewrite, PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30, CreatedAt: now.Add(-time.Minute)},
		{RunID: run, Provider: "openai", Model: "text-embedding-3-small", OperationType: models.OpEmbedding, PromptTokens: 8, TotalTokens: 8, CreatedAt: now.Add(-time.Minute)},
		{RunID: run, Provider: "openai", Model: "gpt-4.1-mini", OperationType: models.OpChat, TotalTokens: 999, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, rec := range records {
		require.NoError(t, repo.RecordUsage(ctx, rec))
	}

	start, end := now.Add(-24*time.Hour), now
	usages, err := repo.GetUsage(ctx, start, end)
	require.NoError(t, err)
	assert.Len(t, usages, 3)

	summary, err := repo.GetUsageSummary(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.RequestCount)
	assert.Equal(t, 53, summary.TotalTokens)
	assert.Equal(t, 38, summary.TotalPromptTokens)
	assert.Equal(t, 15, summary.TotalCompletionTokens)
	require.Contains(t, summary.ByModel, "gpt-4.1-mini")
	assert.Equal(t, 45, summary.ByModel["gpt-4.1-mini"].TotalTokens)
	assert.Equal(t, 2, summary.ByModel["gpt-4.1-mini"].RequestCount)

	empty, err := repo.GetUsageSummary(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalTokens)
	assert.Empty(t, empty.ByModel)
}
