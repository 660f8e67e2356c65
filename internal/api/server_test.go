package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"abstkit/adapters/store"
	"abstkit/app"
	"abstkit/domain/text"
	"abstkit/internal/readability"
	"abstkit/internal/testkit"
	"abstkit/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fieldMorph makes every whitespace field a noun
type fieldMorph struct{}

func (fieldMorph) Analyze(s string) []text.Morpheme {
	var out []text.Morpheme
	for _, f := range strings.Fields(s) {
		out = append(out, text.Morpheme{Surface: f, POS: text.POSNoun, BaseForm: f})
	}
	return out
}

type stubUsage struct{ days int }

func (s *stubUsage) Summary(ctx context.Context, days int) (*models.UsageSummary, error) {
	s.days = days
	return &models.UsageSummary{TotalTokens: 42, RequestCount: 2, PeriodEnd: time.Unix(0, 0).UTC()}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_TextEndpoints(t *testing.T) {
	srv := NewServer(Deps{Morph: fieldMorph{}, Counter: testkit.RuneCounter{}})

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/tokens", `{"text":"研究課題"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tokens":4}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/morph", `{"text":"がん 研究"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ms []text.Morpheme
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	require.Len(t, ms, 2)
	assert.Equal(t, "研究", ms[1].Surface)

	rec = do(t, srv, http.MethodPost, "/api/readability", `{"text":"がん 研究 。"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res readability.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Sentences)
	assert.Equal(t, 3, res.TotalWords)

	rec = do(t, srv, http.MethodPost, "/api/tokens", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestServer_JobsFromLedger(t *testing.T) {
	ledger := app.NewLedger(filepath.Join(t.TempDir(), "request_input_id.csv"))
	require.NoError(t, ledger.Append(app.LedgerEntry{InputFile: "data/batch_0.jsonl", BatchID: "batch_1", InputFileID: "file-1"}))
	srv := NewServer(Deps{Morph: fieldMorph{}, Counter: testkit.RuneCounter{}, Ledger: ledger})

	rec := do(t, srv, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []models.BatchJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "batch_1", jobs[0].BatchID)
	assert.Equal(t, "file-1", jobs[0].InputFileID)
}

func TestServer_JobsFromStore(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenAndMigrate(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo := store.NewJobRepository(db)
	require.NoError(t, repo.Record(ctx, &models.BatchJob{BatchID: "batch_9", InputFile: "a.jsonl", InputFileID: "file-9", Status: "completed"}))

	srv := NewServer(Deps{Morph: fieldMorph{}, Counter: testkit.RuneCounter{}, Jobs: repo})
	rec := do(t, srv, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"batch_id":"batch_9"`)

	require.NoError(t, repo.Record(ctx, &models.BatchJob{BatchID: "batch_10", InputFile: "b.jsonl", InputFileID: "file-10", Status: "in_progress"}))
	rec = do(t, srv, http.MethodGet, "/api/jobs?active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"batch_id":"batch_10"`)
	assert.NotContains(t, rec.Body.String(), `"batch_id":"batch_9"`)
}

func TestServer_Usage(t *testing.T) {
	srv := NewServer(Deps{Morph: fieldMorph{}, Counter: testkit.RuneCounter{}})
	rec := do(t, srv, http.MethodGet, "/api/usage", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	usage := &stubUsage{}
	srv = NewServer(Deps{Morph: fieldMorph{}, Counter: testkit.RuneCounter{}, Usage: usage})
	rec = do(t, srv, http.MethodGet, "/api/usage?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, usage.days)
	assert.Contains(t, rec.Body.String(), `"total_tokens":42`)

	rec = do(t, srv, http.MethodGet, "/api/usage?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
