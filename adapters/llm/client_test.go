package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"abstkit/domain/batch"
	"abstkit/internal/errors"
	"abstkit/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{})
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestOpenAIClient_Chat(t *testing.T) {
	var got batch.ChatBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"model":"gpt-4.1-mini","choices":[{"message":{"content":"書き換え後"}}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`)
	})

	temp := 0.5
	resp, err := client.Chat(context.Background(), ports.ChatRequest{
		Model:       "gpt-4.1-mini",
		Messages:    []batch.Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "元の文"}},
		Temperature: &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, "書き換え後", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
	assert.Equal(t, "openai", resp.Usage.Provider)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "元の文", got.Messages[1].Content)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.5, *got.Temperature)
}

func TestOpenAIClient_ChatCompletion_MissingModel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := client.ChatCompletion(context.Background(), " ", "hi", 0)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestOpenAIClient_HTTPErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := client.ChatCompletion(context.Background(), "m", "hi", 10)
		require.Error(t, err)
		assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
		assert.Contains(t, err.Error(), "openai http 500")
	})

	t.Run("rate limited sets backoff", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := client.ChatCompletion(context.Background(), "m", "hi", 10)
		require.Error(t, err)
		assert.Greater(t, client.limiter.Backoff(), 20*time.Second)
	})

	t.Run("missing choices", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[]}`)
		})
		_, err := client.ChatCompletion(context.Background(), "m", "hi", 10)
		assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
	})
}

func TestOpenAIClient_BatchLifecycle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/files":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "batch", r.FormValue("purpose"))
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			data, _ := io.ReadAll(f)
			assert.Equal(t, "batch_1.jsonl", hdr.Filename)
			assert.Contains(t, string(data), "request-1-0")
			_, _ = io.WriteString(w, `{"id":"file-abc","filename":"batch_1.jsonl","purpose":"batch","bytes":10}`)
		case r.Method == http.MethodPost && r.URL.Path == "/batches":
			var body createBatchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "file-abc", body.InputFileID)
			assert.Equal(t, "24h", body.CompletionWindow)
			assert.Equal(t, "terms", body.Metadata["description"])
			_, _ = io.WriteString(w, `{"id":"batch_1","status":"validating","input_file_id":"file-abc"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/batches/batch_1":
			_, _ = io.WriteString(w, `{"id":"batch_1","status":"completed","output_file_id":"file-out","request_counts":{"total":1,"completed":1,"failed":0}}`)
		case r.Method == http.MethodPost && r.URL.Path == "/batches/batch_1/cancel":
			_, _ = io.WriteString(w, `{"id":"batch_1","status":"cancelling"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/batches":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			_, _ = io.WriteString(w, `{"data":[{"id":"batch_2","status":"in_progress"},{"id":"batch_1","status":"completed"}]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/files/file-out/content":
			_, _ = io.WriteString(w, `{"custom_id":"request-1-0","response":{"status_code":200,"body":{"choices":[{"message":{"content":"用語"}}]}}}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "batch_1.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"custom_id":"request-1-0"}`+"\n"), 0o644))

	file, err := client.UploadFile(ctx, path, batch.PurposeBatch)
	require.NoError(t, err)
	assert.Equal(t, "file-abc", file.ID)

	created, err := client.CreateBatch(ctx, file.ID, batch.EndpointChatCompletions, "24h", map[string]string{"description": "terms"})
	require.NoError(t, err)
	assert.Equal(t, batch.StatusValidating, created.Status)

	got, err := client.RetrieveBatch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.RequestCounts.Completed)

	data, err := client.FileContent(ctx, got.OutputFileID)
	require.NoError(t, err)
	outputs := batch.ParseOutput(data)
	require.Len(t, outputs, 1)
	assert.Equal(t, "用語", outputs[0].Content)

	cancelled, err := client.CancelBatch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCancelling, cancelled.Status)

	list, err := client.ListBatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "batch_2", list[0].ID)
}

func TestOpenAIClient_Embed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var body embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a", "b"}, body.Input)
		// out of order on purpose
		_, _ = io.WriteString(w, `{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`)
	})

	vectors, err := client.Embed(context.Background(), "text-embedding-3-small", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	limiter.RecordRateLimitError(0)
	assert.Greater(t, limiter.Backoff(), 59*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, limiter.Wait(ctx), context.Canceled)
}

func TestMockLLMClient(t *testing.T) {
	mock := &MockLLMClient{Respond: func(req ports.ChatRequest) (string, error) {
		return "echo:" + req.Messages[len(req.Messages)-1].Content, nil
	}}
	out, err := mock.ChatCompletion(context.Background(), "m", "x", 0)
	require.NoError(t, err)
	assert.Equal(t, "echo:x", out)
	assert.Equal(t, 1, mock.CallCount())
}
