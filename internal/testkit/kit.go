package testkit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"abstkit/domain/batch"
	"abstkit/internal/errors"
)

// RuneCounter counts one token per rune; deterministic stand-in for tiktoken
type RuneCounter struct{}

func (RuneCounter) Count(s string) int { return utf8.RuneCountInString(s) }

func (RuneCounter) Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// OutputFunc builds the output content of one request. A negative status
// leaves the request out of the output file.
type OutputFunc func(req batch.Request) (content string, statusCode int)

// EchoUser answers every request with its last user message
func EchoUser(req batch.Request) (string, int) {
	for i := len(req.Body.Messages) - 1; i >= 0; i-- {
		if req.Body.Messages[i].Role == "user" {
			return req.Body.Messages[i].Content, 200
		}
	}
	return "", 200
}

// FakeBatchAPI is an in-memory Batch API. Each created batch walks through
// the next entry of Scripts, one status per RetrieveBatch call.
type FakeBatchAPI struct {
	Scripts [][]batch.Status
	Respond OutputFunc

	mu        sync.Mutex
	files     map[string][]byte
	batches   map[string]*batch.Batch
	scripts   map[string][]batch.Status
	retrieves map[string]int
	created   int
	Created   []string // batch IDs in creation order
	Cancelled []string
}

// NewFakeBatchAPI creates a fake whose batches complete on first retrieve unless scripted
func NewFakeBatchAPI(scripts ...[]batch.Status) *FakeBatchAPI {
	return &FakeBatchAPI{
		Scripts:   scripts,
		Respond:   EchoUser,
		files:     make(map[string][]byte),
		batches:   make(map[string]*batch.Batch),
		scripts:   make(map[string][]batch.Status),
		retrieves: make(map[string]int),
	}
}

func (f *FakeBatchAPI) UploadFile(ctx context.Context, path, purpose string) (*batch.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("file-%d", len(f.files)+1)
	f.files[id] = data
	return &batch.File{ID: id, Filename: path, Purpose: purpose, Bytes: int64(len(data))}, nil
}

func (f *FakeBatchAPI) FileContent(ctx context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[fileID]
	if !ok {
		return nil, errors.NotFound("file " + fileID)
	}
	return data, nil
}

func (f *FakeBatchAPI) CreateBatch(ctx context.Context, inputFileID, endpoint, window string, metadata map[string]string) (*batch.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[inputFileID]; !ok {
		return nil, errors.NotFound("file " + inputFileID)
	}
	script := []batch.Status{batch.StatusCompleted}
	if f.created < len(f.Scripts) {
		script = f.Scripts[f.created]
	}
	f.created++

	id := fmt.Sprintf("batch_%d", f.created)
	b := &batch.Batch{
		ID:               id,
		Status:           batch.StatusValidating,
		Endpoint:         endpoint,
		InputFileID:      inputFileID,
		CompletionWindow: window,
		Metadata:         metadata,
	}
	f.batches[id] = b
	f.scripts[id] = script
	f.Created = append(f.Created, id)
	copied := *b
	return &copied, nil
}

func (f *FakeBatchAPI) RetrieveBatch(ctx context.Context, batchID string) (*batch.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[batchID]
	if !ok {
		return nil, errors.NotFound("batch " + batchID)
	}
	if !b.Status.IsTerminal() {
		script := f.scripts[batchID]
		n := f.retrieves[batchID]
		if n >= len(script) {
			n = len(script) - 1
		}
		f.retrieves[batchID]++
		b.Status = script[n]
		if b.Status == batch.StatusCompleted {
			if err := f.complete(b); err != nil {
				return nil, err
			}
		}
	}
	copied := *b
	return &copied, nil
}

func (f *FakeBatchAPI) CancelBatch(ctx context.Context, batchID string) (*batch.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[batchID]
	if !ok {
		return nil, errors.NotFound("batch " + batchID)
	}
	b.Status = batch.StatusCancelled
	f.Cancelled = append(f.Cancelled, batchID)
	copied := *b
	return &copied, nil
}

func (f *FakeBatchAPI) ListBatches(ctx context.Context, limit int) ([]batch.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []batch.Batch
	for i := len(f.Created) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, *f.batches[f.Created[i]])
	}
	return out, nil
}

// complete renders the output file for a batch; caller holds mu
func (f *FakeBatchAPI) complete(b *batch.Batch) error {
	var out strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(string(f.files[b.InputFileID])), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var req batch.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return err
		}
		content, code := f.Respond(req)
		if code < 0 {
			continue
		}
		out.WriteString(renderOutputLine(req.CustomID, content, code))
		out.WriteString("\n")
	}
	id := fmt.Sprintf("file-out-%s", b.ID)
	f.files[id] = []byte(out.String())
	b.OutputFileID = id
	return nil
}

func renderOutputLine(customID, content string, code int) string {
	var body interface{}
	if code == 200 {
		body = map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
	} else {
		body = map[string]interface{}{"error": map[string]string{"message": content}}
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"custom_id": customID,
		"response":  map[string]interface{}{"status_code": code, "body": body},
	})
	return string(raw)
}

// FuncEmbedder embeds with a plain function
type FuncEmbedder func(text string) []float32

func (f FuncEmbedder) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = f(in)
	}
	return out, nil
}
