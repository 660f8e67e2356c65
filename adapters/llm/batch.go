package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"abstkit/domain/batch"
	"abstkit/internal/errors"
)

// UploadFile sends a local file to /files
func (c *OpenAIClient) UploadFile(ctx context.Context, path, purpose string) (*batch.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", purpose); err != nil {
		return nil, errors.Wrap(err, "write purpose field")
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart body")
	}

	raw, err := c.do(ctx, http.MethodPost, "/files", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return nil, err
	}
	var file batch.File
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "unmarshal file")
	}
	c.logger.Debug("[OpenAIClient] uploaded %s as %s", path, file.ID)
	return &file, nil
}

// FileContent downloads a file body
func (c *OpenAIClient) FileContent(ctx context.Context, fileID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/content", "", nil)
}

type createBatchRequest struct {
	InputFileID      string            `json:"input_file_id"`
	Endpoint         string            `json:"endpoint"`
	CompletionWindow string            `json:"completion_window"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

func (c *OpenAIClient) CreateBatch(ctx context.Context, inputFileID, endpoint, window string, metadata map[string]string) (*batch.Batch, error) {
	payload, err := json.Marshal(createBatchRequest{
		InputFileID:      inputFileID,
		Endpoint:         endpoint,
		CompletionWindow: window,
		Metadata:         metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal batch request")
	}
	raw, err := c.do(ctx, http.MethodPost, "/batches", "application/json", payload)
	if err != nil {
		return nil, err
	}
	return decodeBatch(raw)
}

func (c *OpenAIClient) RetrieveBatch(ctx context.Context, batchID string) (*batch.Batch, error) {
	raw, err := c.do(ctx, http.MethodGet, "/batches/"+url.PathEscape(batchID), "", nil)
	if err != nil {
		return nil, err
	}
	return decodeBatch(raw)
}

func (c *OpenAIClient) CancelBatch(ctx context.Context, batchID string) (*batch.Batch, error) {
	raw, err := c.do(ctx, http.MethodPost, "/batches/"+url.PathEscape(batchID)+"/cancel", "", nil)
	if err != nil {
		return nil, err
	}
	return decodeBatch(raw)
}

// ListBatches returns the most recent batches, newest first
func (c *OpenAIClient) ListBatches(ctx context.Context, limit int) ([]batch.Batch, error) {
	path := "/batches"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	raw, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	var page struct {
		Data []batch.Batch `json:"data"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, errors.Wrap(err, "unmarshal batch list")
	}
	return page.Data, nil
}

func decodeBatch(raw []byte) (*batch.Batch, error) {
	var b batch.Batch
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, errors.Wrap(err, "unmarshal batch")
	}
	return &b, nil
}
