package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"abstkit/internal/errors"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input, in input order
func (c *OpenAIClient) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(embeddingRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, errors.Wrap(err, "marshal embedding request")
	}
	raw, err := c.do(ctx, http.MethodPost, "/embeddings", "application/json", payload)
	if err != nil {
		return nil, err
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, errors.Wrap(err, "unmarshal embedding response")
	}
	vectors := make([][]float32, len(inputs))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(inputs) {
			return nil, errors.ExternalServiceError("openai", errors.InvalidInput("embedding index out of range"))
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, errors.ExternalServiceError("openai", errors.InvalidInput("missing embedding for input "+strconv.Itoa(i)))
		}
	}
	return vectors, nil
}
