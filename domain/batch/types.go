package batch

import (
	"strings"

	"abstkit/internal"

	"github.com/tidwall/gjson"
)

// Status mirrors the OpenAI batch lifecycle
type Status string

const (
	StatusValidating Status = "validating"
	StatusInProgress Status = "in_progress"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transition is expected
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

const (
	EndpointChatCompletions = "/v1/chat/completions"
	PurposeBatch            = "batch"
)

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatBody is the body of a chat completion request line
type ChatBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// Request is one line of a batch input JSONL file
type Request struct {
	CustomID string   `json:"custom_id"`
	Method   string   `json:"method"`
	URL      string   `json:"url"`
	Body     ChatBody `json:"body"`
}

// NewChatRequest builds a POST /v1/chat/completions line
func NewChatRequest(customID, model string, messages []Message, maxTokens int) Request {
	return Request{
		CustomID: customID,
		Method:   "POST",
		URL:      EndpointChatCompletions,
		Body: ChatBody{
			Model:     model,
			Messages:  messages,
			MaxTokens: maxTokens,
		},
	}
}

// RequestCounts as reported by the batch object
type RequestCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Batch is the remote batch object
type Batch struct {
	ID               string            `json:"id"`
	Status           Status            `json:"status"`
	Endpoint         string            `json:"endpoint"`
	InputFileID      string            `json:"input_file_id"`
	OutputFileID     string            `json:"output_file_id"`
	ErrorFileID      string            `json:"error_file_id"`
	CompletionWindow string            `json:"completion_window"`
	CreatedAt        int64             `json:"created_at"`
	RequestCounts    RequestCounts     `json:"request_counts"`
	Metadata         map[string]string `json:"metadata"`
}

// File is an uploaded file object
type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
	Bytes    int64  `json:"bytes"`
}

// Output is one parsed line of a batch output file
type Output struct {
	CustomID   string
	StatusCode int
	Content    string
	Error      string
}

// OK reports whether the request produced a usable completion
func (o Output) OK() bool {
	return o.StatusCode == 200 && o.Error == ""
}

// ParseOutput parses a batch output JSONL payload. Blank lines are skipped
// and malformed lines are logged and dropped.
func ParseOutput(data []byte) []Output {
	var outputs []Output
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			internal.DefaultLogger.Warn("[Batch] skipping malformed output line %d", n+1)
			continue
		}
		outputs = append(outputs, parseOutputLine(gjson.Parse(line)))
	}
	return outputs
}

func parseOutputLine(line gjson.Result) Output {
	out := Output{
		CustomID: line.Get("custom_id").String(),
		Error:    line.Get("error.message").String(),
	}
	resp := line.Get("response")
	if !resp.IsObject() {
		if out.Error == "" {
			out.Error = "missing response"
		}
		return out
	}
	out.StatusCode = int(resp.Get("status_code").Int())

	if msg := resp.Get("body.error.message").String(); msg != "" {
		out.Error = msg
		return out
	}
	content := resp.Get("body.choices.0.message.content")
	if !content.Exists() {
		if out.Error == "" && out.StatusCode == 200 {
			out.Error = "missing choices"
		}
		return out
	}
	out.Content = strings.TrimSpace(content.String())
	if out.StatusCode != 200 && out.Error == "" {
		out.Error = "Unknown error"
	}
	return out
}
