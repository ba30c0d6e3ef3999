package api

import "time"

// ChatResponse carries Content for single-model calls and Contents for fan-out.
type ChatResponse struct {
	Object   string            `json:"object"` // "chat.result"
	Model    string            `json:"model,omitempty"`
	Content  string            `json:"content,omitempty"`
	Contents map[string]string `json:"contents,omitempty"`
}

type RunResponse struct {
	ID       string    `json:"id,omitempty"`
	Object   string    `json:"object"` // "pipeline.run"
	Pattern  string    `json:"pattern"`
	Found    bool      `json:"found"`
	Messages []Message `json:"messages"`
}

type Run struct {
	ID               string            `json:"id"`
	Source           string            `json:"source"`
	Input            string            `json:"input"`
	RequestedPattern string            `json:"requested_pattern,omitempty"`
	Pattern          string            `json:"pattern,omitempty"`
	Code             string            `json:"code,omitempty"`
	CodeByModel      map[string]string `json:"code_by_model,omitempty"`
	Models           []string          `json:"models,omitempty"`
	Status           string            `json:"status"`
	Error            string            `json:"error,omitempty"`
	LatencyMS        int64             `json:"latency_ms"`
	CreatedAt        time.Time         `json:"created_at"`
}

type List[T any] struct {
	Object string `json:"object"` // "list"
	Data   []T    `json:"data"`
}

func NewList[T any](data []T) List[T] {
	if data == nil {
		data = []T{}
	}
	return List[T]{Object: "list", Data: data}
}

type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Models  int    `json:"models"`
	Store   bool   `json:"store"`
}
