package api

// ChatRequest sends one prompt to one model, or to several when Models is set.
type ChatRequest struct {
	Prompt    string   `json:"prompt" binding:"required"`
	Model     string   `json:"model,omitempty"`
	Models    []string `json:"models,omitempty" binding:"omitempty,dive,required"`
	MaxTokens int      `json:"max_tokens,omitempty" binding:"omitempty,min=1,max=32768"`
}

// RunRequest drives the full pipeline. The last user message is the input.
type RunRequest struct {
	Messages []Message `json:"messages" binding:"required,min=1,dive"`
}

type Message struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}
