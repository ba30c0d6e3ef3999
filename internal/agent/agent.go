package agent

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/nulzo/reliability-forge/internal/pipeline"
	"github.com/nulzo/reliability-forge/internal/store/model"
	"go.uber.org/zap"
)

const DefaultName = "Reliability Design Agent"

var ErrNoInput = errors.New("no user message to act on")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content"`
	// Name identifies the generating model on fan-out answers.
	Name string `json:"name,omitempty"`
}

type Response struct {
	Messages []Message       `json:"messages"`
	Result   *pipeline.Result `json:"-"`
}

type RunResult struct {
	Response *Response
	Err      error
}

// Runner is satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, text string) (*pipeline.Result, error)
}

// Agent turns a chat transcript into one pipeline run.
type Agent struct {
	name   string
	runner Runner
	logger *zap.Logger
}

type Option func(*Agent)

func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

func New(runner Runner, opts ...Option) *Agent {
	a := &Agent{name: DefaultName, runner: runner, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Name() string {
	return a.name
}

// Run feeds the last user message to the pipeline and answers with the
// generated code.
func (a *Agent) Run(ctx context.Context, messages []Message) (*Response, error) {
	input, ok := lastUserMessage(messages)
	if !ok {
		return nil, ErrNoInput
	}

	if pipeline.SourceFrom(ctx) == model.SourceAPI {
		ctx = pipeline.WithSource(ctx, model.SourceAgent)
	}

	res, err := a.runner.Run(ctx, input)
	if err != nil {
		a.logger.Warn("Agent run failed", zap.String("agent", a.name), zap.Error(err))
		return nil, err
	}

	return &Response{Messages: answer(res), Result: res}, nil
}

// RunAsync runs in its own goroutine. The channel yields exactly one
// result and is then closed.
func (a *Agent) RunAsync(ctx context.Context, messages []Message) <-chan RunResult {
	out := make(chan RunResult, 1)
	go func() {
		defer close(out)
		resp, err := a.Run(ctx, messages)
		out <- RunResult{Response: resp, Err: err}
	}()
	return out
}

func lastUserMessage(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content, true
		}
	}
	return "", false
}

func answer(res *pipeline.Result) []Message {
	if len(res.CodeByModel) == 0 {
		return []Message{{Role: RoleAssistant, Content: res.Code}}
	}

	names := make([]string, 0, len(res.CodeByModel))
	for name := range res.CodeByModel {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]Message, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, Message{Role: RoleAssistant, Content: res.CodeByModel[name], Name: name})
	}
	return msgs
}
