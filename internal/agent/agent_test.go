package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nulzo/reliability-forge/internal/pipeline"
	"github.com/nulzo/reliability-forge/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, text string) (*pipeline.Result, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

func agentSource(ctx context.Context) bool {
	return pipeline.SourceFrom(ctx) == model.SourceAgent
}

func TestRun_UsesLastUserMessage(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.MatchedBy(agentSource), "second").
		Return(&pipeline.Result{Code: "class A {}", Found: true}, nil).Once()

	a := New(runner)
	resp, err := a.Run(context.Background(), []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "ok"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleUser, Content: "   "},
	})
	require.NoError(t, err)
	assert.Equal(t, []Message{{Role: RoleAssistant, Content: "class A {}"}}, resp.Messages)
	assert.Equal(t, DefaultName, a.Name())
	runner.AssertExpectations(t)
}

func TestRun_FanOutAnswers(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.Anything, "go").Return(&pipeline.Result{
		Code:        "b",
		CodeByModel: map[string]string{"zeta": "z", "alpha": "a"},
	}, nil)

	resp, err := New(runner).Run(context.Background(), []Message{{Role: RoleUser, Content: "go"}})
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Role: RoleAssistant, Content: "a", Name: "alpha"},
		{Role: RoleAssistant, Content: "z", Name: "zeta"},
	}, resp.Messages)
}

func TestRun_NoInput(t *testing.T) {
	runner := new(MockRunner)

	_, err := New(runner).Run(context.Background(), []Message{{Role: RoleAssistant, Content: "hi"}})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = New(runner).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoInput)

	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestRun_KeepsExplicitSource(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.MatchedBy(func(ctx context.Context) bool {
		return pipeline.SourceFrom(ctx) == model.SourceCLI
	}), "x").Return(&pipeline.Result{Code: "c"}, nil)

	ctx := pipeline.WithSource(context.Background(), model.SourceCLI)
	_, err := New(runner).Run(ctx, []Message{{Role: RoleUser, Content: "x"}})
	require.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestRunAsync(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.Anything, "ok").Return(&pipeline.Result{Code: "done"}, nil)
	runner.On("Run", mock.Anything, "fail").Return(nil, errors.New("boom"))

	a := New(runner, WithName("test"))

	select {
	case res := <-a.RunAsync(context.Background(), []Message{{Role: RoleUser, Content: "ok"}}):
		require.NoError(t, res.Err)
		assert.Equal(t, "done", res.Response.Messages[0].Content)
	case <-time.After(2 * time.Second):
		t.Fatal("RunAsync did not deliver")
	}

	ch := a.RunAsync(context.Background(), []Message{{Role: RoleUser, Content: "fail"}})
	res := <-ch
	assert.EqualError(t, res.Err, "boom")
	assert.Nil(t, res.Response)

	_, open := <-ch
	assert.False(t, open)
}
