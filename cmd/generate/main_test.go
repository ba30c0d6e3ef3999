package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nulzo/reliability-forge/internal/cli"
	"github.com/nulzo/reliability-forge/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	res *pipeline.Result
	err error
}

func (s stubRunner) Run(context.Context, string) (*pipeline.Result, error) {
	return s.res, s.err
}

func TestGenerate_WithReference(t *testing.T) {
	cli.SetEnabled(false)
	defer cli.SetEnabled(true)

	var out bytes.Buffer
	r := stubRunner{res: &pipeline.Result{Pattern: "retry", Code: "a\nB", Found: true}}

	require.NoError(t, generate(context.Background(), r, "x", "a\nb\n", false, &out))

	assert.Contains(t, out.String(), "a\nB\n")
	assert.Contains(t, out.String(), "-b\n+B\n")
	assert.Contains(t, out.String(), "line similarity 50%")
}

func TestGenerate_FanOutJSON(t *testing.T) {
	cli.SetEnabled(false)
	defer cli.SetEnabled(true)

	var out bytes.Buffer
	r := stubRunner{res: &pipeline.Result{
		Pattern:     "retry",
		Code:        "one",
		CodeByModel: map[string]string{"m1": "one", "m2": "two"},
		Found:       true,
	}}

	require.NoError(t, generate(context.Background(), r, "x", "one", true, &out))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	eval := body["evaluation"].(map[string]interface{})
	assert.EqualValues(t, 1, eval["m1"].(map[string]interface{})["line_similarity"])
	assert.Contains(t, eval, "m2")
}

func TestGenerate_NoTemplateSkipsEvaluation(t *testing.T) {
	cli.SetEnabled(false)
	defer cli.SetEnabled(true)

	var out bytes.Buffer
	r := stubRunner{res: &pipeline.Result{Pattern: "saga", Code: pipeline.Placeholder("saga")}}

	require.NoError(t, generate(context.Background(), r, "x", "ref", false, &out))
	assert.Contains(t, out.String(), `no template for pattern "saga"`)
	assert.NotContains(t, out.String(), "similarity")
}

func TestGenerate_PropagatesError(t *testing.T) {
	err := generate(context.Background(), stubRunner{err: pipeline.ErrMalformedOutput}, "x", "", false, &bytes.Buffer{})
	assert.True(t, errors.Is(err, pipeline.ErrMalformedOutput))
}

func TestReadInput(t *testing.T) {
	got, err := readInput("-", strings.NewReader("add retry"))
	require.NoError(t, err)
	assert.Equal(t, "add retry", got)

	_, err = readInput("", strings.NewReader("  \n"))
	assert.EqualError(t, err, "input is empty")

	got, err = readInput("../../testdata/examples/circuit_breaker.cs", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
