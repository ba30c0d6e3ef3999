package evaluation

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_Identical(t *testing.T) {
	code := "class A {\n  void F() {}\n}\n"

	r := Compare(code, code+"\n\n")
	assert.Equal(t, 1.0, r.CharSimilarity)
	assert.Equal(t, 1.0, r.LineSimilarity)
	assert.Zero(t, r.Added)
	assert.Zero(t, r.Removed)
	assert.Equal(t, "--- reference\n+++ generated\n class A {\n   void F() {}\n }\n", r.Diff)
}

func TestCompare_Changed(t *testing.T) {
	ref := "a\nb\nc"
	gen := "a\nB\nc\nd"

	r := Compare(gen, ref)
	assert.Equal(t, 2, r.Added)
	assert.Equal(t, 1, r.Removed)
	assert.Contains(t, r.Diff, "-b\n")
	assert.Contains(t, r.Diff, "+B\n")
	assert.Contains(t, r.Diff, "+d\n")
	assert.InDelta(t, 4.0/7.0, r.LineSimilarity, 1e-9)
	assert.Greater(t, r.CharSimilarity, 0.0)
	assert.Less(t, r.CharSimilarity, 1.0)
}

func TestCompare_Empty(t *testing.T) {
	r := Compare("", "")
	assert.Equal(t, 1.0, r.CharSimilarity)
	assert.Equal(t, 1.0, r.LineSimilarity)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a\n  b", Normalize("\r\na  \r\n  b\t\r\n\r\n"))
}

func TestCompare_ReferenceCorpus(t *testing.T) {
	ref, err := os.ReadFile("../../testdata/reference_code/circuit_breaker.cs")
	require.NoError(t, err)
	input, err := os.ReadFile("../../testdata/examples/circuit_breaker.cs")
	require.NoError(t, err)

	self := Compare(string(ref), string(ref))
	other := Compare(string(input), string(ref))

	assert.Equal(t, 1.0, self.LineSimilarity)
	assert.Less(t, other.LineSimilarity, 1.0)
	assert.Greater(t, other.Added+other.Removed, 0)
}
