package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitReasoning(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantAnswer    string
		wantReasoning string
	}{
		{"no reasoning", `{"a": 1}`, `{"a": 1}`, ""},
		{"leading block", "<think>the user wants retry</think>\n{\"a\": 1}", "\n{\"a\": 1}", "the user wants retry"},
		{"trailing block", "done<think>check</think>", "done", "check"},
		{"multiple blocks", "<think>R1</think>C1<think>R2</think>C2", "C1C2", "R1R2"},
		{"unclosed", "Hello <think>still thinking", "Hello ", "still thinking"},
		{"stray end tag", "a</think>b", "a</think>b", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, reasoning := SplitReasoning(tt.input)
			assert.Equal(t, tt.wantAnswer, answer)
			assert.Equal(t, tt.wantReasoning, reasoning)
		})
	}
}

func TestStripReasoning(t *testing.T) {
	assert.Equal(t, "```cs\nx\n```", StripReasoning("<think>plan</think>```cs\nx\n```"))
}
