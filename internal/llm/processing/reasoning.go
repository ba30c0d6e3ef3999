// Package processing post-processes raw model answers before they are parsed.
package processing

import "strings"

const (
	ThinkStart = "<think>"
	ThinkEnd   = "</think>"
)

// SplitReasoning separates <think>...</think> blocks, as emitted by
// reasoning models, from the answer proper. An unclosed block runs to the
// end of text.
func SplitReasoning(text string) (answer string, reasoning string) {
	if !strings.Contains(text, ThinkStart) {
		return text, ""
	}

	var ans, thought strings.Builder
	rest := text
	for {
		start := strings.Index(rest, ThinkStart)
		if start < 0 {
			ans.WriteString(rest)
			break
		}
		ans.WriteString(rest[:start])
		rest = rest[start+len(ThinkStart):]

		end := strings.Index(rest, ThinkEnd)
		if end < 0 {
			thought.WriteString(rest)
			break
		}
		thought.WriteString(rest[:end])
		rest = rest[end+len(ThinkEnd):]
	}

	return ans.String(), thought.String()
}

// StripReasoning returns text without its reasoning blocks.
func StripReasoning(text string) string {
	answer, _ := SplitReasoning(text)
	return answer
}
