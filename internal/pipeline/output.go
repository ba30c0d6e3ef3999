package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nulzo/reliability-forge/internal/llm/processing"
	"github.com/tidwall/gjson"
)

var ErrMalformedOutput = errors.New("malformed model output")

// StripFences removes a leading and trailing markdown code fence, if any.
func StripFences(code string) string {
	lines := strings.Split(strings.TrimSpace(code), "\n")
	if len(lines) > 0 && (strings.HasPrefix(lines[0], "```") || strings.HasPrefix(lines[0], "~~~")) {
		lines = lines[1:]
	}
	if len(lines) > 0 && (strings.HasPrefix(lines[len(lines)-1], "```") || strings.HasPrefix(lines[len(lines)-1], "~~~")) {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExtractCode returns the body of the first fenced block in answer, or the
// whole answer without fences when it has no complete block. Reasoning
// blocks are dropped first.
func ExtractCode(answer string) string {
	answer = processing.StripReasoning(answer)
	start := strings.Index(answer, "```")
	if start < 0 {
		return StripFences(answer)
	}
	rest := answer[start+3:]
	// skip the info string, e.g. ```csharp
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		return StripFences(answer)
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return StripFences(answer)
	}
	return strings.TrimSpace(rest[:end])
}

// jsonObject finds the JSON object in a model answer. Answers may be fenced
// or wrapped in prose.
func jsonObject(answer string) (gjson.Result, bool) {
	text := StripFences(processing.StripReasoning(answer))
	if gjson.Valid(text) {
		if doc := gjson.Parse(text); doc.IsObject() {
			return doc, true
		}
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}
	text = text[start : end+1]
	if !gjson.Valid(text) {
		return gjson.Result{}, false
	}
	return gjson.Parse(text), true
}

// requiredString reads a non-empty string field of a structured answer.
func requiredString(stage string, doc gjson.Result, field string) (string, error) {
	v := doc.Get(field)
	if !v.Exists() {
		return "", fmt.Errorf("%w: %s answer has no %q", ErrMalformedOutput, stage, field)
	}
	if v.Type != gjson.String || strings.TrimSpace(v.Str) == "" {
		return "", fmt.Errorf("%w: %s answer has empty %q", ErrMalformedOutput, stage, field)
	}
	return v.Str, nil
}

func parseObject(stage, answer string) (gjson.Result, error) {
	doc, ok := jsonObject(answer)
	if !ok {
		return gjson.Result{}, fmt.Errorf("%w: %s answer is not a JSON object", ErrMalformedOutput, stage)
	}
	return doc, nil
}
