// Package evaluation compares generated code with a reference
// implementation. It reports a line diff and two similarity ratios; scoring
// rubrics are left to the caller.
package evaluation

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type Report struct {
	// Diff is a unified-style line diff from reference to generated.
	Diff string `json:"diff"`
	// CharSimilarity is 1 - levenshtein/max(len) over normalized text.
	CharSimilarity float64 `json:"char_similarity"`
	// LineSimilarity is the share of lines the two versions have in common.
	LineSimilarity float64 `json:"line_similarity"`
	Added          int     `json:"added"`
	Removed        int     `json:"removed"`
}

// Normalize trims trailing whitespace per line, unifies line endings and
// drops surrounding blank lines.
func Normalize(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

func Compare(generated, reference string) Report {
	gen, ref := Normalize(generated), Normalize(reference)
	dmp := diffmatchpatch.New()

	var r Report
	r.CharSimilarity = charSimilarity(dmp, ref, gen)

	a, b, lines := dmp.DiffLinesToChars(terminated(ref), terminated(gen))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	sb.WriteString("--- reference\n+++ generated\n")
	common := 0
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range splitLines(d.Text) {
			sb.WriteString(prefix + line + "\n")
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				r.Added++
			case diffmatchpatch.DiffDelete:
				r.Removed++
			default:
				common++
			}
		}
	}
	r.Diff = sb.String()

	total := common*2 + r.Added + r.Removed
	if total == 0 {
		r.LineSimilarity = 1
	} else {
		r.LineSimilarity = float64(2*common) / float64(total)
	}
	return r
}

func charSimilarity(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	dist := dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))
	return 1 - float64(dist)/float64(longest)
}

// terminated ends every line with \n so the last line compares equal.
func terminated(s string) string {
	if s == "" {
		return s
	}
	return s + "\n"
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
