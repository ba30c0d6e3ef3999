package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
)

// disableColor is a cached check for the environment variable
var disableColor = checkNoColor()

func checkNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// Enabled reports whether ANSI colors are emitted.
func Enabled() bool {
	return !disableColor
}

// SetEnabled overrides the NO_COLOR check, e.g. for a --no-color flag.
func SetEnabled(on bool) {
	disableColor = !on
}

// Style wraps text in a specific color code
func Style(text string, colorCode string) string {
	if disableColor {
		return text
	}
	return colorCode + text + Reset
}

func CheckMark() string {
	return Style("✔", Green)
}

func Arrow() string {
	return Style("➜", Blue)
}

func CrossMark() string {
	return Style("✘", Red)
}

func WarningSign() string {
	return Style("⚠", Yellow)
}

// ColorDiff colors the +/- lines of a unified-style diff.
func ColorDiff(diff string) string {
	if disableColor {
		return diff
	}
	lines := strings.SplitAfter(diff, "\n")
	var sb strings.Builder
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			sb.WriteString(Style(l, Bold))
		case strings.HasPrefix(l, "+"):
			sb.WriteString(Style(l, Green))
		case strings.HasPrefix(l, "-"):
			sb.WriteString(Style(l, Red))
		default:
			sb.WriteString(l)
		}
	}
	return sb.String()
}

// Similarity renders a 0..1 evaluation ratio as a percentage: green from
// 0.9, yellow from 0.6, red below.
func Similarity(ratio float64) string {
	text := fmt.Sprintf("%.0f%%", ratio*100)
	switch {
	case ratio >= 0.9:
		return Style(text, Green)
	case ratio >= 0.6:
		return Style(text, Yellow)
	default:
		return Style(text, Red)
	}
}

// ModelLine is the startup listing entry of one configured model.
func ModelLine(name, provider string, isDefault bool) string {
	line := CheckMark() + " " + Style(name, Bold) + " " + Style(provider, Dim)
	if isDefault {
		line += " " + Style("(default)", Cyan)
	}
	return line
}

// jsonTokenRegex matches keys (quoted strings followed by a colon), string
// values, and numbers, booleans or null.
var jsonTokenRegex = regexp.MustCompile(`("(\\u[a-zA-Z0-9]{4}|\\[^u]|[^\\"])*"(\s*:)?|\b(true|false|null)\b|-?\d+(?:\.\d*)?(?:[eE][+\-]?\d+)?)`)

// HighlightJSON takes a JSON string (minified or indented) and applies ANSI colors.
func HighlightJSON(jsonStr string) string {
	if disableColor {
		return jsonStr
	}

	return jsonTokenRegex.ReplaceAllStringFunc(jsonStr, func(token string) string {
		switch {
		case strings.HasSuffix(token, ":"):
			return Style(token[:len(token)-1], Blue) + ":"
		case strings.HasPrefix(token, "\""):
			return Style(token, Green)
		case token == "true" || token == "false":
			return Style(token, Yellow)
		case token == "null":
			return Style(token, Dim)
		default:
			return Style(token, Purple)
		}
	})
}

// PrettyFormat marshals v to indented JSON and colorizes it.
func PrettyFormat(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return HighlightJSON(string(b))
}
