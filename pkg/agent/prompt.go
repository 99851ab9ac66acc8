package agent

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// RenderPrompt substitutes {field} placeholders in template with values from
// vars. Prompt templates contain JSON examples that also use braces, so any
// placeholder inside a fenced code block (``` ... ```) is left untouched, and
// placeholders with no matching variable are preserved as-is.
func RenderPrompt(template string, vars map[string]any) string {
	lines := strings.Split(template, "\n")
	inFence := false

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		lines[i] = placeholderPattern.ReplaceAllStringFunc(line, func(match string) string {
			key := match[1 : len(match)-1]
			value, ok := vars[key]
			if !ok {
				return match
			}
			return stringify(value)
		})
	}

	return strings.Join(lines, "\n")
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
