package engine

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w-]+(?:\.[\w-]+)*)\s*\}\}`)

// Render substitutes {{variable}} tokens from vars into s. Dotted paths
// look up flat context keys ("actions.step-1.output.messageId").
// Unresolved tokens are left as the literal placeholder text, never
// silently blanked; the second return value lists them.
func Render(s string, vars map[string]any) (string, []string) {
	var unresolved []string
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		key := strings.TrimSpace(strings.Trim(match, "{}"))
		v, ok := vars[key]
		if !ok || v == nil {
			unresolved = append(unresolved, key)
			return match
		}
		return fmt.Sprintf("%v", v)
	})
	return out, unresolved
}

// RenderConfig renders every string value in config, recursing into
// nested maps and slices. It returns a new map; the input is not
// modified.
func RenderConfig(config map[string]any, vars map[string]any) (map[string]any, []string) {
	var unresolved []string
	rendered := renderValue(config, vars, &unresolved)
	m, _ := rendered.(map[string]any)
	return m, unresolved
}

func renderValue(v any, vars map[string]any, unresolved *[]string) any {
	switch val := v.(type) {
	case string:
		out, missing := Render(val, vars)
		*unresolved = append(*unresolved, missing...)
		return out
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = renderValue(inner, vars, unresolved)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = renderValue(inner, vars, unresolved)
		}
		return s
	default:
		return v
	}
}
