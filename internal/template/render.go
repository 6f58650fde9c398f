package template

import "strings"

// Render fills {{var}} placeholders in body from vars.
//
// Rules:
// - Pure string substitution; no side effects and no template registry.
// - Placeholder names are trimmed, so {{ name }} and {{name}} are equivalent.
// - Unknown placeholders render as the empty string rather than leaking
//   braces into customer-facing copy.
func Render(body string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(body))

	rest := body
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end += start

		b.WriteString(rest[:start])
		name := strings.TrimSpace(rest[start+2 : end])
		if vars != nil {
			b.WriteString(vars[name])
		}
		rest = rest[end+2:]
	}
}
