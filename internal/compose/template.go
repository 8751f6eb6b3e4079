package compose

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// placeholder pattern for template substitution: {field_name}
var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Template is a subject and body with {field} placeholders.
type Template struct {
	Subject string
	Body    string
}

// Placeholders returns the distinct placeholder names used by the
// template, sorted.
func (t Template) Placeholders() []string {
	seen := make(map[string]bool)
	for _, text := range []string{t.Subject, t.Body} {
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			seen[m[1]] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks every placeholder against the known field set. A
// placeholder with no matching field is a configuration error caught
// once at startup, before any sending begins.
func (t Template) Validate(fields []string) error {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}

	var unknown []string
	for _, name := range t.Placeholders() {
		if !known[name] {
			unknown = append(unknown, "{"+name+"}")
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("template references unknown fields: %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(fields, ", "))
	}
	return nil
}

// Render substitutes every placeholder with the matching value. The
// template must have been validated against the value set, so no
// placeholder is left unresolved.
func (t Template) Render(values map[string]string) (subject, body string) {
	return renderText(t.Subject, values), renderText(t.Body, values)
}

func renderText(text string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := values[name]; ok {
			return value
		}
		return match
	})
}
