// Package security escapes untrusted text before it is placed in HTML.
//
// html/template already escapes values rendered through templates; this
// package covers the snippets built outside templates (flash messages,
// server-provided error details, row summaries).
package security

import (
	"fmt"
	"html"
	"html/template"
	"regexp"
)

// Escape returns s with & < > " ' replaced by HTML entities.
func Escape(s string) string {
	if s == "" {
		return ""
	}
	return html.EscapeString(s)
}

// EscapeValue formats any value with %v and escapes it. nil becomes "".
func EscapeValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return Escape(s)
	}
	return Escape(fmt.Sprint(v))
}

var placeholder = regexp.MustCompile(`\$\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}`)

// Interpolate replaces every ${key} in the trusted snippet tmpl with the
// escaped value of data[key]. Missing keys become "".
func Interpolate(tmpl string, data map[string]any) template.HTML {
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		return EscapeValue(data[key])
	})
	return template.HTML(out)
}

// SanitizeMap returns a copy of m with every string value escaped,
// descending into nested maps and slices.
func SanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = sanitize(v)
	}
	return out
}

func sanitize(v any) any {
	switch t := v.(type) {
	case string:
		return Escape(t)
	case map[string]any:
		return SanitizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sanitize(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = Escape(e)
		}
		return out
	}
	return v
}
