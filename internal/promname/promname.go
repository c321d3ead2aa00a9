// Package promname maps dotted series names and tag keys onto the
// Prometheus naming rules.
package promname

import "strings"

func valid(r rune, first bool) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
		return true
	case r >= '0' && r <= '9':
		return !first
	default:
		return false
	}
}

// Sanitize replaces every character outside [a-zA-Z0-9_:] with '_' and
// prefixes a leading digit with '_'.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, r := range s {
		if i == 0 && r >= '0' && r <= '9' {
			b.WriteByte('_')
		}
		if valid(r, false) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Label sanitizes a label name. Colons are not allowed in label names.
func Label(s string) string {
	return strings.ReplaceAll(Sanitize(s), ":", "_")
}

// Metric joins the non-empty parts with '_' and sanitizes the result.
func Metric(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return Sanitize(strings.Join(kept, "_"))
}
