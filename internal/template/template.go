// Package template renders operator message templates against contact fields.
package template

import "regexp"

// Mode selects how empty or unknown fields render.
type Mode int

const (
	// ModeSend keeps the placeholder text when a field is empty, so the
	// operator can spot unfilled fields in what was dispatched.
	ModeSend Mode = iota
	// ModePreview renders empty and unknown fields as the empty string.
	ModePreview
)

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Render substitutes every {key} in tmpl with fields[key].
// Substituted values are never re-expanded.
func Render(tmpl string, fields map[string]string, mode Mode) string {
	if tmpl == "" {
		return ""
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := fields[key]
		switch {
		case ok && value != "":
			return value
		case mode == ModePreview:
			return ""
		default:
			return match
		}
	})
}

// Placeholders lists the distinct placeholder names of tmpl in order of first use.
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Unknown returns the placeholders of tmpl that are not in headers.
func Unknown(tmpl string, headers []string) []string {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	var unknown []string
	for _, name := range Placeholders(tmpl) {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}
