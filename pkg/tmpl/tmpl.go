// Package tmpl provides text/template helpers for user supplied output
// formats.
package tmpl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

var funcs = template.FuncMap{
	"short": short,
	"clock": clock,
	"since": since,
	"oneline": func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	},
	"trunc": trunc,
}

// short returns the first eight characters of an ID.
func short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// clock formats t as a local wall clock time.
func clock(t time.Time) string {
	return t.Local().Format("15:04:05")
}

// since returns a rounded duration since t, e.g. "3m".
func since(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func trunc(n int, s string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// Template is a parsed output format.
type Template struct {
	t *template.Template
}

// Parse compiles tmpl. References to undefined keys are errors at execution.
//
// Available template functions:
//   - short: first eight characters of an ID
//   - clock: local HH:MM:SS of a time
//   - since: rounded age of a time ("42s", "3m", "5h", "2d")
//   - oneline: collapse whitespace and newlines
//   - trunc N: cut a string to N runes
func Parse(tmpl string) (*Template, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return &Template{t: t}, nil
}

// Execute renders the template with data.
func (t *Template) Execute(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// Render parses and executes tmpl in one step.
func Render(tmpl string, data any) (string, error) {
	t, err := Parse(tmpl)
	if err != nil {
		return "", err
	}
	return t.Execute(data)
}
