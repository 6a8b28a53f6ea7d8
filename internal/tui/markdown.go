package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdown renders message bodies with glamour. Messages never change once
// stored, so output is cached per message and width.
type markdown struct {
	enabled  bool
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

func newMarkdown(enabled bool) *markdown {
	return &markdown{enabled: enabled, cache: make(map[string]string)}
}

// SetWidth changes the wrap width. The cache is dropped when it changes.
func (md *markdown) SetWidth(width int) {
	if width == md.width {
		return
	}
	md.width = width
	md.renderer = nil
	clear(md.cache)
}

// Render returns the rendered body for message id. Plain text is returned
// when rendering is disabled or fails.
func (md *markdown) Render(id, text string) string {
	if !md.enabled || md.width <= 0 {
		return text
	}
	if out, ok := md.cache[id]; ok {
		return out
	}

	if md.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("tokyo-night"),
			glamour.WithWordWrap(md.width),
		)
		if err != nil {
			md.enabled = false
			return text
		}
		md.renderer = r
	}

	rendered, err := md.renderer.Render(text)
	if err != nil {
		return text
	}

	out := strings.TrimSpace(rendered)
	out = stripLeadingDecorative(out)
	out = stripTrailingDecorative(out)
	md.cache[id] = out
	return out
}

// ansiPattern matches ANSI escape sequences.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// isDecorativeLine checks if a line contains only decorative characters
// (horizontal rules, spaces) after stripping ANSI codes.
func isDecorativeLine(line string) bool {
	stripped := strings.TrimSpace(ansiPattern.ReplaceAllString(line, ""))
	if stripped == "" {
		return true
	}
	for _, r := range stripped {
		if r != '─' && r != '━' && r != '-' && r != '=' {
			return false
		}
	}
	return true
}

func stripLeadingDecorative(content string) string {
	lines := strings.Split(content, "\n")
	start := 0
	for start < len(lines) && isDecorativeLine(lines[start]) {
		start++
	}
	return strings.Join(lines[start:], "\n")
}

func stripTrailingDecorative(content string) string {
	lines := strings.Split(content, "\n")
	end := len(lines)
	for end > 0 && isDecorativeLine(lines[end-1]) {
		end--
	}
	return strings.Join(lines[:end], "\n")
}
