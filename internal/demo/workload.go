// Package demo is a small instrumented program: it parses a markdown-like
// document and renders it as wrapped text, logging through a Dispatcher.
package demo

import (
	"context"
	"strings"

	"github.com/tphakala/scopelog/internal/logger"
)

// SampleText is the document processed when none is given.
const SampleText = `# Release notes
Filtering decisions are cached per call site.
Rules may target a file, a function or a line range.

# Formatting
Templates support padding, truncation and path segments.
Styles are resolved once when the template is compiled.

# Known issues
`

// Section is a heading and its paragraph lines.
type Section struct {
	Heading string
	Lines   []string
}

// Stats summarizes a run.
type Stats struct {
	Sections int
	Lines    int
	Empty    int
}

// Run parses text and renders it at width columns. It returns the rendered
// lines and the run statistics.
func Run(ctx context.Context, d *logger.Dispatcher, text string, width int) ([]string, Stats) {
	ctx, scope := d.EnterScope(ctx, logger.LevelProgress, "demo")
	defer scope.Exit()

	sections := parseDocument(ctx, d, text)
	headings := make([]string, 0, len(sections))
	for _, s := range sections {
		headings = append(headings, s.Heading)
	}
	_ = d.Dump(ctx, logger.LevelDebug, logger.Caller(0), "headings", headings)

	out, stats := renderPage(ctx, d, sections, width)
	d.Check(ctx, logger.LevelError, len(out) > 0, "rendered output is not empty")
	d.Log(ctx, logger.LevelInfo, logger.Msg("done"),
		logger.Int("sections", stats.Sections), logger.Int("lines", stats.Lines), logger.String("status", status(stats)))
	return out, stats
}

func status(s Stats) string {
	if s.Empty > 0 {
		return "degraded"
	}
	return "ok"
}

func parseDocument(ctx context.Context, d *logger.Dispatcher, text string) []Section {
	ctx, scope := d.EnterScope(ctx, logger.LevelDebug, "parseDocument")
	defer scope.Exit()

	var (
		sections []Section
		current  *Section
	)
	for raw := range strings.Lines(text) {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "#"):
			sections = append(sections, parseHeader(ctx, d, line))
			current = &sections[len(sections)-1]
		case line == "":
			continue
		case current == nil:
			d.Log(ctx, logger.LevelWarn, logger.Msg("text before the first heading"), logger.String("line", line))
		default:
			current.Lines = append(current.Lines, line)
		}
	}
	d.Logf(ctx, logger.LevelDebug, "parsed %d sections", len(sections))
	return sections
}

func parseHeader(ctx context.Context, d *logger.Dispatcher, line string) Section {
	heading := strings.TrimSpace(strings.TrimLeft(line, "#"))
	d.Log(ctx, logger.LevelTrace, func() string { return "heading " + heading },
		logger.Int("level", len(line)-len(strings.TrimLeft(line, "#"))))
	return Section{Heading: heading}
}

func renderPage(ctx context.Context, d *logger.Dispatcher, sections []Section, width int) ([]string, Stats) {
	ctx, scope := d.EnterScope(ctx, logger.LevelDebug, "renderPage")
	defer scope.Exit()

	var (
		out   []string
		stats Stats
	)
	for _, s := range sections {
		stats.Sections++
		out = append(out, strings.ToUpper(s.Heading))
		if len(s.Lines) == 0 {
			stats.Empty++
			d.LogDepth(ctx, logger.LevelNote, 1, logger.Msg("empty section"), logger.String("heading", s.Heading))
			continue
		}
		for _, l := range s.Lines {
			wrapped := wrap(l, width)
			stats.Lines += len(wrapped)
			out = append(out, wrapped...)
		}
	}
	d.Logf(ctx, logger.LevelDebug, "rendered %d lines at width %d", len(out), width)
	return out, stats
}

// wrap breaks s into lines of at most width bytes on spaces. Words longer
// than width are kept whole.
func wrap(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	var (
		lines []string
		cur   strings.Builder
	)
	for word := range strings.FieldsSeq(s) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
