// Package format renders log records into styled lines.
//
// A template mixes literal text with placeholders written {name}, {name:spec}
// or %name. Doubled %% and {{ produce a literal character. Placeholders with
// an unknown name are emitted unchanged.
package format

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/style"
)

const componentFormat = "format"

// renderErrorMarker replaces a value whose String method panicked.
const renderErrorMarker = "<!render error>"

// Level is the severity of a record as the formatter sees it.
type Level interface {
	String() string // long name, e.g. "debug"
	Short() string  // four letter name, e.g. "dbug"
}

// Field is a named value attached to a record.
type Field struct {
	Key   string
	Value any
}

// Record is everything a line is rendered from.
type Record struct {
	Level   Level
	File    string
	Func    string
	Line    int
	Depth   int
	Time    time.Time
	Message string
	Fields  []Field
}

// Value returns the value of the last field named key.
func (r *Record) Value(key string) (any, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Key == key {
			return r.Fields[i].Value, true
		}
	}
	return nil, false
}

// Formatter renders records. It is immutable after New and safe for
// concurrent use.
type Formatter struct {
	template string
	segments []segment
	hasFill  bool

	indent    string
	depthMark string
	hfillMark string
	hfillMin  int
	hfillMax  int

	filename   FilenameMode
	timeFormat string
	location   *time.Location

	colored        bool
	levelTag       *Tag
	depthStyles    []style.Style
	fileHashStyles []style.Style
	funcHashStyles []style.Style
	styles         map[string]style.Style
	tags           map[string]*Tag

	name  string
	now   func() time.Time
	width func() int

	out      io.Writer
	colorSet bool
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithOutput names the writer lines go to. It decides colour in auto mode and
// the terminal width used by {hfill}.
func WithOutput(w io.Writer) Option {
	return func(f *Formatter) { f.out = w }
}

// WithColor forces escapes on or off regardless of the configured mode.
func WithColor(enabled bool) Option {
	return func(f *Formatter) {
		f.colored = enabled
		f.colorSet = true
	}
}

// WithName sets the program name rendered by {name}.
func WithName(name string) Option {
	return func(f *Formatter) { f.name = name }
}

// WithClock sets the time source for records without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// WithWidth overrides the terminal width probe. A result <= 0 means unknown.
func WithWidth(width func() int) Option {
	return func(f *Formatter) { f.width = width }
}

// New validates cfg and builds a Formatter.
func New(cfg Config, opts ...Option) (*Formatter, error) {
	cfg.applyDefaults()

	f := &Formatter{
		template:   cfg.Template,
		indent:     cfg.Indent,
		depthMark:  cfg.DepthMark,
		hfillMark:  cfg.HFillMark,
		hfillMin:   cfg.HFillMin,
		hfillMax:   cfg.HFillMax,
		timeFormat: cfg.TimeFormat,
		name:       filepath.Base(os.Args[0]),
		now:        time.Now,
		styles:     make(map[string]style.Style, len(cfg.Styles)),
		tags:       make(map[string]*Tag, len(cfg.Tags)),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.hfillMin < 0 || f.hfillMin > f.hfillMax {
		return nil, errors.ConfigError(componentFormat, "format.hfill_min", f.hfillMin,
			errors.NewStd("must be between 0 and hfill_max"))
	}

	var err error
	if f.filename, err = ParseFilenameMode(cfg.Filename); err != nil {
		return nil, err
	}
	if f.location, err = loadLocation(cfg.Timezone); err != nil {
		return nil, err
	}

	mode, err := style.ParseMode(cfg.Color)
	if err != nil {
		return nil, errors.ConfigError(componentFormat, "format.color", cfg.Color, err)
	}
	if !f.colorSet {
		f.colored = style.Enabled(mode, f.out)
	}
	if f.width == nil {
		f.width = terminalWidth(f.out)
	}

	def, err := style.Parse(cfg.DefaultStyle)
	if err != nil {
		return nil, errors.ConfigError(componentFormat, "format.default_style", cfg.DefaultStyle, err)
	}
	levelCases := make(map[string]style.Style, len(cfg.LevelStyles))
	for lvl, spec := range cfg.LevelStyles {
		st, err := style.Parse(spec)
		if err != nil {
			return nil, errors.ConfigError(componentFormat, "format.level_styles."+lvl, spec, err)
		}
		levelCases[lvl] = st
	}
	f.levelTag = NewTag(LevelKey, def, levelCases)

	if f.depthStyles, err = parseStyles("format.depth_styles", cfg.DepthStyles); err != nil {
		return nil, err
	}
	if f.fileHashStyles, err = parseStyles("format.filehash_styles", cfg.FileHashStyles); err != nil {
		return nil, err
	}
	if f.funcHashStyles, err = parseStyles("format.funchash_styles", cfg.FuncHashStyles); err != nil {
		return nil, err
	}
	for name, spec := range cfg.Styles {
		st, err := style.Parse(spec)
		if err != nil {
			return nil, errors.ConfigError(componentFormat, "format.styles."+name, spec, err)
		}
		f.styles[name] = st
	}
	for name, tc := range cfg.Tags {
		tag, err := buildTag(name, tc)
		if err != nil {
			return nil, err
		}
		f.tags[name] = tag
	}

	if f.segments, err = parseTemplate(cfg.Template); err != nil {
		return nil, err
	}
	for _, seg := range f.segments {
		switch seg.kind {
		case phStyle:
			if _, ok := f.styles[seg.text]; !ok {
				return nil, errors.ConfigError(componentFormat, "format.template", "@"+seg.text,
					errors.NewStd("style is not defined in format.styles"))
			}
		case phTag:
			if _, ok := f.tags[seg.text]; !ok {
				return nil, errors.ConfigError(componentFormat, "format.template", "#"+seg.text,
					errors.NewStd("tag is not defined in format.tags"))
			}
		case phHFill:
			f.hasFill = true
		}
	}

	return f, nil
}

func parseStyles(field string, specs []string) ([]style.Style, error) {
	out := make([]style.Style, 0, len(specs))
	for i, spec := range specs {
		st, err := style.Parse(spec)
		if err != nil {
			return nil, errors.ConfigError(componentFormat, field+"["+strconv.Itoa(i)+"]", spec, err)
		}
		out = append(out, st)
	}
	return out, nil
}

func loadLocation(name string) (*time.Location, error) {
	switch strings.ToLower(name) {
	case "", "local":
		return time.Local, nil
	case "utc":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.ConfigError(componentFormat, "format.timezone", name, err)
	}
	return loc, nil
}

func terminalWidth(w io.Writer) func() int {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return func() int { return 0 }
	}
	fd := int(f.Fd())
	return func() int {
		if !term.IsTerminal(fd) {
			return 0
		}
		width, _, err := term.GetSize(fd)
		if err != nil {
			return 0
		}
		return width
	}
}

// Template returns the template the formatter was built from.
func (f *Formatter) Template() string { return f.template }

// Colored reports whether rendered lines carry escape sequences.
func (f *Formatter) Colored() bool { return f.colored }

// Render produces the line for rec, without a trailing newline unless the
// template ends with one.
func (f *Formatter) Render(rec Record) string {
	if rec.Time.IsZero() {
		rec.Time = f.now()
	}

	var b strings.Builder
	fillAt := -1
	for i := range f.segments {
		seg := &f.segments[i]
		if seg.kind == phHFill && fillAt < 0 {
			fillAt = b.Len()
			continue
		}
		b.WriteString(f.renderSegment(seg, &rec))
	}

	line := b.String()
	if fillAt < 0 {
		return line
	}
	return line[:fillAt] + f.fill(line, fillAt) + line[fillAt:]
}

// fill returns the marks that bring the physical line holding pos to the
// target width, or a single mark if it is already wider.
func (f *Formatter) fill(line string, pos int) string {
	start := strings.LastIndexByte(line[:pos], '\n') + 1
	end := len(line)
	if i := strings.IndexByte(line[pos:], '\n'); i >= 0 {
		end = pos + i
	}
	used := visibleWidth(line[start:end])

	target := f.hfillMax
	if w := f.width(); w > 0 {
		target = min(max(w, f.hfillMin), f.hfillMax)
	}

	markWidth := max(runewidth.StringWidth(f.hfillMark), 1)
	n := (target - used) / markWidth
	if n < 1 {
		n = 1
	}
	return strings.Repeat(f.hfillMark, n)
}

func (f *Formatter) escape(s style.Style) string {
	if !f.colored {
		return ""
	}
	return s.Escape()
}

func (f *Formatter) renderSegment(seg *segment, rec *Record) string {
	if seg.kind == phLiteral {
		return seg.text
	}
	if seg.kind.isStyle() {
		return f.renderStyle(seg, rec)
	}
	v := f.renderText(seg, rec)
	if seg.hasSpec {
		v = seg.spec.apply(v)
	}
	return v
}

func (f *Formatter) renderText(seg *segment, rec *Record) string {
	switch seg.kind {
	case phMsg:
		return rec.Message
	case phLevel:
		if rec.Level == nil {
			return ""
		}
		return rec.Level.String()
	case phLevelShort:
		if rec.Level == nil {
			return ""
		}
		return rec.Level.Short()
	case phFile:
		return f.filename.Apply(rec.File)
	case phFunc:
		return rec.Func
	case phLine:
		return strconv.Itoa(rec.Line)
	case phDepth:
		return strconv.Itoa(rec.Depth)
	case phDepthMarks:
		return strings.Repeat(f.depthMark, max(rec.Depth, 0))
	case phDepthIndent:
		return strings.Repeat(f.indent, max(rec.Depth, 0))
	case phTime:
		return rec.Time.In(f.location).Format(f.timeFormat)
	case phName:
		return f.name
	case phHFill:
		return f.hfillMark
	case phField:
		v, ok := rec.Value(seg.text)
		if !ok {
			return ""
		}
		s, _ := stringify(v)
		return s
	}
	return ""
}

func (f *Formatter) renderStyle(seg *segment, rec *Record) string {
	if !f.colored {
		return ""
	}
	switch seg.kind {
	case phLevelFmt:
		return f.escape(f.levelTag.Resolve(rec))
	case phDepthFmt:
		if len(f.depthStyles) == 0 {
			return ""
		}
		i := min(max(rec.Depth, 0), len(f.depthStyles)-1)
		return f.escape(f.depthStyles[i])
	case phFileHashFmt:
		return f.escape(hashStyle(f.fileHashStyles, rec.File))
	case phFuncHashFmt:
		return f.escape(hashStyle(f.funcHashStyles, rec.Func))
	case phReset:
		return style.ResetSequence
	case phStyle:
		return f.escape(f.styles[seg.text])
	case phTag:
		return f.escape(f.tags[seg.text].Resolve(rec))
	}
	return ""
}

func hashStyle(styles []style.Style, key string) style.Style {
	if len(styles) == 0 {
		return style.Style{}
	}
	return styles[xxhash.Sum64String(key)%uint64(len(styles))]
}

// visibleWidth is the display width of s ignoring ANSI escape sequences.
func visibleWidth(s string) int {
	if strings.IndexByte(s, 0x1b) < 0 {
		return runewidth.StringWidth(s)
	}
	return runewidth.StringWidth(StripANSI(s))
}

// StripANSI removes CSI escape sequences from s.
func StripANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
