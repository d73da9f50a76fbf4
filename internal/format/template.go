package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/tphakala/scopelog/internal/errors"
)

type placeholder uint8

const (
	phLiteral placeholder = iota
	phMsg
	phLevel
	phLevelShort
	phLevelFmt
	phFile
	phFunc
	phLine
	phDepth
	phDepthMarks
	phDepthIndent
	phDepthFmt
	phFileHashFmt
	phFuncHashFmt
	phTime
	phName
	phHFill
	phReset
	phStyle // @name
	phField // $key
	phTag   // #name
)

var placeholders = map[string]placeholder{
	"msg":          phMsg,
	"level":        phLevel,
	"sev":          phLevel,
	"level_short":  phLevelShort,
	"sev_short":    phLevelShort,
	"level_fmt":    phLevelFmt,
	"sev_fmt":      phLevelFmt,
	"file":         phFile,
	"func":         phFunc,
	"line":         phLine,
	"depth":        phDepth,
	"depth_marks":  phDepthMarks,
	"depth_indent": phDepthIndent,
	"depth_fmt":    phDepthFmt,
	"filehash_fmt": phFileHashFmt,
	"funchash_fmt": phFuncHashFmt,
	"time":         phTime,
	"name":         phName,
	"hfill":        phHFill,
	"reset":        phReset,
}

// isStyle reports whether p renders an escape sequence rather than text.
func (p placeholder) isStyle() bool {
	switch p {
	case phLevelFmt, phDepthFmt, phFileHashFmt, phFuncHashFmt, phReset, phStyle, phTag:
		return true
	}
	return false
}

// fieldSpec is the parsed form of [<|>][width][.max][/segments].
type fieldSpec struct {
	align    byte
	width    int
	max      int
	segments int
}

func (s fieldSpec) apply(v string) string {
	if s.segments > 0 {
		v = lastSegments(v, s.segments)
	}
	if s.max > 0 && runewidth.StringWidth(v) > s.max {
		v = runewidth.Truncate(v, s.max, "")
	}
	if w := runewidth.StringWidth(v); s.width > w {
		pad := strings.Repeat(" ", s.width-w)
		if s.align == '>' {
			return pad + v
		}
		return v + pad
	}
	return v
}

type segment struct {
	kind    placeholder
	text    string // literal text, or the name after a sigil
	spec    fieldSpec
	hasSpec bool
}

func isNameByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// scanName returns the length of the placeholder name at the start of s,
// including an optional @, $ or # sigil.
func scanName(s string) int {
	i := 0
	if i < len(s) && (s[i] == '@' || s[i] == '$' || s[i] == '#') {
		i++
	}
	start := i
	for i < len(s) && isNameByte(s[i]) {
		i++
	}
	if i == start {
		return 0
	}
	return i
}

// resolveName maps a scanned name to a segment. ok is false for unknown names.
func resolveName(name string) (segment, bool) {
	switch name[0] {
	case '@':
		return segment{kind: phStyle, text: name[1:]}, true
	case '$':
		return segment{kind: phField, text: name[1:]}, true
	case '#':
		return segment{kind: phTag, text: name[1:]}, true
	}
	p, ok := placeholders[name]
	return segment{kind: p}, ok
}

// parseTemplate splits tmpl into literal and placeholder segments.
func parseTemplate(tmpl string) ([]segment, error) {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{kind: phLiteral, text: lit.String()})
			lit.Reset()
		}
	}
	emit := func(seg segment) {
		flush()
		segs = append(segs, seg)
	}

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		next := byte(0)
		if i+1 < len(tmpl) {
			next = tmpl[i+1]
		}

		switch {
		case c == '%' && next == '%', c == '{' && next == '{', c == '}' && next == '}':
			lit.WriteByte(c)
			i += 2

		case c == '%':
			n := scanName(tmpl[i+1:])
			if n == 0 {
				lit.WriteByte(c)
				i++
				continue
			}
			raw := tmpl[i : i+1+n]
			if seg, ok := resolveName(raw[1:]); ok {
				emit(seg)
			} else {
				lit.WriteString(raw)
			}
			i += 1 + n

		case c == '{':
			end := strings.IndexAny(tmpl[i+1:], "{}")
			if end < 0 || tmpl[i+1+end] == '{' {
				lit.WriteByte(c)
				i++
				continue
			}
			raw := tmpl[i : i+2+end]
			body := raw[1 : len(raw)-1]
			name, specText, hasSpec := strings.Cut(body, ":")
			if n := scanName(name); n == 0 || n != len(name) {
				lit.WriteString(raw)
				i += len(raw)
				continue
			}
			seg, ok := resolveName(name)
			if !ok {
				lit.WriteString(raw)
				i += len(raw)
				continue
			}
			if hasSpec {
				spec, err := parseSpec(specText)
				if err != nil {
					return nil, errors.ConfigError(componentFormat, "format.template", raw, err)
				}
				seg.spec, seg.hasSpec = spec, true
			}
			emit(seg)
			i += len(raw)

		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return segs, nil
}

// parseSpec parses [<|>][width][.max][/segments].
func parseSpec(text string) (fieldSpec, error) {
	var s fieldSpec
	rest := text
	if rest != "" && (rest[0] == '<' || rest[0] == '>') {
		s.align = rest[0]
		rest = rest[1:]
	}
	if n, r, ok := leadingInt(rest); ok {
		s.width, rest = n, r
	}
	if r, found := strings.CutPrefix(rest, "."); found {
		n, r, ok := leadingInt(r)
		if !ok {
			return s, fmt.Errorf("missing maximum width after '.' in %q", text)
		}
		s.max, rest = n, r
	}
	if r, found := strings.CutPrefix(rest, "/"); found {
		n, r, ok := leadingInt(r)
		if !ok {
			return s, fmt.Errorf("missing segment count after '/' in %q", text)
		}
		s.segments, rest = n, r
	}
	if rest != "" {
		return s, fmt.Errorf("unexpected %q in format spec %q", rest, text)
	}
	return s, nil
}

func leadingInt(s string) (n int, rest string, ok bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, s, false
	}
	return n, s[i:], true
}
