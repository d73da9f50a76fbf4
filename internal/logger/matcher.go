package logger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tphakala/scopelog/internal/errors"
)

const componentLogger = "logger"

// Matcher tests one location string against an expression.
type Matcher interface {
	Match(s string) bool
	String() string
}

type matchKind uint8

const (
	matchAny matchKind = iota
	matchExact
	matchPattern // wildcard or regular expression, compiled to re
)

type exprMatcher struct {
	src    string
	kind   matchKind
	text   string
	re     *regexp.Regexp
	regexp bool // written as re: or /.../
}

func (m *exprMatcher) Match(s string) bool {
	switch m.kind {
	case matchAny:
		return true
	case matchExact:
		return s == m.text
	default:
		return m.re.MatchString(s)
	}
}

func (m *exprMatcher) String() string { return m.src }

// CompileMatcher compiles a location expression:
//
//	""              matches anything
//	"re:<regexp>"   anchored regular expression
//	"/<regexp>/"    same
//	"a*b?"          wildcard, * is any run and ? one character
//	"text"          exact match
func CompileMatcher(expr string) (Matcher, error) {
	m := &exprMatcher{src: expr}
	if expr == "" {
		return m, nil
	}
	if src, ok := regexpSource(expr); ok {
		re, err := regexp.Compile("^(?:" + src + ")$")
		if err != nil {
			return nil, err
		}
		m.kind, m.re, m.regexp = matchPattern, re, true
		return m, nil
	}
	if strings.ContainsAny(expr, "*?") {
		m.kind, m.re = matchPattern, regexp.MustCompile(wildcardToRegexp(expr))
		return m, nil
	}
	m.kind, m.text = matchExact, expr
	return m, nil
}

func regexpSource(expr string) (string, bool) {
	if src, ok := strings.CutPrefix(expr, "re:"); ok {
		return src, true
	}
	if len(expr) >= 2 && expr[0] == '/' && expr[len(expr)-1] == '/' {
		return expr[1 : len(expr)-1], true
	}
	return "", false
}

func wildcardToRegexp(expr string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range expr {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

// fileMatcher also accepts any trailing run of path segments, so that
// "parser/lex.go" matches "/src/app/parser/lex.go". Regular expressions are
// matched against the full path only.
type fileMatcher struct {
	*exprMatcher
}

func (m fileMatcher) Match(path string) bool {
	if m.exprMatcher.Match(path) {
		return true
	}
	if m.kind == matchAny || m.regexp {
		return false
	}
	for i := 0; i < len(path); i++ {
		if path[i] == '/' && m.exprMatcher.Match(path[i+1:]) {
			return true
		}
	}
	return false
}

// funcMatcher matches any of the names returned by funcNames.
type funcMatcher struct {
	*exprMatcher
}

func (m funcMatcher) Match(qualified string) bool {
	if m.kind == matchAny {
		return true
	}
	for _, name := range funcNames(qualified) {
		if m.exprMatcher.Match(name) {
			return true
		}
	}
	return false
}

// lineMatcher accepts N, N-M, N- and -M (inclusive) or a regular
// expression over the decimal line number.
type lineMatcher struct {
	src    string
	lo, hi int // hi < 0 means unbounded
	re     *regexp.Regexp
}

func compileLineMatcher(expr string) (*lineMatcher, error) {
	m := &lineMatcher{src: expr, hi: -1}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return m, nil
	}
	if src, ok := regexpSource(expr); ok {
		re, err := regexp.Compile("^(?:" + src + ")$")
		if err != nil {
			return nil, err
		}
		m.re = re
		return m, nil
	}

	loText, hiText, isRange := strings.Cut(expr, "-")
	var err error
	if loText != "" {
		if m.lo, err = parseLine(loText); err != nil {
			return nil, err
		}
	}
	switch {
	case !isRange:
		m.hi = m.lo
	case hiText != "":
		if m.hi, err = parseLine(hiText); err != nil {
			return nil, err
		}
		if m.hi < m.lo {
			return nil, fmt.Errorf("empty line range %d-%d", m.lo, m.hi)
		}
	case loText == "":
		return nil, errors.NewStd("line range needs at least one bound")
	}
	return m, nil
}

func parseLine(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid line number %q", s)
	}
	return n, nil
}

func (m *lineMatcher) Match(line int) bool {
	if m.re != nil {
		return m.re.MatchString(strconv.Itoa(line))
	}
	return line >= m.lo && (m.hi < 0 || line <= m.hi)
}

func (m *lineMatcher) String() string { return m.src }

// Pattern is the source form of a location filter. Empty fields match
// anything.
type Pattern struct {
	File string `yaml:"file" mapstructure:"file" json:"file"`
	Func string `yaml:"func" mapstructure:"func" json:"func"`
	Line string `yaml:"line" mapstructure:"line" json:"line"`
}

// CompiledPattern is a validated Pattern. Matching never fails.
type CompiledPattern struct {
	src  Pattern
	file fileMatcher
	fn   funcMatcher
	line *lineMatcher
}

// CompilePattern validates and compiles p. Errors carry the offending field
// and expression.
func CompilePattern(p Pattern) (*CompiledPattern, error) {
	cp, field, value, err := compilePattern(p)
	if err != nil {
		return nil, errors.ConfigError(componentLogger, field, value, err)
	}
	return cp, nil
}

// compilePattern reports the field, value and cause of a failure.
func compilePattern(p Pattern) (cp *CompiledPattern, field, value string, err error) {
	fileExpr := p.File
	if _, isRegexp := regexpSource(fileExpr); !isRegexp {
		fileExpr = normalizePath(fileExpr)
	}
	file, err := CompileMatcher(fileExpr)
	if err != nil {
		return nil, "file", p.File, err
	}
	fn, err := CompileMatcher(p.Func)
	if err != nil {
		return nil, "func", p.Func, err
	}
	line, err := compileLineMatcher(p.Line)
	if err != nil {
		return nil, "line", p.Line, err
	}
	return &CompiledPattern{
		src:  p,
		file: fileMatcher{file.(*exprMatcher)},
		fn:   funcMatcher{fn.(*exprMatcher)},
		line: line,
	}, "", "", nil
}

// Matches reports whether site satisfies all three fields.
func (p *CompiledPattern) Matches(site CallSite) bool {
	return p.line.Match(site.Line) && p.file.Match(site.File) && p.fn.Match(site.Function)
}

// Source returns the pattern p was compiled from.
func (p *CompiledPattern) Source() Pattern { return p.src }

func (p *CompiledPattern) String() string { return p.src.String() }

func (p Pattern) String() string {
	return fmt.Sprintf("file=%q func=%q line=%q", p.File, p.Func, p.Line)
}
