package logger

import (
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// CallSite identifies the location of a log call.
type CallSite struct {
	File     string // '/' separated, NFC normalized
	Function string // fully qualified, e.g. example.com/app/parser.(*Lexer).Next
	Line     int
}

// NewCallSite builds a CallSite, normalizing the file path.
func NewCallSite(file, function string, line int) CallSite {
	return CallSite{File: normalizePath(file), Function: function, Line: line}
}

func normalizePath(p string) string {
	if strings.IndexByte(p, '\\') >= 0 {
		p = strings.ReplaceAll(p, "\\", "/")
	}
	if !norm.NFC.IsNormalString(p) {
		p = norm.NFC.String(p)
	}
	return p
}

// String formats the site as file:line (function).
func (c CallSite) String() string {
	return c.File + ":" + strconv.Itoa(c.Line) + " (" + c.Function + ")"
}

// key is the cache identity of the site.
func (c CallSite) key() string {
	return c.File + "\x00" + c.Function + "\x00" + strconv.Itoa(c.Line)
}

// sites memoizes symbolized program counters.
var sites sync.Map // uintptr -> CallSite

// Caller returns the call site skip frames above the caller of Caller.
// Caller(0) is the function calling Caller.
func Caller(skip int) CallSite {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return CallSite{}
	}
	pc := pcs[0]
	if site, ok := sites.Load(pc); ok {
		return site.(CallSite)
	}

	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	site := NewCallSite(frame.File, frame.Function, frame.Line)
	sites.Store(pc, site)
	return site
}

// funcNames returns the names a function expression is matched against:
// the qualified name, the name relative to its package directory, the name
// without the package, and the bare method or function name.
func funcNames(qualified string) []string {
	names := make([]string, 0, 4)
	names = append(names, qualified)

	rel := qualified
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		rel = rel[i+1:]
		names = append(names, rel)
	}
	if i := strings.IndexByte(rel, '.'); i >= 0 {
		local := rel[i+1:]
		names = append(names, local)
		if j := strings.LastIndexByte(local, '.'); j >= 0 {
			names = append(names, local[j+1:])
		}
	}
	return names
}
