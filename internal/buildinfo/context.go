// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	version   string
	buildDate string
	commit    string
}

// NewContext creates a Context from values injected with -ldflags.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{version: version, buildDate: buildDate, commit: commit}
}

// FromBuild fills the values missing from c with the VCS settings recorded
// by the Go toolchain, if any.
func (c *Context) FromBuild() *Context {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return c
	}
	return c.withSettings(bi.Settings)
}

func (c *Context) withSettings(settings []debug.BuildSetting) *Context {
	out := &Context{}
	if c != nil {
		*out = *c
	}
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if out.commit == "" {
				out.commit = s.Value
			}
		case "vcs.time":
			if out.buildDate == "" {
				out.buildDate = s.Value
			}
		}
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// Version returns the version tag.
func (c *Context) Version() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.version)
}

// BuildDate returns the build date.
func (c *Context) BuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.buildDate)
}

// Commit returns the abbreviated VCS revision.
func (c *Context) Commit() string {
	if c == nil || c.commit == "" {
		return UnknownValue
	}
	if len(c.commit) > 12 {
		return c.commit[:12]
	}
	return c.commit
}

// String formats the metadata for --version output.
func (c *Context) String() string {
	var b strings.Builder
	b.WriteString(c.Version())
	b.WriteString(" (commit ")
	b.WriteString(c.Commit())
	b.WriteString(", built ")
	b.WriteString(c.BuildDate())
	b.WriteString(")")
	return b.String()
}
