package style

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/tphakala/scopelog/internal/errors"
)

// Mode selects when escape sequences are emitted.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeAlways Mode = "always"
	ModeNever  Mode = "never"
)

// ParseMode parses auto, always or never. The empty string is auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeAlways, "on", "true":
		return ModeAlways, nil
	case ModeNever, "off", "false":
		return ModeNever, nil
	}
	return ModeAuto, errors.ConfigError(componentStyle, "color", s, errors.NewStd("expected auto, always or never"))
}

type fdWriter interface {
	Fd() uintptr
}

// IsTerminal reports whether w writes to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(fdWriter)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Enabled decides whether styles written to w should produce escapes.
// In auto mode NO_COLOR and TERM=dumb disable colour, and w must be a
// terminal.
func Enabled(mode Mode, w io.Writer) bool {
	switch mode {
	case ModeAlways:
		return true
	case ModeNever:
		return false
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return IsTerminal(w)
}
