package logger

import (
	"strconv"
	"strings"

	"github.com/tphakala/scopelog/internal/errors"
)

// Level is a severity. Larger values are more verbose; LevelOff silences.
type Level int8

const (
	LevelOff Level = iota
	LevelCritical
	LevelError
	LevelWarn
	LevelProgress
	LevelNote
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = [...]struct{ long, short string }{
	LevelOff:      {"off", "off "},
	LevelCritical: {"critical", "crit"},
	LevelError:    {"error", "erro"},
	LevelWarn:     {"warn", "warn"},
	LevelProgress: {"progress", "prog"},
	LevelNote:     {"note", "note"},
	LevelInfo:     {"info", "info"},
	LevelDebug:    {"debug", "dbug"},
	LevelTrace:    {"trace", "trce"},
}

var levelAliases = map[string]Level{
	"quiet":   LevelOff,
	"none":    LevelOff,
	"crit":    LevelCritical,
	"fatal":   LevelCritical,
	"erro":    LevelError,
	"err":     LevelError,
	"warning": LevelWarn,
	"prog":    LevelProgress,
	"dbug":    LevelDebug,
	"trce":    LevelTrace,
	"xdebug":  LevelTrace,
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= LevelOff && l <= LevelTrace
}

// String returns the long lower-case name.
func (l Level) String() string {
	if !l.Valid() {
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
	return levelNames[l].long
}

// Short returns the four character name.
func (l Level) Short() string {
	if !l.Valid() {
		return "????"
	}
	return levelNames[l].short
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses a level name, case-insensitively, accepting the short
// names and common aliases.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for l, n := range levelNames {
		if n.long == name || strings.TrimSpace(n.short) == name {
			return Level(l), nil
		}
	}
	if l, ok := levelAliases[name]; ok {
		return l, nil
	}
	return LevelOff, errors.ConfigError(componentLogger, "level", s, errors.NewStd("unknown level"))
}

// Levels returns every level from LevelOff to LevelTrace.
func Levels() []Level {
	out := make([]Level, 0, len(levelNames))
	for l := range levelNames {
		out = append(out, Level(l))
	}
	return out
}

// Allows reports whether a call at severity call passes threshold. Off and
// values below it never pass.
func Allows(call, threshold Level) bool {
	return call > LevelOff && call <= threshold
}
