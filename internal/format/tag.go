package format

import (
	"fmt"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/style"
)

// LevelKey makes a Tag look up the record's level name instead of a field.
const LevelKey = "level"

// Tag picks a style from the value of a record field.
type Tag struct {
	Key     string
	Cases   map[string]style.Style
	Default style.Style
}

// NewTag builds a tag keyed by key. def is used when the value is missing,
// nil, unmatched or cannot be stringified.
func NewTag(key string, def style.Style, cases map[string]style.Style) *Tag {
	if cases == nil {
		cases = map[string]style.Style{}
	}
	return &Tag{Key: key, Cases: cases, Default: def}
}

// Resolve returns the style for rec. It never panics.
func (t *Tag) Resolve(rec *Record) style.Style {
	v, ok := t.lookup(rec)
	if !ok {
		return t.Default
	}
	s, ok := stringify(v)
	if !ok {
		return t.Default
	}
	if st, found := t.Cases[s]; found {
		return st
	}
	return t.Default
}

func (t *Tag) lookup(rec *Record) (any, bool) {
	if t.Key == LevelKey {
		if rec.Level == nil {
			return nil, false
		}
		return rec.Level.String(), true
	}
	v, ok := rec.Value(t.Key)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// stringify renders v, reporting false if a String or Error method panicked.
func stringify(v any) (s string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s, ok = renderErrorMarker, false
		}
	}()
	switch x := v.(type) {
	case nil:
		return "<nil>", true
	case string:
		return x, true
	case error:
		return x.Error(), true
	case fmt.Stringer:
		return x.String(), true
	}
	return fmt.Sprint(v), true
}

func buildTag(name string, cfg TagConfig) (*Tag, error) {
	field := "format.tags." + name
	if cfg.Default == "" {
		return nil, errors.ConfigError(componentFormat, field+".default", cfg.Default,
			errors.NewStd("a tag needs a default style, use \"none\" for no style"))
	}
	if cfg.Key == "" {
		cfg.Key = name
	}
	def, err := style.Parse(cfg.Default)
	if err != nil {
		return nil, errors.ConfigError(componentFormat, field+".default", cfg.Default, err)
	}
	cases := make(map[string]style.Style, len(cfg.Cases))
	for value, spec := range cfg.Cases {
		st, err := style.Parse(spec)
		if err != nil {
			return nil, errors.ConfigError(componentFormat, field+".cases."+value, spec, err)
		}
		cases[value] = st
	}
	return NewTag(cfg.Key, def, cases), nil
}
