// Package logger is a location-aware logging core.
//
// Every call carries a severity and a call site. A Registry resolves the
// threshold that applies at the site from location rules (file, function,
// line range) and a default; the call is written only if its severity is
// within that threshold. Thresholds are cached per call site and the cache
// is invalidated whenever the rule set changes.
//
// # Quick Start
//
//	reg := logger.NewRegistry(logger.LevelWarn)
//	_, err := reg.Register(logger.Rule{
//	    Pattern:   logger.Pattern{File: "parser/*.go", Func: "parse*"},
//	    Threshold: logger.LevelTrace,
//	})
//
//	f, err := format.New(format.Config{Template: "[{level}] {depth_indent}{msg}"})
//	d := logger.NewDispatcher(reg, f, logger.NewWriterSink(os.Stderr))
//
//	ctx, scope := d.EnterScope(ctx, logger.LevelDebug, "parseHeader")
//	defer scope.Exit()
//	d.Log(ctx, logger.LevelDebug, func() string { return expensiveDump() })
//
// Messages are produced by closures that are only called when the record
// passes the filters.
//
// # Depth
//
// Depth is carried by context.Context. EnterScope and Scope.Exit move it up
// and down; goroutines started inside a scope should use Fork so that they
// own their counter. Alternatively the depth can be derived from the stack
// (WithDepthSource(StackDepth, n)).
//
// # Configuration
//
// New builds the registry, formatter and sink from a Config, which is what
// the YAML configuration decodes into.
package logger

import (
	"time"
	"unique"

	"github.com/tphakala/scopelog/internal/format"
)

// Field is a named value attached to a record. Fields are rendered by {$key}
// placeholders and select value-dependent styles.
type Field = format.Field

// internKey returns an interned version of the key string.
// Repeated keys share the same underlying memory.
func internKey(key string) string {
	return unique.Make(key).Value()
}

var errorKey = internKey("error")

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int64 creates a 64-bit integer field.
func Int64(key string, value int64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Uint64 creates an unsigned 64-bit integer field.
func Uint64(key string, value uint64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float64 creates a 64-bit float field.
func Float64(key string, value float64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Err creates an "error" field. A nil error gives a nil value.
func Err(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

// Duration creates a duration field rendered like "1.5s".
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value.String()}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return Field{Key: internKey(key), Value: value}
}

// Any creates a field with any value. The value is rendered with its String
// method or fmt.Sprint.
func Any(key string, value any) Field {
	return Field{Key: internKey(key), Value: value}
}
