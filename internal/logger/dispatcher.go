package logger

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/format"
)

// MessageFunc produces a log message. It is only called for records that
// pass the filters.
type MessageFunc func() string

// Msg returns a MessageFunc for a constant message.
func Msg(s string) MessageFunc {
	return func() string { return s }
}

// panicMarker replaces the message of a MessageFunc that panicked.
const panicMarker = "<!message panicked>"

// Frames above Dispatcher.depth up to and including the instrumented code,
// for StackDepth.
const (
	skipEmit   = 3 // emit, API method, caller
	skipGlobal = 4 // emit, logGlobal, package helper, caller
	skipDirect = 2 // API method, caller
)

// Dispatcher decides whether a call passes the filters and writes the
// rendered record to its sink.
type Dispatcher struct {
	reg       *Registry
	formatter *format.Formatter
	sink      Sink

	maxDepth    int
	depthSource DepthSource
	stripCalls  int
	now         func() time.Time

	metrics      MetricsObserver
	onWriteError func(error)
	writeErrors  atomic.Uint64
	lastErr      atomic.Pointer[error]
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxDepth suppresses records deeper than n. NoDepthLimit disables it.
func WithMaxDepth(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxDepth = n }
}

// WithDepthSource selects scope or stack depth. strip is the number of
// outermost frames ignored in stack mode.
func WithDepthSource(src DepthSource, strip int) DispatcherOption {
	return func(d *Dispatcher) {
		d.depthSource = src
		d.stripCalls = max(strip, 0)
	}
}

// WithMetrics reports emitted, filtered and failed records. Pair it with
// WithRegistryMetrics to also count cache hits and misses.
func WithMetrics(m MetricsObserver) DispatcherOption {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithWriteErrorHandler is called after each failed sink write.
func WithWriteErrorHandler(fn func(error)) DispatcherOption {
	return func(d *Dispatcher) { d.onWriteError = fn }
}

// WithTimeSource sets the clock used to stamp records.
func WithTimeSource(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher wires a registry, a formatter and a sink.
func NewDispatcher(reg *Registry, f *format.Formatter, sink Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		reg:        reg,
		formatter:  f,
		sink:       sink,
		maxDepth:   NoDepthLimit,
		stripCalls: DefaultStripCalls,
		now:        time.Now,
		metrics:    noopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher consults.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Formatter returns the formatter records are rendered with.
func (d *Dispatcher) Formatter() *format.Formatter { return d.formatter }

// passes applies the level gate and the location rules.
func (d *Dispatcher) passes(lvl Level, site CallSite) bool {
	if !Allows(lvl, d.reg.MaxThreshold()) {
		return false
	}
	return Allows(lvl, d.reg.Resolve(site))
}

// depth returns the depth of a record, shifted by delta and floored at 0.
func (d *Dispatcher) depth(ctx context.Context, delta, skip int) int {
	var n int
	if d.depthSource == StackDepth {
		n = stackDepth(skip+1, d.stripCalls)
	} else {
		n = CurrentDepth(ctx)
	}
	return max(n+delta, 0)
}

func (d *Dispatcher) withinDepth(depth int) bool {
	return d.maxDepth < 0 || depth <= d.maxDepth
}

// emit is the common path of every logging method. It returns the sink
// error, if any, so that Raw can report it.
func (d *Dispatcher) emit(ctx context.Context, lvl Level, site CallSite, delta, skip int, msg MessageFunc, fields []Field) error {
	if !d.passes(lvl, site) {
		d.metrics.RecordFiltered(lvl.String())
		return nil
	}
	depth := d.depth(ctx, delta, skip)
	if !d.withinDepth(depth) {
		d.metrics.RecordFiltered(lvl.String())
		return nil
	}

	line := d.formatter.Render(format.Record{
		Level:   lvl,
		File:    site.File,
		Func:    site.Function,
		Line:    site.Line,
		Depth:   depth,
		Time:    d.now(),
		Message: evaluate(msg),
		Fields:  fields,
	})
	return d.write(lvl, line)
}

func evaluate(msg MessageFunc) (s string) {
	if msg == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			s = panicMarker
		}
	}()
	return msg()
}

func (d *Dispatcher) write(lvl Level, line string) error {
	if err := d.sink.WriteLine(line); err != nil {
		d.recordWriteError(err)
		return err
	}
	d.metrics.RecordEmitted(lvl.String())
	return nil
}

func (d *Dispatcher) recordWriteError(err error) {
	d.writeErrors.Add(1)
	d.lastErr.Store(&err)
	d.metrics.RecordWriteError()
	if d.onWriteError != nil {
		d.onWriteError(err)
	}
}

// LogAt logs at an explicit call site. msg is not called if the record is
// filtered out.
func (d *Dispatcher) LogAt(ctx context.Context, lvl Level, site CallSite, msg MessageFunc, fields ...Field) {
	_ = d.emit(ctx, lvl, site, 0, skipEmit, msg, fields)
}

// Log logs at the caller's location.
func (d *Dispatcher) Log(ctx context.Context, lvl Level, msg MessageFunc, fields ...Field) {
	_ = d.emit(ctx, lvl, Caller(1), 0, skipEmit, msg, fields)
}

// Logf formats the message only if the record is emitted.
func (d *Dispatcher) Logf(ctx context.Context, lvl Level, msgFormat string, args ...any) {
	_ = d.emit(ctx, lvl, Caller(1), 0, skipEmit, func() string {
		return fmt.Sprintf(msgFormat, args...)
	}, nil)
}

// LogDepth logs at the caller's location with the depth shifted by delta.
func (d *Dispatcher) LogDepth(ctx context.Context, lvl Level, delta int, msg MessageFunc, fields ...Field) {
	_ = d.emit(ctx, lvl, Caller(1), delta, skipEmit, msg, fields)
}

// Raw logs an already built message and returns the sink error. A filtered
// record returns nil.
func (d *Dispatcher) Raw(ctx context.Context, lvl Level, site CallSite, msg string, fields ...Field) error {
	return d.emit(ctx, lvl, site, 0, skipEmit, Msg(msg), fields)
}

// Enabled reports whether a record at lvl from site would be written.
func (d *Dispatcher) Enabled(ctx context.Context, lvl Level, site CallSite) bool {
	return d.passes(lvl, site) && d.withinDepth(d.depth(ctx, 0, skipDirect))
}

// Check logs "check failed: what" at the caller's location when cond is
// false and the location passes the filters.
func (d *Dispatcher) Check(ctx context.Context, lvl Level, cond bool, what string) {
	if cond {
		return
	}
	_ = d.emit(ctx, lvl, Caller(1), 0, skipEmit, Msg("check failed: "+what), nil)
}

// WriteErrors returns the number of failed sink writes.
func (d *Dispatcher) WriteErrors() uint64 {
	return d.writeErrors.Load()
}

// LastWriteError returns the most recent sink error, or nil.
func (d *Dispatcher) LastWriteError() error {
	if p := d.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Flush flushes the sink if it buffers.
func (d *Dispatcher) Flush() error {
	if f, ok := d.sink.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes the sink.
func (d *Dispatcher) Close() error {
	var errs []error
	if err := d.Flush(); err != nil {
		errs = append(errs, err)
	}
	if c, ok := d.sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
