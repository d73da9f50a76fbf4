package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/tphakala/scopelog/internal/errors"
)

// NoDepthLimit disables the depth ceiling.
const NoDepthLimit = -1

// DefaultStripCalls is the number of outermost frames ignored by StackDepth
// (runtime.goexit, runtime.main and main.main on the main goroutine).
const DefaultStripCalls = 3

// DepthSource selects how the depth of a record is obtained.
type DepthSource uint8

const (
	// ScopeDepth counts Enter/Exit markers carried by the context.
	ScopeDepth DepthSource = iota
	// StackDepth counts the goroutine's stack frames above the call site.
	StackDepth
)

func (s DepthSource) String() string {
	if s == StackDepth {
		return "stack"
	}
	return "scope"
}

// ParseDepthSource parses "scope" or "stack".
func ParseDepthSource(s string) (DepthSource, error) {
	switch strings.ToLower(s) {
	case "", "scope":
		return ScopeDepth, nil
	case "stack":
		return StackDepth, nil
	}
	return ScopeDepth, errors.ConfigError(componentLogger, "depth_source", s, errors.NewStd("expected scope or stack"))
}

type depthKey struct{}

type depthCounter struct {
	n atomic.Int64
}

func counterFrom(ctx context.Context) *depthCounter {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(depthKey{}).(*depthCounter)
	return c
}

// WithDepth returns a context carrying a fresh depth counter at 0.
func WithDepth(ctx context.Context) context.Context {
	return context.WithValue(ctx, depthKey{}, &depthCounter{})
}

// Fork returns a context carrying a new counter that starts at the current
// depth of ctx. Use it for goroutines spawned from a scope.
func Fork(ctx context.Context) context.Context {
	c := &depthCounter{}
	c.n.Store(int64(CurrentDepth(ctx)))
	return context.WithValue(ctx, depthKey{}, c)
}

// HasDepth reports whether ctx carries a depth counter.
func HasDepth(ctx context.Context) bool {
	return counterFrom(ctx) != nil
}

// Enter increments the depth and returns the new value.
func Enter(ctx context.Context) int {
	c := counterFrom(ctx)
	if c == nil {
		return 0
	}
	return int(c.n.Add(1))
}

// Exit decrements the depth, never below zero, and returns the new value.
func Exit(ctx context.Context) int {
	c := counterFrom(ctx)
	if c == nil {
		return 0
	}
	for {
		cur := c.n.Load()
		if cur <= 0 {
			return 0
		}
		if c.n.CompareAndSwap(cur, cur-1) {
			return int(cur - 1)
		}
	}
}

// CurrentDepth returns the depth carried by ctx, 0 if none.
func CurrentDepth(ctx context.Context) int {
	c := counterFrom(ctx)
	if c == nil {
		return 0
	}
	return int(c.n.Load())
}

// stackDepth counts the frames from skip upwards, as runtime.Callers
// numbers them, minus strip.
func stackDepth(skip, strip int) int {
	pcs := make([]uintptr, 64)
	for {
		n := runtime.Callers(skip+1, pcs)
		if n < len(pcs) {
			return max(n-strip, 0)
		}
		pcs = make([]uintptr, len(pcs)*2)
	}
}
