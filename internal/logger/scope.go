package logger

import (
	"context"
	"sync/atomic"
)

// Scope brackets a region of code: the depth is one higher between
// EnterScope and Exit. Exit is idempotent, so it can be deferred and also
// called early.
type Scope struct {
	d      *Dispatcher
	ctx    context.Context
	lvl    Level
	name   string
	site   CallSite
	exited atomic.Bool
}

// EnterScope logs "enter name" at the caller's location, increments the
// depth and returns a context carrying it. The returned context always has a
// depth counter.
//
//	ctx, scope := d.EnterScope(ctx, logger.LevelDebug, "parse")
//	defer scope.Exit()
func (d *Dispatcher) EnterScope(ctx context.Context, lvl Level, name string) (context.Context, *Scope) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !HasDepth(ctx) {
		ctx = WithDepth(ctx)
	}
	s := &Scope{d: d, ctx: ctx, lvl: lvl, name: name, site: Caller(1)}
	_ = d.emit(ctx, lvl, s.site, 0, skipEmit, Msg("enter "+name), []Field{{Key: "scope", Value: "enter"}})
	Enter(ctx)
	return ctx, s
}

// Exit decrements the depth and logs "exit name". Only the first call has
// an effect.
func (s *Scope) Exit() {
	if !s.exited.CompareAndSwap(false, true) {
		return
	}
	Exit(s.ctx)
	_ = s.d.emit(s.ctx, s.lvl, s.site, 0, skipEmit, Msg("exit "+s.name), []Field{{Key: "scope", Value: "exit"}})
}

// Context returns the context carrying the scope's depth.
func (s *Scope) Context() context.Context { return s.ctx }

// Name returns the scope name.
func (s *Scope) Name() string { return s.name }
