package logger

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/tphakala/scopelog/internal/errors"
)

// compactThreshold is the minimum number of tombstones before the rule
// slice is rebuilt.
const compactThreshold = 32

// RuleHandle identifies a registered rule.
type RuleHandle uint64

// Rule maps a location pattern to a threshold.
type Rule struct {
	Pattern   Pattern
	Threshold Level
}

// RuleInfo describes a registered rule.
type RuleInfo struct {
	Handle    RuleHandle `json:"id"`
	Pattern   Pattern    `json:"pattern"`
	Threshold Level      `json:"level"`
}

type registeredRule struct {
	handle    RuleHandle
	pattern   *CompiledPattern
	threshold Level
	removed   bool
}

// decision is a cached resolution, valid only for its generation.
type decision struct {
	threshold Level
	gen       uint64
}

// Registry holds the default threshold and the location rules, and caches
// the threshold resolved for each call site.
type Registry struct {
	mu         sync.RWMutex
	def        Level
	rules      []*registeredRule
	index      map[RuleHandle]*registeredRule
	tombstones int
	nextHandle RuleHandle
	// live rules per threshold, for MaxThreshold
	counts [LevelTrace + 1]int

	gen          atomic.Uint64
	maxThreshold atomic.Int32

	decisions *cache.Cache
	inflight  singleflight.Group
	metrics   MetricsObserver
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryMetrics reports cache hits, misses and the rule count.
func WithRegistryMetrics(m MetricsObserver) RegistryOption {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewRegistry returns an empty registry with the given default threshold.
func NewRegistry(defaultThreshold Level, opts ...RegistryOption) *Registry {
	r := &Registry{
		def:       defaultThreshold,
		index:     make(map[RuleHandle]*registeredRule),
		decisions: cache.New(cache.NoExpiration, 0),
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.maxThreshold.Store(int32(defaultThreshold))
	return r
}

// Resolve returns the threshold that applies at site: the threshold of the
// most recently registered matching rule, or the default.
func (r *Registry) Resolve(site CallSite) Level {
	key := site.key()
	gen := r.gen.Load()
	if v, ok := r.decisions.Get(key); ok {
		if d := v.(decision); d.gen == gen {
			r.metrics.RecordCacheHit()
			return d.threshold
		}
	}
	r.metrics.RecordCacheMiss()

	v, _, _ := r.inflight.Do(key+"\x00"+strconv.FormatUint(gen, 10), func() (any, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		d := decision{threshold: r.resolveLocked(site), gen: r.gen.Load()}
		r.decisions.Set(key, d, cache.NoExpiration)
		return d.threshold, nil
	})
	return v.(Level)
}

// Lookup resolves site without reading or filling the decision cache. It
// suits one-off queries for arbitrary sites.
func (r *Registry) Lookup(site CallSite) Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(site)
}

func (r *Registry) resolveLocked(site CallSite) Level {
	for i := len(r.rules) - 1; i >= 0; i-- {
		rule := r.rules[i]
		if !rule.removed && rule.pattern.Matches(site) {
			return rule.threshold
		}
	}
	return r.def
}

// Register compiles and appends a rule. Later rules take precedence.
func (r *Registry) Register(rule Rule) (RuleHandle, error) {
	compiled, err := compileRule(rule)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.appendLocked(compiled, rule.Threshold)
	r.updateMaxLocked()
	r.changedLocked()
	return h, nil
}

// Replace swaps the default threshold and the whole rule set in one step.
// Concurrent resolutions see either the old or the new state. Nothing
// changes if a rule does not compile.
func (r *Registry) Replace(def Level, rules []Rule) error {
	if !def.Valid() {
		return errors.ConfigError(componentLogger, "default_level", int(def), errors.NewStd("unknown level"))
	}
	compiled := make([]*CompiledPattern, len(rules))
	for i, rule := range rules {
		cp, err := compileRule(rule)
		if err != nil {
			return err
		}
		compiled[i] = cp
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearLocked()
	r.def = def
	for i, cp := range compiled {
		r.appendLocked(cp, rules[i].Threshold)
	}
	r.updateMaxLocked()
	r.changedLocked()
	return nil
}

func compileRule(rule Rule) (*CompiledPattern, error) {
	if !rule.Threshold.Valid() {
		return nil, errors.ConfigError(componentLogger, "level", int(rule.Threshold), errors.NewStd("unknown level"))
	}
	return CompilePattern(rule.Pattern)
}

func (r *Registry) appendLocked(cp *CompiledPattern, threshold Level) RuleHandle {
	r.nextHandle++
	rr := &registeredRule{handle: r.nextHandle, pattern: cp, threshold: threshold}
	r.rules = append(r.rules, rr)
	r.index[rr.handle] = rr
	r.counts[threshold]++
	return rr.handle
}

func (r *Registry) clearLocked() {
	r.rules = nil
	r.index = make(map[RuleHandle]*registeredRule)
	r.tombstones = 0
	r.counts = [LevelTrace + 1]int{}
}

// Unregister removes the rule. It reports false if the handle is unknown.
func (r *Registry) Unregister(h RuleHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rr, ok := r.index[h]
	if !ok {
		return false
	}
	rr.removed = true
	delete(r.index, h)
	r.counts[rr.threshold]--
	r.tombstones++
	if r.tombstones >= compactThreshold && r.tombstones > len(r.index) {
		r.compactLocked()
	}
	r.updateMaxLocked()
	r.changedLocked()
	return true
}

func (r *Registry) compactLocked() {
	live := make([]*registeredRule, 0, len(r.index))
	for _, rr := range r.rules {
		if !rr.removed {
			live = append(live, rr)
		}
	}
	r.rules = live
	r.tombstones = 0
}

// Reset removes every rule.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
	r.updateMaxLocked()
	r.changedLocked()
}

// SetDefault changes the threshold used where no rule matches.
func (r *Registry) SetDefault(l Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = l
	r.updateMaxLocked()
	r.changedLocked()
}

// Default returns the threshold used where no rule matches.
func (r *Registry) Default() Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// changedLocked invalidates cached decisions. Caller holds the write lock.
func (r *Registry) changedLocked() {
	r.gen.Add(1)
	r.decisions.Flush()
	r.metrics.SetRuleCount(len(r.index))
}

// updateMaxLocked scans the per-level counts, so its cost does not depend
// on the number of rules.
func (r *Registry) updateMaxLocked() {
	top := r.def
	for l := LevelTrace; l > top && l >= LevelOff; l-- {
		if r.counts[l] > 0 {
			top = l
			break
		}
	}
	r.maxThreshold.Store(int32(top))
}

// Rules returns the live rules in registration order.
func (r *Registry) Rules() []RuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RuleInfo, 0, len(r.index))
	for _, rr := range r.rules {
		if rr.removed {
			continue
		}
		out = append(out, RuleInfo{Handle: rr.handle, Pattern: rr.pattern.Source(), Threshold: rr.threshold})
	}
	return out
}

// Generation increases on every change to the rule set or default.
func (r *Registry) Generation() uint64 {
	return r.gen.Load()
}

// MaxThreshold is the most verbose threshold any site can resolve to.
func (r *Registry) MaxThreshold() Level {
	return Level(r.maxThreshold.Load())
}

// CachedSites returns the number of cached decisions.
func (r *Registry) CachedSites() int {
	return r.decisions.ItemCount()
}
