package logger

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type countingMetrics struct {
	hits, misses, emitted, filtered, writeErrors atomic.Int64
	rules                                        atomic.Int64
}

func (m *countingMetrics) RecordCacheHit()       { m.hits.Add(1) }
func (m *countingMetrics) RecordCacheMiss()      { m.misses.Add(1) }
func (m *countingMetrics) RecordEmitted(string)  { m.emitted.Add(1) }
func (m *countingMetrics) RecordFiltered(string) { m.filtered.Add(1) }
func (m *countingMetrics) RecordWriteError()     { m.writeErrors.Add(1) }
func (m *countingMetrics) SetRuleCount(n int)    { m.rules.Store(int64(n)) }

var (
	parseSite  = NewCallSite("/src/app/parser.go", "example.com/app.parseHeader", 10)
	renderSite = NewCallSite("/src/app/render.go", "example.com/app.render", 20)
)

func mustRegister(t *testing.T, r *Registry, p Pattern, l Level) RuleHandle {
	t.Helper()
	h, err := r.Register(Rule{Pattern: p, Threshold: l})
	require.NoError(t, err)
	return h
}

func TestResolveDefault(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	assert.Equal(t, LevelWarn, r.Resolve(parseSite))
	assert.Equal(t, LevelWarn, r.Default())
	assert.Equal(t, LevelWarn, r.MaxThreshold())
}

func TestResolveFuncWildcardScenario(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	mustRegister(t, r, Pattern{Func: "parse*"}, LevelTrace)

	assert.True(t, Allows(LevelDebug, r.Resolve(parseSite)))
	assert.False(t, Allows(LevelDebug, r.Resolve(renderSite)))
}

func TestResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	r := NewRegistry(LevelWarn, WithRegistryMetrics(m))
	mustRegister(t, r, Pattern{File: "parser.go"}, LevelDebug)

	first := r.Resolve(parseSite)
	for range 10 {
		assert.Equal(t, first, r.Resolve(parseSite))
	}
	assert.Equal(t, int64(1), m.misses.Load())
	assert.Equal(t, int64(10), m.hits.Load())
	assert.Equal(t, 1, r.CachedSites())
}

func TestLastRegisteredWins(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	mustRegister(t, r, Pattern{Func: "parse*"}, LevelTrace)
	second := mustRegister(t, r, Pattern{File: "parser.go"}, LevelError)

	assert.Equal(t, LevelError, r.Resolve(parseSite))

	require.True(t, r.Unregister(second))
	assert.Equal(t, LevelTrace, r.Resolve(parseSite))
}

func TestRegisterUnregisterRoundTrip(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelNote)
	before := []Level{r.Resolve(parseSite), r.Resolve(renderSite)}

	h := mustRegister(t, r, Pattern{}, LevelTrace)
	assert.Equal(t, LevelTrace, r.Resolve(renderSite))
	assert.Equal(t, LevelTrace, r.MaxThreshold())

	require.True(t, r.Unregister(h))
	assert.False(t, r.Unregister(h), "second unregister is a no-op")

	assert.Equal(t, before, []Level{r.Resolve(parseSite), r.Resolve(renderSite)})
	assert.Equal(t, LevelNote, r.MaxThreshold())
}

func TestGenerationBumps(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	g0 := r.Generation()

	h := mustRegister(t, r, Pattern{}, LevelInfo)
	g1 := r.Generation()
	assert.Greater(t, g1, g0)

	r.SetDefault(LevelError)
	g2 := r.Generation()
	assert.Greater(t, g2, g1)

	r.Unregister(h)
	assert.Greater(t, r.Generation(), g2)
}

func TestSetDefaultInvalidatesCache(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	assert.Equal(t, LevelWarn, r.Resolve(renderSite))

	r.SetDefault(LevelDebug)
	assert.Equal(t, LevelDebug, r.Resolve(renderSite))
	assert.Equal(t, LevelDebug, r.MaxThreshold())
}

func TestRulesSnapshotAndReset(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	r := NewRegistry(LevelWarn, WithRegistryMetrics(m))
	h1 := mustRegister(t, r, Pattern{Func: "a"}, LevelInfo)
	h2 := mustRegister(t, r, Pattern{Func: "b"}, LevelDebug)
	h3 := mustRegister(t, r, Pattern{Func: "c"}, LevelTrace)
	r.Unregister(h2)

	rules := r.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, h1, rules[0].Handle)
	assert.Equal(t, "a", rules[0].Pattern.Func)
	assert.Equal(t, h3, rules[1].Handle)
	assert.Equal(t, LevelTrace, rules[1].Threshold)
	assert.Equal(t, int64(2), m.rules.Load())

	r.Reset()
	assert.Empty(t, r.Rules())
	assert.Equal(t, LevelWarn, r.MaxThreshold())
	assert.Equal(t, int64(0), m.rules.Load())
}

func TestUnregisterCompacts(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	handles := make([]RuleHandle, 0, 100)
	for i := range 100 {
		handles = append(handles, mustRegister(t, r, Pattern{Func: fmt.Sprintf("f%d", i)}, LevelInfo))
	}
	for _, h := range handles[:90] {
		require.True(t, r.Unregister(h))
	}

	r.mu.RLock()
	assert.Less(t, len(r.rules), 100, "tombstones should have been compacted")
	r.mu.RUnlock()

	rules := r.Rules()
	require.Len(t, rules, 10)
	assert.Equal(t, handles[90], rules[0].Handle)
	assert.Equal(t, LevelInfo, r.Resolve(NewCallSite("x.go", "pkg.f95", 1)))
	assert.Equal(t, LevelWarn, r.Resolve(NewCallSite("x.go", "pkg.f5", 1)))
}

func TestRegisterRejectsInvalid(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	_, err := r.Register(Rule{Pattern: Pattern{File: "re:("}, Threshold: LevelInfo})
	require.Error(t, err)
	_, err = r.Register(Rule{Threshold: Level(99)})
	require.Error(t, err)

	assert.Empty(t, r.Rules())
	assert.Equal(t, uint64(0), r.Generation())
}

func TestResolveBackslashFilePattern(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	mustRegister(t, r, Pattern{File: `parser\lex.go`}, LevelTrace)

	assert.Equal(t, LevelTrace, r.Resolve(NewCallSite(`C:\src\app\parser\lex.go`, "app.lex", 3)))
	assert.Equal(t, LevelTrace, r.Resolve(NewCallSite("/src/app/parser/lex.go", "app.lex", 3)))
	assert.Equal(t, LevelWarn, r.Resolve(NewCallSite("/src/app/render/lex.go", "app.lex", 3)))
	assert.Equal(t, `parser\lex.go`, r.Rules()[0].Pattern.File, "source is reported as written")
}

func TestMaxThresholdTracksLiveRules(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	trace1 := mustRegister(t, r, Pattern{Func: "a"}, LevelTrace)
	trace2 := mustRegister(t, r, Pattern{Func: "b"}, LevelTrace)
	debug := mustRegister(t, r, Pattern{Func: "c"}, LevelDebug)
	mustRegister(t, r, Pattern{Func: "d"}, LevelError)
	assert.Equal(t, LevelTrace, r.MaxThreshold())

	r.Unregister(trace1)
	assert.Equal(t, LevelTrace, r.MaxThreshold(), "another trace rule is still live")
	r.Unregister(trace2)
	assert.Equal(t, LevelDebug, r.MaxThreshold())
	r.Unregister(debug)
	assert.Equal(t, LevelWarn, r.MaxThreshold(), "quieter rules do not lower the default")

	r.SetDefault(LevelInfo)
	assert.Equal(t, LevelInfo, r.MaxThreshold())
	r.SetDefault(LevelOff)
	assert.Equal(t, LevelError, r.MaxThreshold())
}

func TestReplace(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	old := mustRegister(t, r, Pattern{Func: "render"}, LevelTrace)
	g0 := r.Generation()

	require.NoError(t, r.Replace(LevelError, []Rule{
		{Pattern: Pattern{Func: "parse*"}, Threshold: LevelDebug},
		{Pattern: Pattern{Func: "parseHeader"}, Threshold: LevelTrace},
	}))

	assert.Equal(t, g0+1, r.Generation(), "one change for the whole swap")
	assert.Equal(t, LevelError, r.Default())
	assert.Equal(t, LevelTrace, r.Resolve(parseSite))
	assert.Equal(t, LevelError, r.Resolve(renderSite))
	assert.Equal(t, LevelTrace, r.MaxThreshold())
	assert.False(t, r.Unregister(old))
	require.Len(t, r.Rules(), 2)
}

func TestReplaceRejectsInvalid(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	mustRegister(t, r, Pattern{Func: "render"}, LevelTrace)
	g0 := r.Generation()

	err := r.Replace(LevelInfo, []Rule{
		{Pattern: Pattern{Func: "parse*"}, Threshold: LevelDebug},
		{Pattern: Pattern{Line: "nine"}, Threshold: LevelTrace},
	})
	require.Error(t, err)
	require.Error(t, r.Replace(Level(42), nil))

	assert.Equal(t, g0, r.Generation())
	assert.Equal(t, LevelWarn, r.Default())
	assert.Equal(t, LevelTrace, r.Resolve(renderSite))
}

func TestReplaceKeepsSharedRulesVisible(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	shared := Rule{Pattern: Pattern{Func: "parse*"}, Threshold: LevelTrace}
	mustRegister(t, r, shared.Pattern, shared.Threshold)

	stop := make(chan struct{})
	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			for {
				select {
				case <-stop:
					return nil
				default:
				}
				if got := r.Resolve(parseSite); got != LevelTrace {
					return fmt.Errorf("resolved %s during replace", got)
				}
			}
		})
	}
	for i := range 200 {
		other := Rule{Pattern: Pattern{Func: fmt.Sprintf("render%d", i)}, Threshold: LevelDebug}
		require.NoError(t, r.Replace(LevelWarn, []Rule{other, shared}))
	}
	close(stop)
	require.NoError(t, g.Wait())
}

func TestLookupBypassesCache(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	mustRegister(t, r, Pattern{Func: "parse*"}, LevelTrace)

	for i := range 10 {
		site := NewCallSite(fmt.Sprintf("/tmp/f%d.go", i), "x.parseAnything", i)
		assert.Equal(t, LevelTrace, r.Lookup(site))
	}
	assert.Equal(t, LevelWarn, r.Lookup(renderSite))
	assert.Equal(t, 0, r.CachedSites())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry(LevelWarn)
	sites := make([]CallSite, 50)
	for i := range sites {
		sites[i] = NewCallSite(fmt.Sprintf("/src/f%d.go", i), fmt.Sprintf("pkg.fn%d", i), i)
	}

	var g errgroup.Group
	for w := range 8 {
		g.Go(func() error {
			for i := range 500 {
				site := sites[(i+w)%len(sites)]
				if l := r.Resolve(site); !l.Valid() {
					return fmt.Errorf("invalid level %d", l)
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := range 100 {
			h, err := r.Register(Rule{Pattern: Pattern{Func: fmt.Sprintf("fn%d", i%50)}, Threshold: LevelDebug})
			if err != nil {
				return err
			}
			if i%2 == 0 {
				r.Unregister(h)
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	// after the writers finish every site resolves deterministically
	for _, site := range sites {
		assert.Equal(t, r.Resolve(site), r.Resolve(site))
	}
	assert.Equal(t, LevelDebug, r.Resolve(sites[1]))
}

func BenchmarkResolveCached(b *testing.B) {
	r := NewRegistry(LevelWarn)
	_, _ = r.Register(Rule{Pattern: Pattern{Func: "parse*"}, Threshold: LevelTrace})
	r.Resolve(parseSite)

	b.ReportAllocs()
	for b.Loop() {
		r.Resolve(parseSite)
	}
}
