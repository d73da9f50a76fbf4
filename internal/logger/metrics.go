package logger

// MetricsObserver receives counters from a Registry and a Dispatcher.
// Implementations must be safe for concurrent use.
type MetricsObserver interface {
	RecordEmitted(level string)
	RecordFiltered(level string)
	RecordWriteError()
	RecordCacheHit()
	RecordCacheMiss()
	SetRuleCount(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordEmitted(string)  {}
func (noopMetrics) RecordFiltered(string) {}
func (noopMetrics) RecordWriteError()     {}
func (noopMetrics) RecordCacheHit()       {}
func (noopMetrics) RecordCacheMiss()      {}
func (noopMetrics) SetRuleCount(int)      {}
