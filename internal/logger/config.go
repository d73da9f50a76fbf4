package logger

import (
	"io"
	"maps"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/format"
)

// Config is the configuration surface of a Dispatcher.
type Config struct {
	DefaultLevel string        `yaml:"default_level" mapstructure:"default_level" json:"default_level"`
	MaxDepth     int           `yaml:"max_depth" mapstructure:"max_depth" json:"max_depth"`          // NoDepthLimit for none
	DepthSource  string        `yaml:"depth_source" mapstructure:"depth_source" json:"depth_source"` // scope or stack
	StripCalls   int           `yaml:"strip_calls" mapstructure:"strip_calls" json:"strip_calls"`    // stack mode only
	Rules        []RuleConfig  `yaml:"rules" mapstructure:"rules" json:"rules"`
	Format       format.Config `yaml:"format" mapstructure:"format" json:"format"`
	Output       OutputConfig  `yaml:"output" mapstructure:"output" json:"output"`
}

// RuleConfig is a location rule as written in configuration.
type RuleConfig struct {
	File  string `yaml:"file,omitempty" mapstructure:"file" json:"file,omitempty"`
	Func  string `yaml:"func,omitempty" mapstructure:"func" json:"func,omitempty"`
	Line  string `yaml:"line,omitempty" mapstructure:"line" json:"line,omitempty"`
	Level string `yaml:"level" mapstructure:"level" json:"level"`
}

// OutputConfig selects the sink.
type OutputConfig struct {
	Target        string        `yaml:"target" mapstructure:"target" json:"target"` // stderr, stdout or a file path
	BufferSize    int           `yaml:"buffer_size" mapstructure:"buffer_size" json:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval" json:"flush_interval"`
}

// Output targets that are not file paths.
const (
	TargetStderr = "stderr"
	TargetStdout = "stdout"
)

// Default values
const (
	DefaultLevelName = "warn"
	DefaultTarget    = TargetStderr
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		DefaultLevel: DefaultLevelName,
		MaxDepth:     NoDepthLimit,
		DepthSource:  ScopeDepth.String(),
		StripCalls:   DefaultStripCalls,
		Format:       format.DefaultConfig(),
		Output: OutputConfig{
			Target:        DefaultTarget,
			BufferSize:    DefaultBufferSize,
			FlushInterval: DefaultFlushInterval,
		},
	}
}

// compiledConfig holds the validated parts of a Config.
type compiledConfig struct {
	def    Level
	source DepthSource
	rules  []Rule
	format format.Config
}

func (c *Config) compile() (*compiledConfig, error) {
	out := &compiledConfig{format: c.Format}

	var err error
	if out.def, err = parseLevelField("default_level", c.DefaultLevel); err != nil {
		return nil, err
	}
	if out.source, err = ParseDepthSource(c.DepthSource); err != nil {
		return nil, err
	}
	if c.MaxDepth < NoDepthLimit {
		return nil, errors.ConfigError(componentLogger, "max_depth", c.MaxDepth,
			errors.NewStd("must be -1 (no limit) or a depth"))
	}
	if c.StripCalls < 0 {
		return nil, errors.ConfigError(componentLogger, "strip_calls", c.StripCalls, errors.NewStd("must not be negative"))
	}

	for i, rc := range c.Rules {
		prefix := "rules[" + strconv.Itoa(i) + "]."
		lvl, err := parseLevelField(prefix+"level", rc.Level)
		if err != nil {
			return nil, err
		}
		p := Pattern{File: rc.File, Func: rc.Func, Line: rc.Line}
		if _, field, value, err := compilePattern(p); err != nil {
			return nil, errors.ConfigError(componentLogger, prefix+field, value, err)
		}
		out.rules = append(out.rules, Rule{Pattern: p, Threshold: lvl})
	}

	// Level styles are keyed by long level names; accept any alias.
	if len(c.Format.LevelStyles) > 0 {
		styles := make(map[string]string, len(c.Format.LevelStyles))
		for name, spec := range c.Format.LevelStyles {
			lvl, err := parseLevelField("format.level_styles."+name, name)
			if err != nil {
				return nil, err
			}
			styles[lvl.String()] = spec
		}
		out.format.LevelStyles = styles
	}
	if len(c.Format.Tags) > 0 {
		out.format.Tags = maps.Clone(c.Format.Tags)
	}
	return out, nil
}

func parseLevelField(field, value string) (Level, error) {
	lvl, err := ParseLevel(value)
	if err != nil {
		return LevelOff, errors.ConfigError(componentLogger, field, value, errors.NewStd("unknown level"))
	}
	return lvl, nil
}

// Validate checks c without opening any output.
func (c Config) Validate() error {
	cc, err := c.compile()
	if err != nil {
		return err
	}
	_, err = format.New(cc.format, format.WithColor(false))
	return err
}

// New builds a Dispatcher from c: registry with the configured rules,
// formatter and sink. WithMetrics also instruments the registry.
func New(c Config, opts ...DispatcherOption) (*Dispatcher, error) {
	cc, err := c.compile()
	if err != nil {
		return nil, err
	}

	// background flush failures of a file sink count as write errors
	var owner atomic.Pointer[Dispatcher]
	onFlushError := func(err error) {
		if d := owner.Load(); d != nil {
			d.recordWriteError(err)
		}
	}

	sink, out, err := openOutput(c.Output, onFlushError)
	if err != nil {
		return nil, err
	}

	f, err := format.New(cc.format, format.WithOutput(out))
	if err != nil {
		closeSink(sink)
		return nil, err
	}

	// collect the observer so that the registry reports to it too
	probe := &Dispatcher{metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(probe)
	}

	reg := NewRegistry(cc.def, WithRegistryMetrics(probe.metrics))
	for _, rule := range cc.rules {
		if _, err := reg.Register(rule); err != nil {
			closeSink(sink)
			return nil, err
		}
	}

	base := []DispatcherOption{
		WithMaxDepth(c.MaxDepth),
		WithDepthSource(cc.source, c.StripCalls),
	}
	d := NewDispatcher(reg, f, sink, append(base, opts...)...)
	owner.Store(d)
	return d, nil
}

// ApplyRules replaces the default level and the rules of reg with those of
// c in a single registry update. Format and output settings are not
// affected. Nothing is changed if c does not compile.
func (c Config) ApplyRules(reg *Registry) error {
	cc, err := c.compile()
	if err != nil {
		return err
	}
	return reg.Replace(cc.def, cc.rules)
}

// openOutput returns the sink for cfg and the writer used to detect a
// terminal, nil for files.
func openOutput(cfg OutputConfig, onFlushError func(error)) (Sink, io.Writer, error) {
	switch strings.ToLower(cfg.Target) {
	case "", TargetStderr:
		return NewWriterSink(os.Stderr), os.Stderr, nil
	case TargetStdout:
		return NewWriterSink(os.Stdout), os.Stdout, nil
	}
	fs, err := OpenFileSink(cfg.Target,
		WithBufferSize(cfg.BufferSize),
		WithFlushInterval(cfg.FlushInterval),
		WithFlushErrorHandler(onFlushError),
	)
	if err != nil {
		return nil, nil, err
	}
	return fs, nil, nil
}

func closeSink(s Sink) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}
