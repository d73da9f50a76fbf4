// Package conf loads scopelog settings from a YAML file, the environment and
// command line flags.
package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/logger"
)

const componentConf = "conf"

// ConfigName is the base name searched for when no file is given.
const ConfigName = "scopelog"

// Settings is the complete configuration file.
type Settings struct {
	logger.Config `yaml:",inline" mapstructure:",squash"`
	Telemetry     Telemetry `yaml:"telemetry" mapstructure:"telemetry" json:"telemetry"`
}

// Telemetry configures error reporting.
type Telemetry struct {
	SentryDSN string `yaml:"sentry_dsn" mapstructure:"sentry_dsn" json:"sentry_dsn"`
}

// Override is a location given on the command line or in the environment.
// With a location, Level applies to one extra rule; without one it replaces
// the default level.
type Override struct {
	Level string
	File  string
	Func  string
	Line  string
}

// DefaultOverrideLevel is the rule level of a location given without a level.
const DefaultOverrideLevel = "trace"

// HasLocation reports whether any location field is set.
func (o Override) HasLocation() bool {
	return o.File != "" || o.Func != "" || o.Line != ""
}

func (o Override) apply(c *logger.Config) error {
	if o.Level != "" {
		if _, err := logger.ParseLevel(o.Level); err != nil {
			return errors.ConfigError(componentConf, "level", o.Level, errors.NewStd("unknown level"))
		}
	}
	if !o.HasLocation() {
		if o.Level != "" {
			c.DefaultLevel = o.Level
		}
		return nil
	}
	lvl := o.Level
	if lvl == "" {
		lvl = DefaultOverrideLevel
	}
	c.Rules = append(c.Rules, logger.RuleConfig{File: o.File, Func: o.Func, Line: o.Line, Level: lvl})
	return nil
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() *Settings {
	return &Settings{Config: logger.DefaultConfig()}
}

// Validate checks the logger configuration.
func (s *Settings) Validate() error {
	return s.Config.Validate()
}

// Loader reads Settings through a private viper instance.
type Loader struct {
	mu    sync.Mutex
	v     *viper.Viper
	fs    afero.Fs
	file  string
	paths []string
	flags *pflag.FlagSet
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFs reads and writes configuration through fs.
func WithFs(fs afero.Fs) LoaderOption {
	return func(l *Loader) { l.fs = fs }
}

// WithConfigFile loads path instead of searching the default locations.
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) { l.file = path }
}

// WithSearchPaths replaces the directories searched for scopelog.yaml.
func WithSearchPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.paths = paths }
}

// WithFlags binds the flags registered by RegisterFlags.
func WithFlags(flags *pflag.FlagSet) LoaderOption {
	return func(l *Loader) { l.flags = flags }
}

// NewLoader creates a Loader. By default it reads the OS filesystem.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(l)
	}
	if l.paths == nil {
		l.paths = DefaultConfigPaths()
	}
	return l
}

// DefaultConfigPaths returns the directories searched for scopelog.yaml, in
// order.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "scopelog"))
	}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/scopelog")
	}
	return paths
}

// Load reads the configuration file, the environment and the flags, and
// validates the result. A missing file is only an error when one was given
// explicitly.
func (l *Loader) Load() (*Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, err := l.newViper()
	if err != nil {
		return nil, err
	}
	if err := l.read(v); err != nil {
		return nil, err
	}
	l.v = v
	return decode(v)
}

// ConfigFileUsed returns the file the last Load read, or "".
func (l *Loader) ConfigFileUsed() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.v == nil {
		return l.file
	}
	return l.v.ConfigFileUsed()
}

// Fs returns the filesystem the loader reads.
func (l *Loader) Fs() afero.Fs { return l.fs }

func (l *Loader) newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(l.fs)
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	if l.flags != nil {
		if err := bindFlags(v, l.flags); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (l *Loader) read(v *viper.Viper) error {
	if l.file != "" {
		exists, err := afero.Exists(l.fs, l.file)
		if err != nil || !exists {
			return errors.New(errors.NewStd("configuration file not found")).
				Component(componentConf).
				Category(errors.CategoryNotFound).
				Setting("config", l.file).
				Build()
		}
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName(ConfigName)
		for _, p := range l.paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.New(err).
			Component(componentConf).
			Category(errors.CategoryConfiguration).
			Setting("config", v.ConfigFileUsed()).
			Build()
	}
	return nil
}

// decode unmarshals v, applies the location override and validates.
func decode(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(s, hook); err != nil {
		return nil, errors.New(err).
			Component(componentConf).
			Category(errors.CategoryConfiguration).
			Build()
	}

	o := Override{
		Level: strings.TrimSpace(v.GetString(keyOverrideLevel)),
		File:  v.GetString(keyOverrideFile),
		Func:  v.GetString(keyOverrideFunc),
		Line:  v.GetString(keyOverrideLine),
	}
	if err := o.apply(&s.Config); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
