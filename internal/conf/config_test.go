package conf

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/logger"
)

const sampleYAML = `
default_level: note
max_depth: 4
rules:
  - file: "parser/*.go"
    func: "parse*"
    line: "10-200"
    level: trace
format:
  template: "[{level_short}] {msg}"
  color: never
  styles:
    discreet: "fg=white dim"
output:
  target: stdout
  flush_interval: 2s
telemetry:
  sentry_dsn: "https://key@example.invalid/1"
`

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Parallel()

	l := NewLoader(WithFs(afero.NewMemMapFs()), WithSearchPaths("/etc/scopelog"))
	s, err := l.Load()
	require.NoError(t, err)

	d := logger.DefaultConfig()
	assert.Equal(t, d.DefaultLevel, s.DefaultLevel)
	assert.Equal(t, d.MaxDepth, s.MaxDepth)
	assert.Equal(t, d.Format.Template, s.Format.Template)
	assert.Equal(t, d.Output, s.Output)
	assert.Empty(t, s.Rules)
	assert.Empty(t, l.ConfigFileUsed())
}

func TestLoadYAMLFile(t *testing.T) {
	t.Parallel()

	fs := memFs(t, map[string]string{"/cfg/app.yaml": sampleYAML})
	s, err := NewLoader(WithFs(fs), WithConfigFile("/cfg/app.yaml")).Load()
	require.NoError(t, err)

	assert.Equal(t, "note", s.DefaultLevel)
	assert.Equal(t, 4, s.MaxDepth)
	assert.Equal(t, []logger.RuleConfig{{File: "parser/*.go", Func: "parse*", Line: "10-200", Level: "trace"}}, s.Rules)
	assert.Equal(t, "[{level_short}] {msg}", s.Format.Template)
	assert.Equal(t, "never", s.Format.Color)
	assert.Equal(t, map[string]string{"discreet": "fg=white dim"}, s.Format.Styles)
	assert.Equal(t, "  ", s.Format.Indent, "unset keys keep their defaults")
	assert.Equal(t, logger.TargetStdout, s.Output.Target)
	assert.Equal(t, 2*time.Second, s.Output.FlushInterval)
	assert.Equal(t, "https://key@example.invalid/1", s.Telemetry.SentryDSN)
}

func TestLoadSearchesPaths(t *testing.T) {
	t.Parallel()

	fs := memFs(t, map[string]string{"/etc/scopelog/scopelog.yaml": "default_level: info\n"})
	l := NewLoader(WithFs(fs), WithSearchPaths("/home/none/.config/scopelog", "/etc/scopelog"))
	s, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "info", s.DefaultLevel)
	assert.Equal(t, "/etc/scopelog/scopelog.yaml", l.ConfigFileUsed())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := NewLoader(WithFs(afero.NewMemMapFs()), WithConfigFile("/nope.yaml")).Load()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))

	field, value, ok := errors.Setting(err)
	require.True(t, ok)
	assert.Equal(t, "config", field)
	assert.Equal(t, "/nope.yaml", value)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"rule level", "rules:\n  - func: main\n    level: loud\n", "rules[0].level"},
		{"rule line", "rules:\n  - line: 20-10\n    level: info\n", "rules[0].line"},
		{"template", "format:\n  template: \"{msg:.x}\"\n", "format.template"},
		{"colour", "format:\n  depth_styles: [\"fg=300\"]\n", "format.depth_styles[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := memFs(t, map[string]string{"/scopelog.yaml": tt.yaml})
			_, err := NewLoader(WithFs(fs), WithConfigFile("/scopelog.yaml")).Load()
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err), err.Error())

			field, _, ok := errors.Setting(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	fs := memFs(t, map[string]string{"/scopelog.yaml": "rules: [\n"})
	_, err := NewLoader(WithFs(fs), WithConfigFile("/scopelog.yaml")).Load()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SCOPELOG_LEVEL", "debug")
	t.Setenv("SCOPELOG_DEPTH", "3")
	t.Setenv("SCOPELOG_COLOR", "always")
	t.Setenv("SCOPELOG_FORMAT", "{msg}")
	t.Setenv("SCOPELOG_OUTPUT", "stdout")

	fs := memFs(t, map[string]string{"/scopelog.yaml": sampleYAML})
	s, err := NewLoader(WithFs(fs), WithConfigFile("/scopelog.yaml")).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", s.DefaultLevel)
	assert.Equal(t, 3, s.MaxDepth)
	assert.Equal(t, "always", s.Format.Color)
	assert.Equal(t, "{msg}", s.Format.Template)
	assert.Equal(t, logger.TargetStdout, s.Output.Target)
	assert.Len(t, s.Rules, 1)
}

func TestEnvironmentLocationAddsRule(t *testing.T) {
	t.Setenv("SCOPELOG_FUNC", "render*")
	t.Setenv("SCOPELOG_LINE", "1-50")

	s, err := NewLoader(WithFs(afero.NewMemMapFs()), WithSearchPaths("/")).Load()
	require.NoError(t, err)

	assert.Equal(t, logger.DefaultLevelName, s.DefaultLevel)
	require.Len(t, s.Rules, 1)
	assert.Equal(t, logger.RuleConfig{Func: "render*", Line: "1-50", Level: DefaultOverrideLevel}, s.Rules[0])
}

func TestInvalidEnvironmentValue(t *testing.T) {
	t.Setenv("SCOPELOG_COLOR", "rainbow")

	_, err := NewLoader(WithFs(afero.NewMemMapFs()), WithSearchPaths("/")).Load()
	require.Error(t, err)

	field, value, ok := errors.Setting(err)
	require.True(t, ok)
	assert.Equal(t, "SCOPELOG_COLOR", field)
	assert.Equal(t, "rainbow", value)
}

func TestFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--level=info", "--func=render", "--depth=2", "-o", "stderr"}))

	fs := memFs(t, map[string]string{"/scopelog.yaml": sampleYAML})
	s, err := NewLoader(WithFs(fs), WithConfigFile("/scopelog.yaml"), WithFlags(flags)).Load()
	require.NoError(t, err)

	assert.Equal(t, "note", s.DefaultLevel, "a level with a location applies to the extra rule")
	require.Len(t, s.Rules, 2)
	assert.Equal(t, logger.RuleConfig{Func: "render", Level: "info"}, s.Rules[1])
	assert.Equal(t, 2, s.MaxDepth)
	assert.Equal(t, logger.TargetStderr, s.Output.Target)
	assert.Equal(t, "[{level_short}] {msg}", s.Format.Template, "unset flags keep the file value")
}

func TestFlagLevelWithoutLocation(t *testing.T) {
	t.Parallel()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--level", "xdebug"}))

	s, err := NewLoader(WithFs(afero.NewMemMapFs()), WithSearchPaths("/"), WithFlags(flags)).Load()
	require.NoError(t, err)
	assert.Equal(t, "xdebug", s.DefaultLevel)
	assert.Empty(t, s.Rules)

	require.NoError(t, flags.Set(FlagLevel, "chatty"))
	_, err = NewLoader(WithFs(afero.NewMemMapFs()), WithSearchPaths("/"), WithFlags(flags)).Load()
	field, _, ok := errors.Setting(err)
	require.True(t, ok)
	assert.Equal(t, "level", field)
}
