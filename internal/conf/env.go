package conf

import (
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/logger"
	"github.com/tphakala/scopelog/internal/style"
)

// Keys of the location override. They are not part of the file format.
const (
	keyOverrideLevel = "override.level"
	keyOverrideFile  = "override.file"
	keyOverrideFunc  = "override.func"
	keyOverrideLine  = "override.line"
)

// envBinding ties an environment variable to a configuration key.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{keyOverrideLevel, "SCOPELOG_LEVEL", validateEnvLevel},
		{keyOverrideFile, "SCOPELOG_FILE", validateEnvPattern},
		{keyOverrideFunc, "SCOPELOG_FUNC", validateEnvPattern},
		{keyOverrideLine, "SCOPELOG_LINE", validateEnvLine},
		{"max_depth", "SCOPELOG_DEPTH", validateEnvDepth},
		{"format.template", "SCOPELOG_FORMAT", nil},
		{"format.color", "SCOPELOG_COLOR", validateEnvColor},
		{"output.target", "SCOPELOG_OUTPUT", nil},
		{"telemetry.sentry_dsn", "SCOPELOG_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every variable and validates the ones that are set.
func bindEnvVars(v *viper.Viper) error {
	var errs []error
	for _, b := range getEnvBindings() {
		if err := v.BindEnv(b.ConfigKey, b.EnvVar); err != nil {
			errs = append(errs, err)
			continue
		}
		if b.Validate == nil {
			continue
		}
		if value := os.Getenv(b.EnvVar); value != "" {
			if err := b.Validate(value); err != nil {
				errs = append(errs, errors.ConfigError(componentConf, b.EnvVar, value, err))
			}
		}
	}
	return errors.Join(errs...)
}

func validateEnvLevel(value string) error {
	_, err := logger.ParseLevel(value)
	return err
}

func validateEnvPattern(value string) error {
	_, err := logger.CompileMatcher(value)
	return err
}

func validateEnvLine(value string) error {
	_, err := logger.CompilePattern(logger.Pattern{Line: value})
	return err
}

func validateEnvDepth(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return errors.NewStd("not an integer")
	}
	if n < logger.NoDepthLimit {
		return errors.NewStd("must be -1 (no limit) or a depth")
	}
	return nil
}

func validateEnvColor(value string) error {
	_, err := style.ParseMode(value)
	return err
}

// Flag names registered by RegisterFlags.
const (
	FlagConfig = "config"
	FlagLevel  = "level"
	FlagFile   = "file"
	FlagFunc   = "func"
	FlagLine   = "line"
	FlagDepth  = "depth"
	FlagFormat = "format"
	FlagColor  = "color"
	FlagOutput = "output"
)

var flagKeys = map[string]string{
	FlagLevel:  keyOverrideLevel,
	FlagFile:   keyOverrideFile,
	FlagFunc:   keyOverrideFunc,
	FlagLine:   keyOverrideLine,
	FlagDepth:  "max_depth",
	FlagFormat: "format.template",
	FlagColor:  "format.color",
	FlagOutput: "output.target",
}

// RegisterFlags adds the configuration flags to fs. Unset flags never
// override the file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagConfig, "c", "", "configuration file (default: search for scopelog.yaml)")
	fs.StringP(FlagLevel, "l", "", "default level, or the level of --file/--func/--line")
	fs.String(FlagFile, "", "source file expression of an extra rule")
	fs.String(FlagFunc, "", "function expression of an extra rule")
	fs.String(FlagLine, "", "line range of an extra rule, e.g. 10-200")
	fs.Int(FlagDepth, logger.NoDepthLimit, "maximum depth, -1 for no limit")
	fs.String(FlagFormat, "", "format template")
	fs.String(FlagColor, "", "colour mode: auto, always or never")
	fs.StringP(FlagOutput, "o", "", "output: stderr, stdout or a file path")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}
