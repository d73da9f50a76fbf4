package conf

import (
	"github.com/spf13/viper"

	"github.com/tphakala/scopelog/internal/logger"
)

// setDefaultConfig registers the scalar defaults of logger.DefaultConfig.
// Level styles are left to the formatter so that configured ones are not
// merged with the built-in set.
func setDefaultConfig(v *viper.Viper) {
	d := logger.DefaultConfig()

	v.SetDefault("default_level", d.DefaultLevel)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("depth_source", d.DepthSource)
	v.SetDefault("strip_calls", d.StripCalls)

	v.SetDefault("format.template", d.Format.Template)
	v.SetDefault("format.indent", d.Format.Indent)
	v.SetDefault("format.depth_mark", d.Format.DepthMark)
	v.SetDefault("format.hfill_mark", d.Format.HFillMark)
	v.SetDefault("format.hfill_min", d.Format.HFillMin)
	v.SetDefault("format.hfill_max", d.Format.HFillMax)
	v.SetDefault("format.filename", d.Format.Filename)
	v.SetDefault("format.time_format", d.Format.TimeFormat)
	v.SetDefault("format.timezone", d.Format.Timezone)
	v.SetDefault("format.color", d.Format.Color)

	v.SetDefault("output.target", d.Output.Target)
	v.SetDefault("output.buffer_size", d.Output.BufferSize)
	v.SetDefault("output.flush_interval", d.Output.FlushInterval)

	v.SetDefault("telemetry.sentry_dsn", "")
}
