package format

// Config is the formatting part of the configuration surface.
type Config struct {
	// Template is the line layout, see the package documentation.
	Template string `yaml:"template" mapstructure:"template" json:"template"`

	Indent    string `yaml:"indent" mapstructure:"indent" json:"indent"`             // unit repeated by {depth_indent}
	DepthMark string `yaml:"depth_mark" mapstructure:"depth_mark" json:"depth_mark"` // unit repeated by {depth_marks}
	HFillMark string `yaml:"hfill_mark" mapstructure:"hfill_mark" json:"hfill_mark"`
	HFillMin  int    `yaml:"hfill_min" mapstructure:"hfill_min" json:"hfill_min"`
	HFillMax  int    `yaml:"hfill_max" mapstructure:"hfill_max" json:"hfill_max"`

	Filename   string `yaml:"filename" mapstructure:"filename" json:"filename"` // path, base, dir, dirbase, stem, dirstem
	TimeFormat string `yaml:"time_format" mapstructure:"time_format" json:"time_format"`
	Timezone   string `yaml:"timezone" mapstructure:"timezone" json:"timezone"`
	Color      string `yaml:"color" mapstructure:"color" json:"color"` // auto, always, never

	LevelStyles    map[string]string    `yaml:"level_styles" mapstructure:"level_styles" json:"level_styles"`
	DefaultStyle   string               `yaml:"default_style" mapstructure:"default_style" json:"default_style"`
	DepthStyles    []string             `yaml:"depth_styles" mapstructure:"depth_styles" json:"depth_styles"`
	FileHashStyles []string             `yaml:"filehash_styles" mapstructure:"filehash_styles" json:"filehash_styles"`
	FuncHashStyles []string             `yaml:"funchash_styles" mapstructure:"funchash_styles" json:"funchash_styles"`
	Styles         map[string]string    `yaml:"styles" mapstructure:"styles" json:"styles"`
	Tags           map[string]TagConfig `yaml:"tags" mapstructure:"tags" json:"tags"`
}

// TagConfig describes a value-dependent style. Default is required.
type TagConfig struct {
	Key     string            `yaml:"key" mapstructure:"key" json:"key"`
	Cases   map[string]string `yaml:"cases" mapstructure:"cases" json:"cases"`
	Default string            `yaml:"default" mapstructure:"default" json:"default"`
}

// Default values
const (
	DefaultTemplate   = "{level_fmt}[{level}]{reset} {depth_indent}{msg}"
	DefaultIndent     = "  "
	DefaultDepthMark  = ">"
	DefaultHFillMark  = "."
	DefaultHFillMin   = 40
	DefaultHFillMax   = 120
	DefaultTimeFormat = "15:04:05.000"
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Template:   DefaultTemplate,
		Indent:     DefaultIndent,
		DepthMark:  DefaultDepthMark,
		HFillMark:  DefaultHFillMark,
		HFillMin:   DefaultHFillMin,
		HFillMax:   DefaultHFillMax,
		Filename:   string(FilenamePath),
		TimeFormat: DefaultTimeFormat,
		Timezone:   "Local",
		Color:      "auto",
		LevelStyles: map[string]string{
			"critical": "fg=bright_red bold",
			"error":    "fg=red bold",
			"warn":     "fg=yellow",
			"progress": "fg=magenta",
			"note":     "fg=cyan",
			"debug":    "dim",
			"trace":    "dim",
		},
	}
}

// applyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Template == "" {
		c.Template = d.Template
	}
	if c.Indent == "" {
		c.Indent = d.Indent
	}
	if c.DepthMark == "" {
		c.DepthMark = d.DepthMark
	}
	if c.HFillMark == "" {
		c.HFillMark = d.HFillMark
	}
	if c.HFillMax == 0 {
		c.HFillMax = d.HFillMax
	}
	if c.HFillMin == 0 {
		c.HFillMin = min(d.HFillMin, c.HFillMax)
	}
	if c.Filename == "" {
		c.Filename = d.Filename
	}
	if c.TimeFormat == "" {
		c.TimeFormat = d.TimeFormat
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.Color == "" {
		c.Color = d.Color
	}
	if c.LevelStyles == nil {
		c.LevelStyles = d.LevelStyles
	}
}
