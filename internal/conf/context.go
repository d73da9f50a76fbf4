package conf

// Context is shared by the commands: the loader bound to the command line
// and the settings it produced.
type Context struct {
	Loader   *Loader
	Settings *Settings
}

// NewContext returns a Context holding the default settings.
func NewContext() *Context {
	return &Context{Settings: DefaultSettings()}
}
