package log

import (
	"github.com/spf13/pflag"
)

// Options contains configuration settings for the logger.
type Options struct {
	Name          string   `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Level         string   `json:"level,omitempty" yaml:"level" mapstructure:"level"`
	Format        string   `json:"format,omitempty" yaml:"format" mapstructure:"format"`
	EnableColor   bool     `json:"enable-color,omitempty" yaml:"enable-color" mapstructure:"enable-color"`
	DisableCaller bool     `json:"disable-caller,omitempty" yaml:"disable-caller" mapstructure:"disable-caller"`
	CallerSkip    int      `json:"caller-skip,omitempty" yaml:"caller-skip" mapstructure:"caller-skip"`
	OutputPaths   []string `json:"output-paths,omitempty" yaml:"output-paths" mapstructure:"output-paths"`
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
		CallerSkip:  2,
		OutputPaths: []string{"stdout"},
	}
}

// Validate is a no-op; unknown levels fall back to info.
func (o *Options) Validate() []error {
	return nil
}

// AddFlags binds command-line flags to the Options fields.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "log.name", o.Name, "An optional name for the logger.")
	fs.StringVar(&o.Format, "log.format", o.Format, "The log output format ('json' or 'console').")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Enable colorized output for the console format.")
	fs.StringVar(&o.Level, "log.level", o.Level, "The minimum log level to output (e.g., 'debug', 'info', 'warn', 'error').")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Disable the caller field in logs.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "A list of log output paths (e.g., 'stdout', '/var/log/farmer.log').")
}
