// Package config holds the bcr2kosc configuration as read through viper
// from flags, environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/chabad360/bcr2kosc/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. BCR2KOSC_OSC_LISTEN for
// osc.listen.
const EnvPrefix = "BCR2KOSC"

// Config is the complete configuration.
type Config struct {
	MIDI    MIDIConfig    `mapstructure:"midi"`
	OSC     OSCConfig     `mapstructure:"osc"`
	Rules   string        `mapstructure:"rules"`
	Device  uint8         `mapstructure:"device"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MIDIConfig names the ports the controller is attached to.
type MIDIConfig struct {
	In  string `mapstructure:"in"`
	Out string `mapstructure:"out"`
}

// OSCConfig sets where OSC is received and where it is sent.
type OSCConfig struct {
	Listen       string   `mapstructure:"listen"`
	Destinations []string `mapstructure:"destinations"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Format is text or json.
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		MIDI: MIDIConfig{
			In:  "BCR2000 Port 1",
			Out: "BCR2000 Port 1",
		},
		OSC: OSCConfig{
			Listen:       "127.0.0.1:9000",
			Destinations: []string{"127.0.0.1:8000"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("midi.in", d.MIDI.In)
	v.SetDefault("midi.out", d.MIDI.Out)
	v.SetDefault("osc.listen", d.OSC.Listen)
	v.SetDefault("osc.destinations", d.OSC.Destinations)
	v.SetDefault("rules", d.Rules)
	v.SetDefault("device", d.Device)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
}

// Init prepares v: defaults, environment overrides and the config file.
// An empty file searches the user config directory and the working
// directory for bcr2kosc.yaml; not finding one there is not an error.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName("bcr2kosc")
	v.SetConfigType("yaml")
	v.AddConfigPath(Dir())
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting in c.
func (c *Config) Validate() error {
	var errs []error
	if c.OSC.Listen == "" {
		errs = append(errs, errors.New("osc.listen must be set"))
	}
	if c.Device > 15 {
		errs = append(errs, fmt.Errorf("device must be 0..15, got %d", c.Device))
	}
	if !logging.IsLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Dir returns the user's bcr2kosc config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bcr2kosc")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bcr2kosc"
	}
	return filepath.Join(home, ".config", "bcr2kosc")
}
