// This file defines the configuration structure for the application.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/vrsandeep/webpress/internal/models"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port int `mapstructure:"port"`
	// Workers is the size of the conversion pool, 0 means one per CPU.
	Workers int `mapstructure:"workers"`
	// PollIntervalMs is how often the event pump drains the queue.
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	Log            struct {
		MaxLines int  `mapstructure:"max_lines"`
		Echo     bool `mapstructure:"echo"`
	} `mapstructure:"log"`
	Defaults models.Options `mapstructure:"defaults"`
	Watch    struct {
		Path       string `mapstructure:"path"`
		OutputDir  string `mapstructure:"output_dir"`
		DebounceMs int    `mapstructure:"debounce_ms"`
		// SweepInterval is in minutes, 0 disables the periodic sweep.
		SweepInterval int `mapstructure:"sweep_interval"`
	} `mapstructure:"watch"`
}

// PollInterval returns the pump interval as a duration.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("workers", 0)
	v.SetDefault("poll_interval_ms", 100)
	v.SetDefault("log.max_lines", 5000)
	v.SetDefault("log.echo", true)

	v.SetDefault("defaults.output_dir", "")
	v.SetDefault("defaults.resize_enabled", false)
	v.SetDefault("defaults.width", 800)
	v.SetDefault("defaults.height", 600)
	v.SetDefault("defaults.quality_enabled", false)
	v.SetDefault("defaults.quality", 80)
	v.SetDefault("defaults.rename_enabled", false)
	v.SetDefault("defaults.output_filename", "output")
	v.SetDefault("defaults.workers", 0)
	v.SetDefault("defaults.legacy_rename_collisions", false)

	v.SetDefault("watch.path", "")
	v.SetDefault("watch.output_dir", "")
	v.SetDefault("watch.debounce_ms", 500)
	v.SetDefault("watch.sweep_interval", 0)
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith is Load on a caller supplied viper instance, so flags can be
// bound before the file and environment are read.
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")

	// WEBPRESS_WATCH_PATH overrides `watch.path`.
	v.SetEnvPrefix("WEBPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultOptions returns the batch options used when a request leaves them out.
func (c *Config) DefaultOptions() models.Options {
	opts := c.Defaults
	if opts.Workers == 0 {
		opts.Workers = c.Workers
	}
	return opts
}
