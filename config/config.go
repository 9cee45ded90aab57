// Package config loads accelhound settings from defaults, an optional YAML
// file and ACCELHOUND_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/logging"
	"github.com/torre76/accelhound/probe"
)

// Public constants (alphabetical)

const (
	// DefaultFile is the config file read when none is named.
	DefaultFile = "accelhound.yml"

	// EnvPrefix prefixes every environment override, e.g.
	// ACCELHOUND_BENCHMARK_FRAMES.
	EnvPrefix = "ACCELHOUND"

	// ProviderFFmpeg selects the ffmpeg executable provider.
	ProviderFFmpeg = "ffmpeg"

	// ProviderLibav selects the in-process libav provider.
	ProviderLibav = "libav"
)

// Public types (alphabetical)

// BenchmarkConfig holds the benchmark harness settings.
type BenchmarkConfig struct {
	Width      int           `mapstructure:"width"`
	Height     int           `mapstructure:"height"`
	Frames     int           `mapstructure:"frames"`
	BitRate    int64         `mapstructure:"bitrate"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BindDevice bool          `mapstructure:"bind_device"`
}

// Config holds all the settings of the tool.
type Config struct {
	Provider   string          `mapstructure:"provider"`
	FFmpegPath string          `mapstructure:"ffmpeg_path"`
	MediaType  string          `mapstructure:"media_type"`
	Probe      ProbeConfig     `mapstructure:"probe"`
	Benchmark  BenchmarkConfig `mapstructure:"benchmark"`
	Logging    LoggingConfig   `mapstructure:"logging"`
}

// LoggingConfig holds the diagnostic logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProbeConfig holds the capability enumeration settings.
type ProbeConfig struct {
	// Mode is "verified" or "declared".
	Mode string `mapstructure:"mode"`

	// Workers is the number of backends verified concurrently.
	Workers int `mapstructure:"workers"`

	// Devices maps a backend to the device node to open for it.
	Devices map[string]string `mapstructure:"devices"`
}

// Public functions (alphabetical)

// Load merges defaults, the YAML file at path and the environment, then
// validates the result. A missing file is skipped; an unreadable or malformed
// one is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoggerConfig converts the logging section. Validate must have succeeded.
func (c *Config) LoggerConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level, _ = logging.ParseLevel(c.Logging.Level)
	if c.Logging.Format != "" {
		lc.Format = c.Logging.Format
	}
	return lc
}

// Mode returns the parsed probe mode. Validate must have succeeded.
func (c *Config) Mode() probe.Mode {
	m, _ := probe.ParseMode(c.Probe.Mode)
	return m
}

// Profile returns the parsed media type. Validate must have succeeded.
func (c *Config) Profile() codec.ContentProfile {
	p, _ := codec.ParseContentProfile(c.MediaType)
	return p
}

// Settings returns the benchmark parameters.
func (c *Config) Settings() probe.Settings {
	return probe.Settings{
		Width:   c.Benchmark.Width,
		Height:  c.Benchmark.Height,
		Frames:  c.Benchmark.Frames,
		BitRate: c.Benchmark.BitRate,
	}
}

// Validate checks every field and reports the first problem found.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderFFmpeg, ProviderLibav:
	default:
		return fmt.Errorf("config: unknown provider %q (expected %s or %s)", c.Provider, ProviderFFmpeg, ProviderLibav)
	}
	if _, err := codec.ParseContentProfile(c.MediaType); err != nil {
		return fmt.Errorf("config: media_type: %w", err)
	}
	if _, err := probe.ParseMode(c.Probe.Mode); err != nil {
		return fmt.Errorf("config: probe.mode: %w", err)
	}
	if c.Probe.Workers < 1 {
		return fmt.Errorf("config: probe.workers must be at least 1, got %d", c.Probe.Workers)
	}

	b := c.Benchmark
	if b.Width <= 0 || b.Height <= 0 || b.Width%2 != 0 || b.Height%2 != 0 {
		return fmt.Errorf("config: benchmark size %dx%d must be positive and even", b.Width, b.Height)
	}
	if b.Frames <= 0 {
		return fmt.Errorf("config: benchmark.frames must be positive, got %d", b.Frames)
	}
	if b.BitRate <= 0 {
		return fmt.Errorf("config: benchmark.bitrate must be positive, got %d", b.BitRate)
	}
	if b.Timeout < 0 {
		return fmt.Errorf("config: benchmark.timeout must not be negative, got %s", b.Timeout)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// Private functions (alphabetical)

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderFFmpeg)
	v.SetDefault("ffmpeg_path", "")
	v.SetDefault("media_type", codec.ProfileNone.String())

	v.SetDefault("probe.mode", probe.ModeVerified.String())
	v.SetDefault("probe.workers", 1)
	v.SetDefault("probe.devices", map[string]string{})

	v.SetDefault("benchmark.width", probe.DefaultWidth)
	v.SetDefault("benchmark.height", probe.DefaultHeight)
	v.SetDefault("benchmark.frames", probe.DefaultFrames)
	v.SetDefault("benchmark.bitrate", probe.DefaultBitRate)
	v.SetDefault("benchmark.timeout", time.Duration(0))
	v.SetDefault("benchmark.bind_device", false)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", logging.FormatConsole)
}
