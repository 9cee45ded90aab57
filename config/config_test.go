package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/logging"
	"github.com/torre76/accelhound/probe"
)

// ConfigTestSuite covers loading and validation.
type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) writeFile(content string) string {
	path := filepath.Join(s.T().TempDir(), "accelhound.yaml")
	require.NoError(s.T(), os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestDefaults checks the values used without file or environment.
func (s *ConfigTestSuite) TestDefaults() {
	cfg, err := Load("")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), ProviderFFmpeg, cfg.Provider)
	assert.Equal(s.T(), codec.ProfileNone, cfg.Profile())
	assert.Equal(s.T(), probe.ModeVerified, cfg.Mode())
	assert.Equal(s.T(), 1, cfg.Probe.Workers)
	assert.Equal(s.T(), probe.DefaultSettings(), cfg.Settings())
	assert.Zero(s.T(), cfg.Benchmark.Timeout)
	assert.False(s.T(), cfg.Benchmark.BindDevice)

	lc := cfg.LoggerConfig()
	assert.Equal(s.T(), zerolog.WarnLevel, lc.Level)
	assert.Equal(s.T(), logging.FormatConsole, lc.Format)
}

// TestFile checks values read from YAML.
func (s *ConfigTestSuite) TestFile() {
	path := s.writeFile(`
provider: ffmpeg
ffmpeg_path: /opt/ffmpeg/bin/ffmpeg
media_type: HDR
probe:
  mode: declared
  workers: 4
  devices:
    vaapi: /dev/dri/renderD129
benchmark:
  width: 1280
  height: 720
  frames: 60
  timeout: 45s
  bind_device: true
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(s.T(), codec.ProfileHDR, cfg.Profile())
	assert.Equal(s.T(), probe.ModeDeclared, cfg.Mode())
	assert.Equal(s.T(), 4, cfg.Probe.Workers)
	assert.Equal(s.T(), "/dev/dri/renderD129", cfg.Probe.Devices["vaapi"])
	assert.Equal(s.T(), probe.Settings{Width: 1280, Height: 720, Frames: 60, BitRate: probe.DefaultBitRate}, cfg.Settings())
	assert.Equal(s.T(), 45*time.Second, cfg.Benchmark.Timeout)
	assert.True(s.T(), cfg.Benchmark.BindDevice)
	assert.Equal(s.T(), zerolog.DebugLevel, cfg.LoggerConfig().Level)
	assert.Equal(s.T(), logging.FormatJSON, cfg.LoggerConfig().Format)
}

// TestEnvironmentOverridesFile checks the priority of environment values.
func (s *ConfigTestSuite) TestEnvironmentOverridesFile() {
	path := s.writeFile("benchmark:\n  frames: 60\n")
	s.T().Setenv("ACCELHOUND_BENCHMARK_FRAMES", "90")
	s.T().Setenv("ACCELHOUND_MEDIA_TYPE", "sdr")

	cfg, err := Load(path)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 90, cfg.Benchmark.Frames)
	assert.Equal(s.T(), codec.ProfileSDR, cfg.Profile())
}

// TestMissingFile checks that a missing file falls back to defaults.
func (s *ConfigTestSuite) TestMissingFile() {
	cfg, err := Load(filepath.Join(s.T().TempDir(), "missing.yaml"))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), ProviderFFmpeg, cfg.Provider)
}

// TestMalformedFile checks that a broken file is reported.
func (s *ConfigTestSuite) TestMalformedFile() {
	_, err := Load(s.writeFile("benchmark: [unclosed\n"))
	assert.Error(s.T(), err)
}

// TestValidate checks that each invalid field is reported.
func (s *ConfigTestSuite) TestValidate() {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.Provider = "gstreamer" }},
		{"media type", func(c *Config) { c.MediaType = "dolby" }},
		{"mode", func(c *Config) { c.Probe.Mode = "guess" }},
		{"workers", func(c *Config) { c.Probe.Workers = 0 }},
		{"odd width", func(c *Config) { c.Benchmark.Width = 1919 }},
		{"zero height", func(c *Config) { c.Benchmark.Height = 0 }},
		{"frames", func(c *Config) { c.Benchmark.Frames = 0 }},
		{"bitrate", func(c *Config) { c.Benchmark.BitRate = -1 }},
		{"timeout", func(c *Config) { c.Benchmark.Timeout = -time.Second }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg, err := Load("")
			require.NoError(s.T(), err)
			tc.mutate(cfg)
			assert.Error(s.T(), cfg.Validate())
		})
	}
}

// TestConfigSuite runs the config test suite.
func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
