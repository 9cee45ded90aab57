package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/codec/codectest"
	"github.com/torre76/accelhound/config"
	"github.com/torre76/accelhound/probe"
	"github.com/torre76/accelhound/sysinfo"
)

// MainTestSuite drives the command line application against an in-memory
// provider.
type MainTestSuite struct {
	suite.Suite
	provider     *codectest.Provider
	providerErr  error
	configPath   string
	origProvider func(context.Context, *config.Config) (codec.Provider, string, error)
	origNoColor  bool
	lastCfg      *config.Config
}

// SetupSuite disables colors so output can be matched verbatim.
func (s *MainTestSuite) SetupSuite() {
	s.origNoColor = color.NoColor
	color.NoColor = true
	s.origProvider = newProvider
}

// TearDownSuite restores the globals touched by the suite.
func (s *MainTestSuite) TearDownSuite() {
	color.NoColor = s.origNoColor
	newProvider = s.origProvider
}

// SetupTest installs a provider with one working and one broken hardware
// encoder next to a software one.
func (s *MainTestSuite) SetupTest() {
	s.provider = &codectest.Provider{
		ProviderName: "memory",
		BackendList:  []codec.Backend{"cuda", "vaapi"},
		CodecList: []*codec.Codec{
			codectest.HardwareEncoder("h264_nvenc", "h264", "cuda"),
			codectest.HardwareEncoder("hevc_nvenc", "hevc", "cuda"),
			codectest.SoftwareEncoder("libx264", "h264"),
		},
		DeviceErrs: map[codec.Backend]error{"vaapi": codectest.ErrInjected},
		Behaviors: map[string]codectest.Behavior{
			"hevc_nvenc": {OpenErr: codectest.ErrInjected},
		},
	}
	s.providerErr = nil
	s.lastCfg = nil
	s.configPath = filepath.Join(s.T().TempDir(), "missing.yml")

	newProvider = func(_ context.Context, cfg *config.Config) (codec.Provider, string, error) {
		s.lastCfg = cfg
		if s.providerErr != nil {
			return nil, "", s.providerErr
		}
		return s.provider, "memory 1.0", nil
	}
}

// run executes the application with args and returns what it printed.
func (s *MainTestSuite) run(args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard

	full := append([]string{"accelhound", "--config", s.configPath, "--frames", "4"}, args...)
	err := app.Run(full)
	return out.String(), err
}

// TestBestPicksFastestVerified checks the default action end to end.
func (s *MainTestSuite) TestBestPicksFastestVerified() {
	out, err := s.run()
	require.NoError(s.T(), err)

	assert.Contains(s.T(), out, "Provider: memory 1.0")
	assert.Contains(s.T(), out, "Testing encoder: h264_nvenc (cuda)...")
	assert.Contains(s.T(), out, "Performance: ")
	assert.NotContains(s.T(), out, "hevc_nvenc")
	assert.Contains(s.T(), out, "Best device encoder: h264_nvenc (cuda) with performance ")
	assert.Zero(s.T(), s.provider.LiveSessions())
	assert.Zero(s.T(), s.provider.LiveDevices())
}

// TestBestDeclaredKeepsFailures checks that declared mode scores the broken
// encoder as zero without electing it.
func (s *MainTestSuite) TestBestDeclaredKeepsFailures() {
	out, err := s.run("--declared")
	require.NoError(s.T(), err)

	assert.Contains(s.T(), out, "Testing encoder: hevc_nvenc (cuda)...")
	assert.Contains(s.T(), out, "Testing encoder: hevc_nvenc (vaapi)...")
	assert.Contains(s.T(), out, "4 encoders benchmarked")
	assert.Contains(s.T(), out, "Best device encoder: h264_nvenc")
	require.NotNil(s.T(), s.lastCfg)
	assert.Equal(s.T(), "declared", s.lastCfg.Probe.Mode)
}

// TestBestWithoutHardware checks the message printed when nothing is found.
func (s *MainTestSuite) TestBestWithoutHardware() {
	s.provider.BackendList = nil

	out, err := s.run("-m", "HDR")
	require.NoError(s.T(), err)
	assert.Contains(s.T(), out, "Profile: hdr")
	assert.Contains(s.T(), out, "No hardware encoders found.")
	assert.NotContains(s.T(), out, "Best device encoder")
}

// TestBestProviderFailure checks that a provider start-up failure is not
// fatal.
func (s *MainTestSuite) TestBestProviderFailure() {
	s.providerErr = errors.New("ffmpeg not found")

	out, err := s.run()
	require.NoError(s.T(), err)
	assert.Contains(s.T(), out, "Warning: could not open the ffmpeg provider: ffmpeg not found")
	assert.Contains(s.T(), out, "No hardware encoders found.")
}

// TestBestRejectsBadFlags checks flag validation.
func (s *MainTestSuite) TestBestRejectsBadFlags() {
	_, err := s.run("-m", "dolby")
	assert.Error(s.T(), err)

	_, err = s.run("--workers", "0")
	assert.Error(s.T(), err)
}

// TestFlagsOverrideConfig checks that flags win over the configuration.
func (s *MainTestSuite) TestFlagsOverrideConfig() {
	_, err := s.run("--workers", "3", "--timeout", "5s", "--bind-device", "--provider", "libav")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), s.lastCfg)
	assert.Equal(s.T(), 3, s.lastCfg.Probe.Workers)
	assert.Equal(s.T(), 5*time.Second, s.lastCfg.Benchmark.Timeout)
	assert.True(s.T(), s.lastCfg.Benchmark.BindDevice)
	assert.Equal(s.T(), config.ProviderLibav, s.lastCfg.Provider)
	assert.Equal(s.T(), 4, s.lastCfg.Benchmark.Frames)
}

// TestList checks the listing filters.
func (s *MainTestSuite) TestList() {
	testCases := []struct {
		name     string
		args     []string
		contains []string
		absent   []string
	}{
		{
			name:     "verified",
			args:     []string{"list"},
			contains: []string{"1 video encoder", "h264_nvenc (h264) [cuda]"},
			absent:   []string{"hevc_nvenc", "libx264"},
		},
		{
			name:     "declared",
			args:     []string{"list", "--filter", "declared"},
			contains: []string{"4 video encoders", "hevc_nvenc (hevc) [vaapi]"},
			absent:   []string{"libx264"},
		},
		{
			name:     "all",
			args:     []string{"list", "--filter", "all"},
			contains: []string{"3 video encoders", "libx264 (h264) [none]", "h264_nvenc (h264) [cuda]"},
		},
		{
			name:     "software",
			args:     []string{"list", "--filter", "sw"},
			contains: []string{"1 video encoder", "libx264 (h264) [none]"},
			absent:   []string{"h264_nvenc"},
		},
		{
			name:     "hardware",
			args:     []string{"list", "--filter", "hw"},
			contains: []string{"2 video encoders", "hevc_nvenc (hevc) [cuda]"},
		},
		{
			name:     "decoders",
			args:     []string{"list", "--decoders", "--filter", "all"},
			contains: []string{"0 video decoders"},
		},
		{
			name:     "audio",
			args:     []string{"list", "--audio", "--filter", "all"},
			contains: []string{"0 audio encoders"},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			out, err := s.run(tc.args...)
			require.NoError(s.T(), err)
			for _, want := range tc.contains {
				assert.Contains(s.T(), out, want)
			}
			for _, unwanted := range tc.absent {
				assert.NotContains(s.T(), out, unwanted)
			}
		})
	}
}

// TestListUnknownFilter checks that a bad filter is an error.
func (s *MainTestSuite) TestListUnknownFilter() {
	_, err := s.run("list", "--filter", "fastest")
	assert.ErrorContains(s.T(), err, "unknown filter")
}

// TestBackends checks the device availability listing.
func (s *MainTestSuite) TestBackends() {
	out, err := s.run("backends")
	require.NoError(s.T(), err)
	assert.Contains(s.T(), out, "2 backends, 1 with a usable device")
	assert.Contains(s.T(), out, "✅ cuda")
	assert.Contains(s.T(), out, "❌ vaapi")
}

// TestBench checks the single encoder benchmark.
func (s *MainTestSuite) TestBench() {
	out, err := s.run("bench", "--runs", "2", "h264_nvenc")
	require.NoError(s.T(), err)
	assert.Contains(s.T(), out, "h264_nvenc (none)")
	assert.Contains(s.T(), out, "Run 1: ")
	assert.Contains(s.T(), out, "Run 2: ")
	assert.Contains(s.T(), out, "4 frames, 4 packets")

	out, err = s.run("bench", "no_such_encoder")
	require.NoError(s.T(), err)
	assert.Contains(s.T(), out, "could not benchmark")

	_, err = s.run("bench")
	assert.Error(s.T(), err)
}

// TestBenchMediaType checks that the content profile is accepted both before
// and after the bench command name.
func (s *MainTestSuite) TestBenchMediaType() {
	out, err := s.run("bench", "-m", "hdr", "h264_nvenc")
	require.NoError(s.T(), err)
	assert.Contains(s.T(), out, "h264_nvenc (hdr)")

	out, err = s.run("-m", "sdr", "bench", "h264_nvenc")
	require.NoError(s.T(), err)
	assert.Contains(s.T(), out, "h264_nvenc (sdr)")

	out, err = s.run("-m", "sdr", "bench", "--media-type", "hdr", "h264_nvenc")
	require.NoError(s.T(), err)
	assert.Contains(s.T(), out, "h264_nvenc (hdr)")

	_, err = s.run("bench", "-m", "dolby", "h264_nvenc")
	assert.Error(s.T(), err)
}

// TestPrintHeader checks that missing host facts read as unknown.
func (s *MainTestSuite) TestPrintHeader() {
	var out bytes.Buffer
	printHeader(&out, &sysinfo.Host{
		OS:      "linux",
		Threads: 8,
		GPUs:    []sysinfo.GPU{{Card: "card0", Vendor: sysinfo.VendorIntel, Driver: "i915"}},
	}, codec.ProfileSDR, probe.ModeVerified)

	text := out.String()
	assert.Contains(s.T(), text, "Host: linux unknown (kernel unknown)")
	assert.Contains(s.T(), text, "CPU: unknown, 8 threads")
	assert.Contains(s.T(), text, "Memory: unknown")
	assert.Contains(s.T(), text, "GPU card0: intel (i915)")
	assert.Contains(s.T(), text, "Profile: sdr, candidates: verified")
}

// TestFormatDuration checks duration rendering.
func (s *MainTestSuite) TestFormatDuration() {
	assert.Equal(s.T(), "5 seconds", formatDuration(5*time.Second))
	assert.Equal(s.T(), "1 second", formatDuration(time.Second))
	assert.Equal(s.T(), "1.500 seconds", formatDuration(1500*time.Millisecond))
	assert.Equal(s.T(), "1 minute", formatDuration(time.Minute))
	assert.Equal(s.T(), "1 hour 2 minutes 3 seconds", formatDuration(3723*time.Second))
}

// TestFormatFPS checks frame rate rendering.
func (s *MainTestSuite) TestFormatFPS() {
	assert.Equal(s.T(), "0.00", formatFPS(0))
	assert.Equal(s.T(), "12.50", formatFPS(12.5))
	assert.Equal(s.T(), "1,234.57", formatFPS(1234.567))
}

// TestFormatHumanReadableSize checks memory size rendering.
func (s *MainTestSuite) TestFormatHumanReadableSize() {
	assert.Equal(s.T(), "512 bytes", formatHumanReadableSize(512))
	assert.Equal(s.T(), "2.00 KB", formatHumanReadableSize(2048))
	assert.Equal(s.T(), "16.00 GB", formatHumanReadableSize(16<<30))
}

// TestFormatWithThousandSeparators tests the number formatting function.
func (s *MainTestSuite) TestFormatWithThousandSeparators() {
	testCases := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{123, "123"},
		{1234, "1,234"},
		{1234567, "1,234,567"},
		{-1234567, "-1,234,567"},
	}

	for _, tc := range testCases {
		assert.Equal(s.T(), tc.expected, formatWithThousandSeparators(tc.input))
	}
}

// TestMainTestSuite runs the main test suite.
func TestMainTestSuite(t *testing.T) {
	suite.Run(t, new(MainTestSuite))
}
