// Package main provides the entry point for the accelhound application.
// It enumerates the hardware video encoders and decoders a media provider can
// really open on this host, benchmarks the encoders on synthetic frames and
// reports the fastest one.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/config"
	"github.com/torre76/accelhound/ffmpeg"
	"github.com/torre76/accelhound/libav"
	"github.com/torre76/accelhound/logging"
	"github.com/torre76/accelhound/probe"
	"github.com/torre76/accelhound/sysinfo"
)

// Private constants (alphabetical)

// List filters accepted by the list command.
const (
	filterAll      = "all"
	filterDeclared = "declared"
	filterHardware = "hw"
	filterSoftware = "sw"
	filterVerified = "verified"
)

// Private variables (alphabetical)

// newProvider opens the provider selected by the configuration and returns a
// one line description of it. Tests replace it with an in-memory provider.
var newProvider = openProvider

// Public variables (alphabetical)

// BuildDate contains the date when the binary was built.
// This value is set during build using ldflags.
var BuildDate = "unknown"

// Commit contains the git commit hash that the binary was built from.
// This value is set during build using ldflags.
var Commit = "unknown"

// Version contains the current version of the application.
// This value can be overridden during build using ldflags:
// go build -ldflags="-X 'main.Version=v1.0.0'"
var Version = "Development Version"

// Private types (alphabetical)

// runEnv is what every command needs once flags and config are merged.
type runEnv struct {
	cfg *config.Config
	ctx context.Context
}

// Private functions (alphabetical)

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	if fc, ok := flagContext(c, "media-type"); ok {
		cfg.MediaType = fc.String("media-type")
	}
	if fc, ok := flagContext(c, "provider"); ok {
		cfg.Provider = fc.String("provider")
	}
	if fc, ok := flagContext(c, "ffmpeg"); ok {
		cfg.FFmpegPath = fc.String("ffmpeg")
	}
	if fc, ok := flagContext(c, "workers"); ok {
		cfg.Probe.Workers = fc.Int("workers")
	}
	if fc, ok := flagContext(c, "timeout"); ok {
		cfg.Benchmark.Timeout = fc.Duration("timeout")
	}
	if fc, ok := flagContext(c, "frames"); ok {
		cfg.Benchmark.Frames = fc.Int("frames")
	}
	if c.Bool("declared") {
		cfg.Probe.Mode = probe.ModeDeclared.String()
	}
	if c.Bool("bind-device") {
		cfg.Benchmark.BindDevice = true
	}
	if fc, ok := flagContext(c, "log-level"); ok {
		cfg.Logging.Level = fc.String("log-level")
	}
	return cfg.Validate()
}

// devicePaths merges the render nodes found in sysfs with the configured
// device paths, which take precedence.
func devicePaths(cfg *config.Config) map[string]string {
	paths := sysinfo.DevicePaths(sysinfo.DetectGPUs())
	for b, path := range cfg.Probe.Devices {
		paths[b] = path
	}
	return paths
}

// flagContext returns the innermost context in which name was set on the
// command line. A flag defined both on the application and on a command is
// looked up on each level, so "-m hdr bench X" and "bench -m hdr X" agree.
func flagContext(c *cli.Context, name string) (*cli.Context, bool) {
	for _, cc := range c.Lineage() {
		if cc.IsSet(name) {
			return cc, true
		}
	}
	return nil, false
}

// mediaTypeFlag is shared by the application and the bench command.
func mediaTypeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "media-type",
		Aliases: []string{"m"},
		Usage:   "Content profile of the benchmark frames: none, sdr or hdr",
		Value:   codec.ProfileNone.String(),
	}
}

// newApp builds the command line application.
func newApp() *cli.App {
	return &cli.App{
		Name:  "accelhound",
		Usage: "Find the fastest hardware video encoder on this machine",
		Description: "AccelHound lists the hardware encoders and decoders a media provider can " +
			"actually open on this host, benchmarks every encoder on synthetic frames and " +
			"reports the fastest one.",
		Authors: []*cli.Author{
			{
				Name: "Gian Luca Dalla Torre",
			},
		},
		Version: Version,
		Action:  bestCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Value:   config.DefaultFile,
			},
			mediaTypeFlag(),
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Media provider: ffmpeg or libav",
				Value: config.ProviderFFmpeg,
			},
			&cli.StringFlag{
				Name:  "ffmpeg",
				Usage: "Path of the ffmpeg executable (default: search PATH)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of hardware backends verified concurrently",
				Value: 1,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Abort a single benchmark after this long (0 disables)",
			},
			&cli.IntFlag{
				Name:  "frames",
				Usage: "Number of frames encoded per benchmark",
				Value: probe.DefaultFrames,
			},
			&cli.BoolFlag{
				Name:  "declared",
				Usage: "Trust the codecs' hardware flag instead of opening every pairing",
			},
			&cli.BoolFlag{
				Name:  "bind-device",
				Usage: "Bind benchmark sessions to a device of the candidate's backend",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Diagnostic log level: trace, debug, info, warn, error or disabled",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List codecs",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "decoders",
						Usage: "List decoders instead of encoders",
					},
					&cli.BoolFlag{
						Name:  "audio",
						Usage: "List audio codecs instead of video codecs",
					},
					&cli.StringFlag{
						Name:  "filter",
						Usage: "Which codecs: all, hw, sw, declared or verified",
						Value: filterVerified,
					},
				},
			},
			{
				Name:   "backends",
				Usage:  "List hardware backends and whether a device can be created",
				Action: backendsCommand,
			},
			{
				Name:      "bench",
				Usage:     "Benchmark one encoder",
				ArgsUsage: "[-m none|sdr|hdr] ENCODER",
				Action:    benchCommand,
				Flags: []cli.Flag{
					mediaTypeFlag(),
					&cli.IntFlag{
						Name:  "runs",
						Usage: "Number of benchmark runs",
						Value: 1,
					},
					&cli.StringFlag{
						Name:  "backend",
						Usage: "Backend whose device is bound with --bind-device",
					},
				},
			},
		},
	}
}

// openProvider creates the provider named by the configuration.
func openProvider(ctx context.Context, cfg *config.Config) (codec.Provider, string, error) {
	switch cfg.Provider {
	case config.ProviderLibav:
		p, err := libav.New(ctx, devicePaths(cfg))
		if err != nil {
			return nil, "", err
		}
		return p, libav.ProviderName, nil
	default:
		info, err := ffmpeg.FindFFmpeg(ctx, cfg.FFmpegPath)
		if err != nil {
			return nil, "", err
		}
		p, err := ffmpeg.NewProvider(ctx, info, ffmpeg.WithDevicePaths(devicePaths(cfg)))
		if err != nil {
			return nil, "", err
		}
		return p, fmt.Sprintf("%s %s (%s)", ffmpeg.ProviderName, info.Version, info.Path), nil
	}
}

// setup loads the configuration, applies the flags and attaches the logger.
func setup(c *cli.Context) (*runEnv, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := applyFlags(c, cfg); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.LoggerConfig(), c.App.ErrWriter)
	return &runEnv{cfg: cfg, ctx: logging.WithContext(c.Context, logger)}, nil
}

func versionPrinter(c *cli.Context) {
	summaryStyle := color.New(color.FgCyan, color.Bold)
	valueStyle := color.New(color.Bold)
	regularStyle := color.New(color.Reset)

	summaryStyle.Fprintf(c.App.Writer, "🐾 AccelHound %s\n", Version)
	regularStyle.Fprintf(c.App.Writer, "  🛠️ Build date: ")
	valueStyle.Fprintf(c.App.Writer, "%s\n", BuildDate)
	regularStyle.Fprintf(c.App.Writer, "  🔍 Commit: ")
	valueStyle.Fprintf(c.App.Writer, "%s\n", Commit)
}

// Public functions (alphabetical)

// backendsCommand lists the provider's backends and marks those whose device
// can be created on this host.
func backendsCommand(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	p, desc, err := newProvider(env.ctx, env.cfg)
	if err != nil {
		return fmt.Errorf("error opening provider: %w", err)
	}
	printProvider(c.App.Writer, desc)

	e := probe.NewEnumerator(p)
	printBackends(c.App.Writer, e.Backends(), e.Devices(env.ctx))
	return nil
}

// benchCommand benchmarks one named encoder one or more times.
func benchCommand(c *cli.Context) error {
	errorStyle := color.New(color.FgRed)
	regularStyle := color.New(color.Reset)

	if c.NArg() < 1 {
		errorStyle.Fprintf(c.App.Writer, "❌ Error: missing required argument: ENCODER\n\n")
		regularStyle.Fprintf(c.App.Writer, "Usage: %s bench [options] ENCODER\n", c.App.Name)
		return fmt.Errorf("missing required argument: ENCODER")
	}
	name := c.Args().Get(0)
	runs := c.Int("runs")
	if runs < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", runs)
	}

	env, err := setup(c)
	if err != nil {
		return err
	}
	p, desc, err := newProvider(env.ctx, env.cfg)
	if err != nil {
		return fmt.Errorf("error opening provider: %w", err)
	}
	printProvider(c.App.Writer, desc)

	h := probe.NewHarness(p,
		probe.WithSettings(env.cfg.Settings()),
		probe.WithTimeout(env.cfg.Benchmark.Timeout),
		probe.WithDeviceBinding(env.cfg.Benchmark.BindDevice),
	)
	profile := env.cfg.Profile()

	bar := progressbar.NewOptions(runs,
		progressbar.OptionSetWriter(c.App.ErrWriter),
		progressbar.OptionSetDescription("Benchmarking "+name),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	results := make([]probe.Result, 0, runs)
	for i := 0; i < runs; i++ {
		results = append(results, h.Run(env.ctx, name, codec.Backend(c.String("backend")), profile))
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	printBenchResults(c.App.Writer, name, profile, results)
	return nil
}

// bestCommand is the default action: benchmark every hardware encoder
// candidate and report the fastest one. A provider that cannot be opened is
// reported as a warning and yields no encoders.
func bestCommand(c *cli.Context) error {
	warnStyle := color.New(color.FgYellow)

	env, err := setup(c)
	if err != nil {
		return err
	}
	profile := env.cfg.Profile()
	mode := env.cfg.Mode()
	printHeader(c.App.Writer, sysinfo.Collect(env.ctx), profile, mode)

	p, desc, err := newProvider(env.ctx, env.cfg)
	if err != nil {
		warnStyle.Fprintf(c.App.Writer, "⚠️ Warning: could not open the %s provider: %v\n", env.cfg.Provider, err)
		printBest(c.App.Writer, probe.CodecPerformance{}, false)
		return nil
	}
	printProvider(c.App.Writer, desc)

	enumerator := probe.NewEnumerator(p, probe.WithWorkers(env.cfg.Probe.Workers))
	harness := probe.NewHarness(p,
		probe.WithSettings(env.cfg.Settings()),
		probe.WithTimeout(env.cfg.Benchmark.Timeout),
		probe.WithDeviceBinding(env.cfg.Benchmark.BindDevice),
	)
	selector := probe.NewSelector(enumerator, harness,
		probe.WithMode(mode),
		probe.WithObserver(&progressPrinter{w: c.App.Writer}),
	)

	start := time.Now()
	list := selector.Detect(env.ctx, profile)
	elapsed := time.Since(start)

	best, found := probe.Best(list)
	printSummary(c.App.Writer, list, elapsed)
	printBest(c.App.Writer, best, found)
	return nil
}

// listCommand enumerates codecs with the selected filter.
func listCommand(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	p, desc, err := newProvider(env.ctx, env.cfg)
	if err != nil {
		return fmt.Errorf("error opening provider: %w", err)
	}
	printProvider(c.App.Writer, desc)

	kind := codec.MediaKindVideo
	if c.Bool("audio") {
		kind = codec.MediaKindAudio
	}
	dir := codec.DirectionEncode
	if c.Bool("decoders") {
		dir = codec.DirectionDecode
	}

	e := probe.NewEnumerator(p, probe.WithWorkers(env.cfg.Probe.Workers))
	switch filter := c.String("filter"); filter {
	case filterAll:
		printCodecs(c.App.Writer, kind, dir, e.All(kind, dir))
	case filterSoftware:
		printCodecs(c.App.Writer, kind, dir, e.Software(kind, dir))
	case filterHardware:
		var hw []codec.Codec
		for _, cd := range e.All(kind, dir) {
			if cd.IsHardware() {
				hw = append(hw, cd)
			}
		}
		printCodecs(c.App.Writer, kind, dir, hw)
	case filterDeclared:
		printCandidates(c.App.Writer, kind, dir, e.Hardware(kind, dir))
	case filterVerified:
		printCandidates(c.App.Writer, kind, dir, e.Verified(env.ctx, kind, dir))
	default:
		return fmt.Errorf("unknown filter %q (expected all, hw, sw, declared or verified)", filter)
	}
	return nil
}

// main is the entry point of the application.
func main() {
	// Override the default version printer
	cli.VersionPrinter = versionPrinter

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		errorStyle := color.New(color.FgRed)
		errorStyle.Fprintf(os.Stderr, "⚠️ Error: %v\n", err)
		os.Exit(1)
	}
}
