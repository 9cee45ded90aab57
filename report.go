package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/gertd/go-pluralize"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/probe"
	"github.com/torre76/accelhound/sysinfo"
)

// Private constants (alphabetical)

// unknown replaces host facts that could not be collected.
const unknown = "unknown"

// Private types (alphabetical)

// progressPrinter reports the selector's progress as it walks the
// candidates.
type progressPrinter struct {
	w io.Writer
}

// Private functions (alphabetical)

// formatDuration renders a wall-clock duration the way people read it.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		seconds := d.Seconds()
		if seconds == float64(int(seconds)) {
			return pluralize.NewClient().Pluralize("second", int(seconds), true)
		}
		return fmt.Sprintf("%.3f seconds", seconds)
	}

	pluralizeClient := pluralize.NewClient()
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, pluralizeClient.Pluralize("hour", hours, true))
	}
	if minutes > 0 {
		parts = append(parts, pluralizeClient.Pluralize("minute", minutes, true))
	}
	if secs > 0 {
		parts = append(parts, pluralizeClient.Pluralize("second", secs, true))
	}
	return strings.Join(parts, " ")
}

// formatFPS renders a frame rate with two decimals and thousand separators.
func formatFPS(fps float64) string {
	s := strconv.FormatFloat(fps, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return s
	}
	return formatWithThousandSeparators(n) + "." + frac
}

// formatHumanReadableSize converts a byte count to a human-readable string.
func formatHumanReadableSize(bytes uint64) string {
	const (
		_          = iota
		KB float64 = 1 << (10 * iota)
		MB
		GB
		TB
	)

	switch {
	case bytes < 1000:
		return fmt.Sprintf("%d bytes", bytes)
	case bytes < 1000*uint64(KB):
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	case bytes < 1000*uint64(MB):
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes < 1000*uint64(GB):
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	}
	return fmt.Sprintf("%.2f TB", float64(bytes)/TB)
}

// formatWithThousandSeparators formats a number with commas as thousand
// separators.
func formatWithThousandSeparators(n int64) string {
	inStr := strconv.FormatInt(n, 10)

	sign := ""
	if n < 0 {
		sign = "-"
		inStr = inStr[1:]
	}

	var result strings.Builder
	for i, c := range inStr {
		if i > 0 && (len(inStr)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	return sign + result.String()
}

// Measured prints the score of the candidate just benchmarked.
func (p *progressPrinter) Measured(perf probe.CodecPerformance, _, _ int) {
	regularStyle := color.New(color.Reset)
	valueStyle := color.New(color.Bold)

	regularStyle.Fprintf(p.w, "  Performance: ")
	valueStyle.Fprintf(p.w, "%s fps\n", formatFPS(perf.FPS))
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// printBackends lists every backend and whether its device could be created.
func printBackends(w io.Writer, backends, available []codec.Backend) {
	summaryStyle := color.New(color.FgCyan, color.Bold)
	okStyle := color.New(color.FgGreen)
	missingStyle := color.New(color.FgRed)

	up := make(map[codec.Backend]bool, len(available))
	for _, b := range available {
		up[b] = true
	}

	pluralizeClient := pluralize.NewClient()
	summaryStyle.Fprintf(w, "🧩 %s, %d with a usable device\n",
		pluralizeClient.Pluralize("backend", len(backends), true), len(available))
	for _, b := range backends {
		if up[b] {
			okStyle.Fprintf(w, "  ✅ %s\n", b)
		} else {
			missingStyle.Fprintf(w, "  ❌ %s\n", b)
		}
	}
}

// printBenchResults prints the outcome of the bench command.
func printBenchResults(w io.Writer, name string, profile codec.ContentProfile, results []probe.Result) {
	summaryStyle := color.New(color.FgCyan, color.Bold)
	valueStyle := color.New(color.Bold)
	regularStyle := color.New(color.Reset)
	errorStyle := color.New(color.FgRed)

	summaryStyle.Fprintf(w, "⏱️ %s (%s)\n", name, profile)
	for i, r := range results {
		if len(results) > 1 {
			regularStyle.Fprintf(w, "  Run %d: ", i+1)
		} else {
			regularStyle.Fprintf(w, "  ")
		}
		if r.FPS == 0 {
			errorStyle.Fprintf(w, "could not benchmark")
			if r.Err != nil {
				errorStyle.Fprintf(w, ": %v", r.Err)
			}
			fmt.Fprintln(w)
			continue
		}
		valueStyle.Fprintf(w, "%s fps", formatFPS(r.FPS))
		regularStyle.Fprintf(w, " (%d frames, %d packets in %s)\n",
			r.FramesSent, r.Packets, formatDuration(r.Elapsed))
		if r.Err != nil {
			errorStyle.Fprintf(w, "    stopped early: %v\n", r.Err)
		}
	}
}

// printBest prints the final verdict of the default action.
func printBest(w io.Writer, best probe.CodecPerformance, found bool) {
	if !found {
		color.New(color.FgYellow).Fprintln(w, "No hardware encoders found.")
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(w, "Best device encoder: %s (%s) with performance %s fps\n",
		best.Name, best.Backend, formatFPS(best.FPS))
}

// printCandidates prints a candidate listing with its count.
func printCandidates(w io.Writer, kind codec.MediaKind, dir codec.Direction, list []codec.Candidate) {
	printListingHeader(w, kind, dir, len(list))
	for _, c := range list {
		fmt.Fprintf(w, "  %s (%s) [%s]\n", c.Codec.Name, c.Codec.ID, c.Backend)
	}
}

// printCodecs prints a codec listing with its count. Hardware codecs show
// the backends of their hardware descriptors.
func printCodecs(w io.Writer, kind codec.MediaKind, dir codec.Direction, list []codec.Codec) {
	printListingHeader(w, kind, dir, len(list))
	for _, c := range list {
		backends := make([]string, 0, len(c.HardwareConfigs))
		for _, hc := range c.HardwareConfigs {
			backends = append(backends, hc.Backend.String())
		}
		if len(backends) == 0 {
			backends = append(backends, codec.BackendNone.String())
		}
		fmt.Fprintf(w, "  %s (%s) [%s]\n", c.Name, c.ID, strings.Join(backends, ", "))
	}
}

// printHeader prints the host facts and the run parameters.
func printHeader(w io.Writer, host *sysinfo.Host, profile codec.ContentProfile, mode probe.Mode) {
	summaryStyle := color.New(color.FgCyan, color.Bold)
	valueStyle := color.New(color.Bold)
	regularStyle := color.New(color.Reset)

	platform := strings.TrimSpace(host.Platform + " " + host.PlatformVersion)
	memory := unknown
	if host.MemoryTotal > 0 {
		memory = formatHumanReadableSize(host.MemoryTotal)
	}

	summaryStyle.Fprintf(w, "🐾 AccelHound %s\n", Version)
	regularStyle.Fprintf(w, "  💻 Host: ")
	valueStyle.Fprintf(w, "%s %s (kernel %s)\n", orUnknown(host.OS), orUnknown(platform), orUnknown(host.Kernel))
	regularStyle.Fprintf(w, "  🧠 CPU: ")
	valueStyle.Fprintf(w, "%s, %s\n", orUnknown(host.CPUModel), pluralize.NewClient().Pluralize("thread", host.Threads, true))
	regularStyle.Fprintf(w, "  💾 Memory: ")
	valueStyle.Fprintf(w, "%s\n", memory)
	for _, g := range host.GPUs {
		regularStyle.Fprintf(w, "  🎮 GPU %s: ", g.Card)
		valueStyle.Fprintf(w, "%s\n", g)
	}
	regularStyle.Fprintf(w, "  🎨 Profile: ")
	valueStyle.Fprintf(w, "%s", profile)
	regularStyle.Fprintf(w, ", candidates: ")
	valueStyle.Fprintf(w, "%s\n", mode)
}

// printListingHeader prints the pluralized count line of a listing.
func printListingHeader(w io.Writer, kind codec.MediaKind, dir codec.Direction, n int) {
	noun := "encoder"
	if dir == codec.DirectionDecode {
		noun = "decoder"
	}
	color.New(color.FgCyan, color.Bold).Fprintf(w, "🎬 %d %s %s\n",
		n, kind, pluralize.NewClient().Pluralize(noun, n, false))
}

// printProvider prints which provider answered.
func printProvider(w io.Writer, desc string) {
	color.New(color.Reset).Fprintf(w, "  🔌 Provider: ")
	color.New(color.Bold).Fprintf(w, "%s\n", desc)
}

// printSummary prints every scored candidate in enumeration order.
func printSummary(w io.Writer, list []probe.CodecPerformance, elapsed time.Duration) {
	if len(list) == 0 {
		return
	}
	summaryStyle := color.New(color.FgCyan, color.Bold)
	summaryStyle.Fprintf(w, "\n📊 %s benchmarked in %s\n",
		pluralize.NewClient().Pluralize("encoder", len(list), true), formatDuration(elapsed))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ENCODER\tCODEC\tBACKEND\tFPS")
	for _, p := range list {
		fps := "-"
		if p.FPS > 0 {
			fps = formatFPS(p.FPS)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.Name, p.CodecID, p.Backend, fps)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

// Testing announces the candidate about to be benchmarked.
func (p *progressPrinter) Testing(c codec.Candidate, index, total int) {
	color.New(color.Reset).Fprintf(p.w, "[%d/%d] Testing encoder: %s (%s)...\n", index+1, total, c.Codec.Name, c.Backend)
}
