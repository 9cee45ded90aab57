package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Private variables (alphabetical)

// accelerationSwitches are the configure switches that enable hardware
// encoders, decoders or device types.
var accelerationSwitches = []string{
	"amf", "cuda", "cuda-llvm", "cuvid", "d3d11va", "d3d12va", "dxva2",
	"ffnvcodec", "libmfx", "libvpl", "mediacodec", "nvdec", "nvenc", "opencl",
	"rkmpp", "v4l2-m2m", "vaapi", "vdpau", "videotoolbox", "vulkan",
}

// Private functions (alphabetical)

// extractAccelerations returns the hardware related --enable-* switches of a
// configuration line, sorted.
func extractAccelerations(configuration string) []string {
	known := make(map[string]bool, len(accelerationSwitches))
	for _, s := range accelerationSwitches {
		known[s] = true
	}

	var found []string
	seen := make(map[string]bool)
	for _, field := range strings.Fields(configuration) {
		name, ok := strings.CutPrefix(field, "--enable-")
		if !ok || !known[name] || seen[name] {
			continue
		}
		seen[name] = true
		found = append(found, name)
	}
	sort.Strings(found)
	return found
}

// extractConfiguration finds the configuration line in FFmpeg output.
func extractConfiguration(lines []string) string {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, "configuration:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// extractLibraries collects the "libavcodec 61. 3.100 / 61. 3.100" lines.
func extractLibraries(lines []string) []string {
	var libraries []string
	for _, line := range lines {
		if strings.HasPrefix(line, "  lib") || strings.HasPrefix(line, "lib") {
			libraries = append(libraries, strings.TrimSpace(line))
		}
	}
	return libraries
}

// findExecutable looks for ffmpeg in PATH, then in the usual install
// directories of the current OS.
func findExecutable() (string, bool) {
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, true
	}

	for _, path := range getCommonInstallPaths() {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// getCommonInstallPaths returns the usual FFmpeg install locations for the
// current OS.
func getCommonInstallPaths() []string {
	switch runtime.GOOS {
	case "windows":
		paths := []string{
			filepath.Join("C:\\", "Program Files", "FFmpeg", "bin", "ffmpeg.exe"),
			filepath.Join("C:\\", "FFmpeg", "bin", "ffmpeg.exe"),
		}
		if programFiles := os.Getenv("ProgramFiles"); programFiles != "" {
			paths = append(paths, filepath.Join(programFiles, "FFmpeg", "bin", "ffmpeg.exe"))
		}
		return paths
	case "darwin":
		return []string{
			filepath.Join("/opt", "homebrew", "bin", "ffmpeg"),
			filepath.Join("/usr", "local", "bin", "ffmpeg"),
			filepath.Join("/opt", "local", "bin", "ffmpeg"),
		}
	default:
		return []string{
			filepath.Join("/usr", "bin", "ffmpeg"),
			filepath.Join("/usr", "local", "bin", "ffmpeg"),
			filepath.Join("/opt", "ffmpeg", "bin", "ffmpeg"),
			filepath.Join("/usr", "lib", "jellyfin-ffmpeg", "ffmpeg"),
		}
	}
}

// parseVersion reads the version token of the banner's first line. Git
// builds drop their "n" prefix and "-dev" suffix; snapshot builds that carry
// no version keep "unknown".
func parseVersion(firstLine string) string {
	_, rest, ok := strings.Cut(firstLine, " version ")
	if !ok {
		return "unknown"
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "unknown"
	}

	version := strings.TrimPrefix(fields[0], "n")
	if idx := strings.Index(version, "-dev"); idx > 0 {
		version = version[:idx]
	}
	return version
}

// parseVersionOutput fills info from the output of "ffmpeg -version".
func parseVersionOutput(info *FFmpegInfo, output string) {
	lines := strings.Split(output, "\n")
	info.Version = parseVersion(lines[0])
	info.Configuration = extractConfiguration(lines)
	info.Libraries = extractLibraries(lines)
	info.Accelerations = extractAccelerations(info.Configuration)
}

// Public functions (alphabetical)

// DetectFFmpeg locates FFmpeg on the system and reads its version banner.
// When FFmpeg cannot be found, Installed is false and no error is returned.
func DetectFFmpeg(ctx context.Context) (*FFmpegInfo, error) {
	path, found := findExecutable()
	if !found {
		return &FFmpegInfo{Installed: false, Version: "unknown"}, nil
	}
	return DetectFFmpegAt(ctx, path)
}

// DetectFFmpegAt reads the version banner of the executable at path.
func DetectFFmpegAt(ctx context.Context, path string) (*FFmpegInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, GetDefaultTimeout())
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return &FFmpegInfo{Installed: false, Path: path, Version: "unknown"},
			FormatError("error getting FFmpeg version from %s: %w", path, err)
	}

	info := &FFmpegInfo{Installed: true, Path: path}
	parseVersionOutput(info, string(output))
	return info, nil
}

// FindFFmpeg uses the explicit path when one is given and falls back to
// DetectFFmpeg otherwise.
func FindFFmpeg(ctx context.Context, explicit string) (*FFmpegInfo, error) {
	if explicit != "" {
		return DetectFFmpegAt(ctx, explicit)
	}
	return DetectFFmpeg(ctx)
}
