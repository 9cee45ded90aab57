// Package sysinfo collects the host facts printed in report headers: CPU,
// memory, operating system and the GPUs the kernel exposes through DRM.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/torre76/accelhound/logging"
)

// Public constants (alphabetical)

// GPU vendors recognized from PCI vendor ids.
const (
	VendorAMD     Vendor = "amd"
	VendorIntel   Vendor = "intel"
	VendorNVIDIA  Vendor = "nvidia"
	VendorUnknown Vendor = "unknown"
)

// Private variables (alphabetical)

// drmRoot is where the kernel lists DRM cards.
var drmRoot = "/sys/class/drm"

// vendorIDs maps PCI vendor ids to vendors.
var vendorIDs = map[string]Vendor{
	"0x1002": VendorAMD,
	"0x10de": VendorNVIDIA,
	"0x8086": VendorIntel,
}

// Public types (alphabetical)

// GPU is one DRM card.
type GPU struct {
	// Card is the DRM card name, e.g. "card0".
	Card string

	Vendor Vendor

	// Driver is the kernel driver bound to the card, e.g. "i915".
	Driver string

	// RenderNode is the render device path, e.g. "/dev/dri/renderD128".
	// It is empty when the card has none.
	RenderNode string
}

// Host summarizes the machine a report was produced on.
type Host struct {
	OS              string
	Platform        string
	PlatformVersion string
	Kernel          string
	CPUModel        string
	Threads         int
	MemoryTotal     uint64
	GPUs            []GPU
}

// Vendor identifies a GPU maker.
type Vendor string

// Public functions (alphabetical)

// Collect gathers the host facts. Every probe is best effort: a failing one
// leaves its fields empty and is logged at debug level.
func Collect(ctx context.Context) *Host {
	log := logging.FromContext(ctx)
	h := &Host{OS: runtime.GOOS, Threads: runtime.NumCPU()}

	if info, err := host.InfoWithContext(ctx); err == nil {
		h.Platform = info.Platform
		h.PlatformVersion = info.PlatformVersion
		h.Kernel = info.KernelVersion
	} else {
		log.Debug().Err(err).Msg("host info unavailable")
	}

	if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 {
		h.CPUModel = strings.TrimSpace(info[0].ModelName)
	} else if err != nil {
		log.Debug().Err(err).Msg("cpu info unavailable")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		h.MemoryTotal = vm.Total
	} else {
		log.Debug().Err(err).Msg("memory info unavailable")
	}

	h.GPUs = DetectGPUs()
	return h
}

// DetectGPUs lists the DRM cards with a PCI vendor. It returns nothing on
// systems without sysfs.
func DetectGPUs() []GPU {
	return detectGPUs(drmRoot)
}

// DevicePaths suggests device nodes per backend: vaapi uses the first render
// node, qsv the first Intel one.
func DevicePaths(gpus []GPU) map[string]string {
	paths := make(map[string]string)
	for _, g := range gpus {
		if g.RenderNode == "" {
			continue
		}
		if _, ok := paths["vaapi"]; !ok {
			paths["vaapi"] = g.RenderNode
		}
		if _, ok := paths["qsv"]; !ok && g.Vendor == VendorIntel {
			paths["qsv"] = g.RenderNode
		}
	}
	return paths
}

// String returns "vendor (driver)" or just the vendor.
func (g GPU) String() string {
	if g.Driver != "" {
		return fmt.Sprintf("%s (%s)", g.Vendor, g.Driver)
	}
	return string(g.Vendor)
}

// Private functions (alphabetical)

func detectGPUs(root string) []GPU {
	matches, err := filepath.Glob(filepath.Join(root, "card*", "device", "vendor"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)

	var gpus []GPU
	for _, vendorFile := range matches {
		deviceDir := filepath.Dir(vendorFile)
		card := filepath.Base(filepath.Dir(deviceDir))
		// Connector entries such as card0-HDMI-A-1 share the card's device.
		if strings.Contains(card, "-") {
			continue
		}

		data, err := os.ReadFile(vendorFile)
		if err != nil {
			continue
		}
		vendor, ok := vendorIDs[strings.TrimSpace(string(data))]
		if !ok {
			vendor = VendorUnknown
		}

		g := GPU{Card: card, Vendor: vendor}
		if target, err := os.Readlink(filepath.Join(deviceDir, "driver")); err == nil {
			g.Driver = filepath.Base(target)
		}
		if nodes, _ := filepath.Glob(filepath.Join(deviceDir, "drm", "renderD*")); len(nodes) > 0 {
			sort.Strings(nodes)
			g.RenderNode = filepath.Join("/dev", "dri", filepath.Base(nodes[0]))
		}
		gpus = append(gpus, g)
	}
	return gpus
}
