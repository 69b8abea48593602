// Package hostprobe measures the host's resource Capacity once at daemon
// startup. CPU core count and total RAM come from gopsutil; VRAM comes
// from shelling out to nvidia-smi and parsing its XML report, mirroring
// what the original daemon did with its own nvidia-smi subprocess call.
package hostprobe

import (
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/cuemby/stoplight/pkg/types"
)

// nvidiaSmiTimeout bounds the nvidia-smi subprocess; a hung query must not
// block the daemon from ever starting.
const nvidiaSmiTimeout = 10 * time.Second

// smiQuery is the subset of `nvidia-smi -q -x` we need.
type smiQuery struct {
	GPU smiGPU `xml:"gpu"`
}

type smiGPU struct {
	FBMemoryUsage smiFBMemory `xml:"fb_memory_usage"`
}

type smiFBMemory struct {
	Total string `xml:"total"`
}

// Probe measures the host's CPU core count, total RAM, and its single
// NVIDIA GPU's VRAM. A GPU tool that is missing or unparseable is a fatal
// startup condition, not a silent zero-GPU capacity: the original daemon's
// get_path() calls sys.exit(1) the same way when nvidia-smi can't be
// found, and its Gpu is constructed unconditionally, with no "no GPU
// present" branch (spec §4.1, §7; §9 Open Question 3's single-GPU
// assumption still holds — there is exactly one GPU and it is required).
func Probe(ctx context.Context) (types.Capacity, error) {
	capacity, err := probeCPURAM(ctx)
	if err != nil {
		return types.Capacity{}, err
	}

	vram, err := probeVRAM(ctx)
	if err != nil {
		return types.Capacity{}, fmt.Errorf("probing gpu vram: %w", err)
	}

	capacity.GPUCount = 1
	capacity.TotalVRAM = vram
	return capacity, nil
}

// probeCPURAM measures the host's CPU core count and total RAM, the two
// dimensions every host has regardless of GPU hardware. Split out from
// Probe so the CPU/RAM path can be exercised in test environments that
// have no NVIDIA GPU.
func probeCPURAM(ctx context.Context) (types.Capacity, error) {
	cpuCounts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return types.Capacity{}, fmt.Errorf("probing cpu core count: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return types.Capacity{}, fmt.Errorf("probing total ram: %w", err)
	}

	return types.Capacity{
		CPUCores: cpuCounts,
		TotalRAM: int64(vm.Total),
	}, nil
}

// probeVRAM shells out to nvidia-smi for the host's single GPU's total
// frame-buffer memory. nvidia-smi missing from PATH is as fatal as any
// other probe failure — Stoplight assumes exactly one GPU is present.
func probeVRAM(ctx context.Context) (bytes int64, err error) {
	smiPath, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return 0, fmt.Errorf("nvidia-smi not found on PATH: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, nvidiaSmiTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, smiPath, "-q", "-x")
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("running nvidia-smi: %w", err)
	}

	var query smiQuery
	if err := xml.Unmarshal(out, &query); err != nil {
		return 0, fmt.Errorf("parsing nvidia-smi xml output: %w", err)
	}

	totalField := strings.Fields(query.GPU.FBMemoryUsage.Total)
	if len(totalField) == 0 {
		return 0, fmt.Errorf("unexpected nvidia-smi fb_memory_usage/total format %q", query.GPU.FBMemoryUsage.Total)
	}

	mb, err := strconv.ParseInt(totalField[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing vram total %q: %w", totalField[0], err)
	}

	// nvidia-smi reports MiB-labeled but decimal-megabyte-valued totals;
	// the original daemon converts with a flat x1,000,000 and we match it.
	return mb * 1_000_000, nil
}
