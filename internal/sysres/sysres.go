// Package sysres reads the machine's resource state for worker count
// defaults and the preflight safety check.
package sysres

import (
	"fmt"
	"runtime"

	"github.com/c2h5oh/datasize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Encoder child processes multiply per worker, so the automatic
// worker count stays modest even on very wide machines.
const maxAutoWorkers = 8

// SuggestWorkers picks a default worker count from the logical CPU
// count, clamped to a range that keeps child encoders responsive.
func SuggestWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	if n > maxAutoWorkers {
		n = maxAutoWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Snapshot holds the readings the preflight check saw.
type Snapshot struct {
	DiskFree     uint64
	MemAvailable uint64
	CPUCount     int
}

// Check samples free disk space on path's volume and available
// memory, and returns a warning per violated threshold. Thresholds
// of zero are not checked. Readings the platform cannot provide are
// skipped silently rather than failing the run.
func Check(path string, minFreeDisk, minFreeMemory int64) (Snapshot, []string) {
	var snap Snapshot
	var warnings []string

	snap.CPUCount = runtime.NumCPU()

	if usage, err := disk.Usage(path); err == nil {
		snap.DiskFree = usage.Free
		if minFreeDisk > 0 && usage.Free < uint64(minFreeDisk) {
			warnings = append(warnings, fmt.Sprintf(
				"low disk space on %s: %s free, %s required",
				path,
				datasize.ByteSize(usage.Free).HumanReadable(),
				datasize.ByteSize(minFreeDisk).HumanReadable()))
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemAvailable = vm.Available
		if minFreeMemory > 0 && vm.Available < uint64(minFreeMemory) {
			warnings = append(warnings, fmt.Sprintf(
				"low memory: %s available, %s required",
				datasize.ByteSize(vm.Available).HumanReadable(),
				datasize.ByteSize(minFreeMemory).HumanReadable()))
		}
	}

	return snap, warnings
}
