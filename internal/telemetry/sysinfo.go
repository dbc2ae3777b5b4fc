package telemetry

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SysinfoProvider samples system memory via the sysinfo syscall.
type SysinfoProvider struct{}

// Sample returns current memory usage. Buffer memory is counted as free
// since the kernel will reclaim it under pressure.
func (SysinfoProvider) Sample() (Snapshot, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Snapshot{}, fmt.Errorf("sysinfo: %w", err)
	}

	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(info.Totalram) * unit
	free := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	if free > total {
		free = total
	}
	used := total - free

	var percent float64
	if total > 0 {
		percent = float64(used) / float64(total) * 100
	}
	return Snapshot{UsedBytes: used, PercentUsed: percent}, nil
}
