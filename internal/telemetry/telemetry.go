package telemetry

import "runtime/debug"

// Snapshot is a point-in-time view of system memory usage.
type Snapshot struct {
	// UsedBytes is physical memory currently in use.
	UsedBytes uint64
	// PercentUsed is usage relative to total system memory, 0-100.
	PercentUsed float64
}

// Provider supplies memory telemetry samples. Implementations must be safe
// for concurrent use: the background monitor and the admission check sample
// independently.
type Provider interface {
	Sample() (Snapshot, error)
}

// Reclaim asks the runtime to release as much memory back to the OS as it
// can. It is a best-effort hint, not a guarantee; package variable so tests
// can observe reclamation requests.
var Reclaim = func() {
	debug.FreeOSMemory()
}
