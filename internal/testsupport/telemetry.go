package testsupport

import (
	"sync"

	"gristmill/internal/telemetry"
)

// StaticTelemetry is a telemetry provider returning a fixed snapshot (or a
// fixed error). Safe for concurrent use; UsedBytes may be updated between
// samples via Set.
type StaticTelemetry struct {
	mu          sync.Mutex
	usedBytes   uint64
	percentUsed float64
	err         error
}

// NewStaticTelemetry builds a provider that always reports the given usage.
func NewStaticTelemetry(usedBytes uint64, percentUsed float64) *StaticTelemetry {
	return &StaticTelemetry{usedBytes: usedBytes, percentUsed: percentUsed}
}

// NewFailingTelemetry builds a provider whose samples always fail.
func NewFailingTelemetry(err error) *StaticTelemetry {
	return &StaticTelemetry{err: err}
}

// Set replaces the reported usage.
func (s *StaticTelemetry) Set(usedBytes uint64, percentUsed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedBytes = usedBytes
	s.percentUsed = percentUsed
}

// Sample implements telemetry.Provider.
func (s *StaticTelemetry) Sample() (telemetry.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return telemetry.Snapshot{}, s.err
	}
	return telemetry.Snapshot{UsedBytes: s.usedBytes, PercentUsed: s.percentUsed}, nil
}
