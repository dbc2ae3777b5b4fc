package scheduler

import "gristmill/internal/queue"

// StatusSummary is a point-in-time view of the working set and manager
// state. The per-status counts always sum to Total.
type StatusSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int

	Paused   bool
	Draining bool

	// BatchSize is the advisory throughput signal for producers sizing
	// future add bursts; this core never batches payloads itself.
	BatchSize        int
	MemoryLimit      int64
	TargetThroughput float64
}

// Status returns a snapshot computed from the current working set.
func (m *Manager) Status() StatusSummary {
	summary := StatusSummary{
		BatchSize:        m.governor.BatchSize(),
		MemoryLimit:      m.cfg.Memory.LimitBytes,
		TargetThroughput: m.cfg.Queue.TargetThroughput,
	}

	m.mu.Lock()
	summary.Paused = m.paused
	summary.Draining = m.processing
	summary.Total = len(m.entries)
	for _, ent := range m.entries {
		switch ent.item.Status {
		case queue.StatusPending:
			summary.Pending++
		case queue.StatusProcessing:
			summary.Processing++
		case queue.StatusCompleted:
			summary.Completed++
		case queue.StatusFailed:
			summary.Failed++
		case queue.StatusCancelled:
			summary.Cancelled++
		}
	}
	m.mu.Unlock()

	return summary
}
