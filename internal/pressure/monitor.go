package pressure

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gristmill/internal/logging"
	"gristmill/internal/telemetry"
)

const (
	// warnRatio is the fraction of the memory limit at which the monitor
	// requests reclamation and warns.
	warnRatio = 0.85
	// alertRatio is the fraction at which the monitor escalates to error.
	alertRatio = 0.90
	// stopTimeout bounds how long Stop waits for the sampler to exit.
	stopTimeout = 2 * time.Second
)

// Monitor samples memory telemetry in the background while a drain runs.
type Monitor struct {
	provider telemetry.Provider
	limit    int64
	interval time.Duration
	reclaim  func()
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor constructs a monitor. The interval is how often telemetry is
// polled; limit is the configured memory budget in bytes.
func NewMonitor(provider telemetry.Provider, limit int64, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		provider: provider,
		limit:    limit,
		interval: interval,
		reclaim:  func() { telemetry.Reclaim() },
		logger:   logging.NewComponentLogger(logger, "resource-monitor"),
	}
}

// Start launches the sampler goroutine. Starting an already-running monitor
// is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, m.done)
}

// Stop terminates the sampler and waits for it to exit, bounded by
// stopTimeout so a wedged provider cannot hang the drain's cleanup path.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		m.logger.Warn("resource monitor did not stop in time; abandoning sampler")
	}
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.observe()
		}
	}
}

func (m *Monitor) observe() {
	snap, err := m.provider.Sample()
	if err != nil {
		m.logger.Debug("telemetry sample failed; treating as no pressure", logging.Error(err))
		return
	}
	if m.limit <= 0 {
		return
	}

	ratio := float64(snap.UsedBytes) / float64(m.limit)
	attrs := logging.Args(
		logging.Uint64("used_bytes", snap.UsedBytes),
		logging.Int64("limit_bytes", m.limit),
		logging.Float64("percent_of_limit", ratio*100),
		logging.Float64("system_percent", snap.PercentUsed),
	)

	switch {
	case ratio >= alertRatio:
		m.reclaim()
		m.logger.Error("memory usage critical", attrs...)
	case ratio >= warnRatio:
		m.reclaim()
		m.logger.Warn("memory usage high", attrs...)
	}
}
