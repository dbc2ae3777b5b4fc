package pressure

import (
	"log/slog"
	"sync"

	"gristmill/internal/logging"
	"gristmill/internal/telemetry"
)

// Governor applies admission control immediately before each dequeue. It
// owns the advisory batch-size signal: halved under pressure, floor 1,
// never raised on its own.
type Governor struct {
	provider telemetry.Provider
	limit    int64
	reclaim  func()
	logger   *slog.Logger

	mu        sync.Mutex
	batchSize int
}

// NewGovernor constructs a governor seeded with the configured batch size.
func NewGovernor(provider telemetry.Provider, limit int64, initialBatchSize int, logger *slog.Logger) *Governor {
	if initialBatchSize < 1 {
		initialBatchSize = 1
	}
	return &Governor{
		provider:  provider,
		limit:     limit,
		reclaim:   func() { telemetry.Reclaim() },
		logger:    logging.NewComponentLogger(logger, "admission"),
		batchSize: initialBatchSize,
	}
}

// CheckPressure re-samples telemetry and reports whether memory pressure was
// detected. Under pressure it requests reclamation and halves the batch
// size. A telemetry failure is logged and treated as no pressure.
func (g *Governor) CheckPressure() bool {
	snap, err := g.provider.Sample()
	if err != nil {
		g.logger.Debug("telemetry sample failed; treating as no pressure", logging.Error(err))
		return false
	}
	if g.limit <= 0 || float64(snap.UsedBytes) < warnRatio*float64(g.limit) {
		return false
	}

	g.reclaim()

	g.mu.Lock()
	previous := g.batchSize
	if g.batchSize > 1 {
		g.batchSize /= 2
	}
	current := g.batchSize
	g.mu.Unlock()

	g.logger.Warn("memory pressure detected; reducing batch size",
		logging.Int("previous_batch_size", previous),
		logging.Int("batch_size", current),
		logging.Uint64("used_bytes", snap.UsedBytes),
		logging.Int64("limit_bytes", g.limit),
	)
	return true
}

// BatchSize returns the current advisory batch size.
func (g *Governor) BatchSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batchSize
}
