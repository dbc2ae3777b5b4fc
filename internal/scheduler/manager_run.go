package scheduler

import (
	"context"
	"fmt"
	"time"

	"gristmill/internal/logging"
	"gristmill/internal/queue"
)

// Process drains the queue sequentially: snapshot-sort the Pending items,
// then for each one still Pending when reached, run it through fn and
// persist the resulting transition. Item failures never abort the batch.
// Returns one Outcome per item reached, in drain order.
//
// Only one drain may run at a time; concurrent calls get
// ErrAlreadyProcessing. The background resource monitor runs for exactly
// the duration of the drain.
func (m *Manager) Process(ctx context.Context, fn ProcessorFunc, progress ProgressFunc) ([]Outcome, error) {
	if fn == nil {
		return nil, fmt.Errorf("processor is required")
	}

	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		m.logger.Warn("drain requested while another is running; ignoring")
		return nil, ErrAlreadyProcessing
	}
	m.processing = true
	snapshot := m.pendingSnapshotLocked()
	m.mu.Unlock()

	m.monitor.Start(ctx)
	defer func() {
		m.monitor.Stop()
		m.mu.Lock()
		m.processing = false
		m.mu.Unlock()
	}()

	total := len(snapshot)
	m.logger.Info("drain started",
		logging.Int("pending", total),
		logging.Int("batch_size", m.governor.BatchSize()),
	)

	outcomes := make([]Outcome, 0, total)
	completed, failed := 0, 0
	for _, id := range snapshot {
		if err := m.waitWhilePaused(ctx); err != nil {
			m.logger.Info("drain interrupted", logging.Error(err))
			return outcomes, err
		}

		if m.governor.CheckPressure() {
			m.logger.Info("admission control engaged",
				logging.Int("batch_size", m.governor.BatchSize()),
			)
		}

		m.mu.Lock()
		ent, ok := m.entries[id]
		if !ok || ent.item.Status != queue.StatusPending {
			// cancelled (or cleared) since the snapshot was taken
			m.mu.Unlock()
			continue
		}
		ent.item.MarkProcessing(time.Now())
		working := *ent.item
		m.mu.Unlock()

		m.persist(ctx, &working)
		m.logger.Debug("item dispatched",
			logging.String(logging.FieldItemID, id),
			logging.String("priority", working.Priority.String()),
		)

		result, procErr := invoke(ctx, fn, working.Payload)

		outcome := m.finishItem(ctx, id, result, procErr)
		outcomes = append(outcomes, outcome)
		switch outcome.Status {
		case queue.StatusCompleted:
			completed++
		case queue.StatusFailed:
			failed++
			m.logger.Warn("item failed",
				logging.String(logging.FieldItemID, id),
				logging.String("error", outcome.Err),
			)
		}

		if progress != nil {
			progress(len(outcomes), total, outcome)
		}
	}

	m.logger.Info("drain finished",
		logging.Int("processed", len(outcomes)),
		logging.Int("completed", completed),
		logging.Int("failed", failed),
	)
	return outcomes, nil
}

// finishItem records the processor's verdict. If the item was cancelled
// while in flight, the Cancelled status stands and the result is discarded.
func (m *Manager) finishItem(ctx context.Context, id, result string, procErr error) Outcome {
	m.mu.Lock()
	ent, ok := m.entries[id]
	if !ok || ent.item.Status != queue.StatusProcessing {
		status := queue.StatusCancelled
		if ok {
			status = ent.item.Status
		}
		m.mu.Unlock()
		return Outcome{ItemID: id, Status: status}
	}

	if procErr != nil {
		ent.item.MarkFailed(procErr.Error(), time.Now())
	} else {
		ent.item.MarkCompleted(result, time.Now())
	}
	working := *ent.item
	m.mu.Unlock()

	m.persist(ctx, &working)
	return Outcome{
		ItemID: id,
		Status: working.Status,
		Result: working.Result,
		Err:    working.ErrorMessage,
	}
}

// pendingSnapshotLocked returns the ids of Pending items in drain order.
// Items added after the snapshot wait for the next Process call.
func (m *Manager) pendingSnapshotLocked() []string {
	entries := make([]*entry, 0, len(m.entries))
	for _, ent := range m.entries {
		if ent.item.Status == queue.StatusPending {
			entries = append(entries, ent)
		}
	}
	sortEntries(entries)

	ids := make([]string, 0, len(entries))
	for _, ent := range entries {
		ids = append(ids, ent.item.ID)
	}
	return ids
}

// waitWhilePaused blocks between items while the manager is paused. The
// gate is a channel swapped on Pause and closed on Resume, so waiting is a
// blocking receive rather than a poll loop.
func (m *Manager) waitWhilePaused(ctx context.Context) error {
	for {
		m.mu.Lock()
		gate := m.gate
		m.mu.Unlock()

		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}

		m.mu.Lock()
		stillPaused := m.paused
		m.mu.Unlock()
		if !stillPaused {
			return nil
		}
	}
}

// invoke shields the drain from a panicking processor; a panic is recorded
// as that item's failure and the batch continues.
func invoke(ctx context.Context, fn ProcessorFunc, payload string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return fn(ctx, payload)
}
