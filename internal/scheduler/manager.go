package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gristmill/internal/config"
	"gristmill/internal/logging"
	"gristmill/internal/pressure"
	"gristmill/internal/queue"
	"gristmill/internal/telemetry"
)

// ErrAlreadyProcessing is returned when Process is called while another
// drain is still running on this Manager.
var ErrAlreadyProcessing = errors.New("a drain is already in progress")

// ProcessorFunc handles a single payload and returns its result. It is the
// only operation the scheduler allows to block unboundedly; timeouts and
// retries are the processor's own contract.
type ProcessorFunc func(ctx context.Context, payload string) (string, error)

// ProgressFunc observes drain progress. It is invoked exactly once per item
// reached by the drain, with a 1-based index and the snapshot total.
type ProgressFunc func(index, total int, outcome Outcome)

// Outcome records the terminal disposition of one drained item. Err is
// empty unless the item failed.
type Outcome struct {
	ItemID string
	Status queue.Status
	Result string
	Err    string
}

// entry pairs an item with its admission sequence so equal-priority items
// drain in strict FIFO order even when creation timestamps collide.
type entry struct {
	item *queue.Item
	seq  uint64
}

// Manager owns the working set and exposes the public queue API. All shared
// state is guarded by a single mutex so Add, Cancel, Pause, Resume, and
// Status calls interleave safely with an active drain.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	monitor  *pressure.Monitor
	governor *pressure.Governor

	mu         sync.Mutex
	entries    map[string]*entry
	nextSeq    uint64
	paused     bool
	gate       chan struct{}
	processing bool
}

// NewManager constructs a manager and rebuilds its working set from the
// store's non-terminal items, so in-flight work survives a restart.
func NewManager(ctx context.Context, cfg *config.Config, store *queue.Store, provider telemetry.Provider, logger *slog.Logger) (*Manager, error) {
	if cfg == nil || store == nil || provider == nil {
		return nil, errors.New("scheduler requires config, store, and telemetry provider")
	}
	if cfg.Memory.LimitBytes <= 0 {
		return nil, fmt.Errorf("memory limit must be positive, got %d", cfg.Memory.LimitBytes)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "scheduler")

	m := &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		monitor:  pressure.NewMonitor(provider, cfg.Memory.LimitBytes, time.Duration(cfg.Memory.SampleInterval)*time.Second, logger),
		governor: pressure.NewGovernor(provider, cfg.Memory.LimitBytes, cfg.Queue.InitialBatchSize, logger),
		entries:  make(map[string]*entry),
		gate:     newOpenGate(),
	}

	recovered, err := store.LoadActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("recover working set: %w", err)
	}
	for _, item := range recovered {
		m.entries[item.ID] = &entry{item: item, seq: m.nextSeq}
		m.nextSeq++
	}
	if len(recovered) > 0 {
		logger.Info("recovered working set from store", logging.Int("items", len(recovered)))
	}

	return m, nil
}

// Add upserts an item into the working set and persists it. Re-adding an
// existing id replaces the previous record. The id and priority are
// validated fail-fast; nothing is coerced.
func (m *Manager) Add(ctx context.Context, id, payload string, priority queue.Priority) (queue.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return queue.Item{}, errors.New("item id is required")
	}
	if !priority.Valid() {
		return queue.Item{}, fmt.Errorf("unknown priority %d", int(priority))
	}

	item := &queue.Item{
		ID:        id,
		Payload:   payload,
		Priority:  priority,
		Status:    queue.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.entries[id] = &entry{item: item, seq: m.nextSeq}
	m.nextSeq++
	snapshot := *item
	m.mu.Unlock()

	m.persist(ctx, &snapshot)
	m.logger.Debug("item queued",
		logging.String(logging.FieldItemID, id),
		logging.String("priority", priority.String()),
	)
	return snapshot, nil
}

// Cancel transitions a Pending or Processing item to Cancelled and reports
// whether it did so. Cancelling an item already dispatched to the processor
// is advisory bookkeeping: the in-flight call is not interrupted, but its
// eventual result will not overwrite the Cancelled status.
func (m *Manager) Cancel(ctx context.Context, id string) bool {
	m.mu.Lock()
	ent, ok := m.entries[id]
	if !ok || !queue.CanTransition(ent.item.Status, queue.StatusCancelled) {
		m.mu.Unlock()
		return false
	}
	ent.item.MarkCancelled(time.Now())
	snapshot := *ent.item
	m.mu.Unlock()

	m.persist(ctx, &snapshot)
	m.logger.Info("item cancelled", logging.String(logging.FieldItemID, id))
	return true
}

// CancelAll cancels every currently Pending item and returns the count.
// Processing and terminal items are left untouched.
func (m *Manager) CancelAll(ctx context.Context) int {
	now := time.Now()
	var cancelled []queue.Item

	m.mu.Lock()
	for _, ent := range m.entries {
		if ent.item.Status != queue.StatusPending {
			continue
		}
		ent.item.MarkCancelled(now)
		cancelled = append(cancelled, *ent.item)
	}
	m.mu.Unlock()

	for i := range cancelled {
		m.persist(ctx, &cancelled[i])
	}
	if len(cancelled) > 0 {
		m.logger.Info("pending items cancelled", logging.Int("count", len(cancelled)))
	}
	return len(cancelled)
}

// Pause suspends the drain between items. It never preempts an in-flight
// processor call.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		return
	}
	m.paused = true
	m.gate = make(chan struct{})
	m.logger.Info("processing paused")
}

// Resume releases a paused drain.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paused {
		return
	}
	m.paused = false
	close(m.gate)
	m.logger.Info("processing resumed")
}

// ClearCompleted drops Completed, Failed, and Cancelled items from the
// in-memory working set. Durable history in the store is untouched.
func (m *Manager) ClearCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, ent := range m.entries {
		if ent.item.Terminal() {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Items returns a copy of the working set in drain order.
func (m *Manager) Items() []queue.Item {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, ent := range m.entries {
		entries = append(entries, ent)
	}
	items := make([]queue.Item, 0, len(entries))
	sortEntries(entries)
	for _, ent := range entries {
		items = append(items, *ent.item)
	}
	m.mu.Unlock()
	return items
}

// BatchSize returns the governor's current advisory batch size.
func (m *Manager) BatchSize() int {
	return m.governor.BatchSize()
}

// sortEntries orders by dequeue preference: priority ordinal ascending, then
// creation time, then admission sequence for strict FIFO within a tier.
func sortEntries(entries []*entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.item.Priority != b.item.Priority {
			return a.item.Priority < b.item.Priority
		}
		if !a.item.CreatedAt.Equal(b.item.CreatedAt) {
			return a.item.CreatedAt.Before(b.item.CreatedAt)
		}
		return a.seq < b.seq
	})
}

func newOpenGate() chan struct{} {
	gate := make(chan struct{})
	close(gate)
	return gate
}

// persist writes through to the store. Failures are logged and swallowed:
// the in-memory transition remains authoritative for this run, at the cost
// of best-effort durability for that write.
func (m *Manager) persist(ctx context.Context, item *queue.Item) {
	if err := m.store.Upsert(ctx, item); err != nil {
		m.logger.Warn("persist queue item failed; continuing with in-memory state",
			logging.String(logging.FieldItemID, item.ID),
			logging.Error(err),
		)
	}
}
