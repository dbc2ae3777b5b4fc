package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gristmill/internal/config"
	"gristmill/internal/logging"
	"gristmill/internal/queue"
	"gristmill/internal/scheduler"
	"gristmill/internal/telemetry"
	"gristmill/internal/testsupport"
)

func newTestManager(t *testing.T, provider telemetry.Provider, opts ...testsupport.ConfigOption) (*scheduler.Manager, *queue.Store, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	if provider == nil {
		provider = testsupport.NewStaticTelemetry(0, 0)
	}
	mgr, err := scheduler.NewManager(context.Background(), cfg, store, provider, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr, store, cfg
}

func echoProcessor(_ context.Context, payload string) (string, error) {
	return payload, nil
}

func TestAddValidation(t *testing.T) {
	mgr, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := mgr.Add(ctx, "  ", "payload", queue.PriorityHigh); err == nil {
		t.Fatal("expected error for empty id")
	}
	if _, err := mgr.Add(ctx, "ok", "payload", queue.Priority(42)); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

func TestNewManagerRejectsNonPositiveMemoryLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cfg.Memory.LimitBytes = 0

	_, err := scheduler.NewManager(context.Background(), cfg, store, testsupport.NewStaticTelemetry(0, 0), logging.NewNop())
	if err == nil {
		t.Fatal("expected error for non-positive memory limit")
	}
}

func TestDrainOrdersByPriorityThenCreation(t *testing.T) {
	mgr, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	// interleave tiers on purpose; within a tier, ids carry creation order
	add := func(id string, p queue.Priority) {
		t.Helper()
		if _, err := mgr.Add(ctx, id, "payload:"+id, p); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}
	add("low-1", queue.PriorityLow)
	add("high-1", queue.PriorityHigh)
	add("med-1", queue.PriorityMedium)
	add("high-2", queue.PriorityHigh)
	add("low-2", queue.PriorityLow)
	add("med-2", queue.PriorityMedium)
	add("high-3", queue.PriorityHigh)
	add("med-3", queue.PriorityMedium)
	add("high-4", queue.PriorityHigh)
	add("high-5", queue.PriorityHigh)

	var (
		order  []string
		totals []int
	)
	outcomes, err := mgr.Process(ctx, echoProcessor, func(index, total int, outcome scheduler.Outcome) {
		order = append(order, outcome.ItemID)
		totals = append(totals, total)
		if index != len(order) {
			t.Errorf("progress index %d out of sequence (call %d)", index, len(order))
		}
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []string{
		"high-1", "high-2", "high-3", "high-4", "high-5",
		"med-1", "med-2", "med-3",
		"low-1", "low-2",
	}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Fatalf("drain order = %v, want %v", order, want)
	}
	if len(outcomes) != 10 {
		t.Fatalf("expected 10 outcomes, got %d", len(outcomes))
	}
	for i, total := range totals {
		if total != 10 {
			t.Fatalf("progress call %d reported total %d, want 10", i, total)
		}
	}
	for _, outcome := range outcomes {
		if outcome.Status != queue.StatusCompleted {
			t.Fatalf("item %s finished %s, want completed", outcome.ItemID, outcome.Status)
		}
		if outcome.Result != "payload:"+outcome.ItemID {
			t.Fatalf("item %s result = %q", outcome.ItemID, outcome.Result)
		}
	}
}

func TestProcessorFailureDoesNotAbortBatch(t *testing.T) {
	mgr, store, _ := newTestManager(t, nil)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		if _, err := mgr.Add(ctx, fmt.Sprintf("item-%02d", i), "p", queue.PriorityMedium); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	dispatched := 0
	calls := 0
	outcomes, err := mgr.Process(ctx, func(_ context.Context, payload string) (string, error) {
		dispatched++
		if dispatched == 3 {
			return "", errors.New("inference backend rejected request")
		}
		return payload, nil
	}, func(index, total int, outcome scheduler.Outcome) {
		calls++
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(outcomes) != 10 || calls != 10 {
		t.Fatalf("expected 10 outcomes and 10 progress calls, got %d/%d", len(outcomes), calls)
	}
	failedID := outcomes[2].ItemID
	if outcomes[2].Status != queue.StatusFailed || outcomes[2].Err == "" {
		t.Fatalf("third item: %#v", outcomes[2])
	}
	for i, outcome := range outcomes {
		if i == 2 {
			continue
		}
		if outcome.Status != queue.StatusCompleted {
			t.Fatalf("item %s finished %s, want completed", outcome.ItemID, outcome.Status)
		}
	}

	persisted, err := store.GetByID(ctx, failedID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if persisted.Status != queue.StatusFailed || persisted.ErrorMessage == "" {
		t.Fatalf("failure not persisted: %#v", persisted)
	}
}

func TestPanickingProcessorIsRecorded(t *testing.T) {
	mgr, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := mgr.Add(ctx, "boom", "p", queue.PriorityHigh); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := mgr.Add(ctx, "fine", "p", queue.PriorityMedium); err != nil {
		t.Fatalf("Add: %v", err)
	}

	outcomes, err := mgr.Process(ctx, func(_ context.Context, _ string) (string, error) {
		panic("session corrupted")
	}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, outcome := range outcomes {
		if outcome.Status != queue.StatusFailed || !strings.Contains(outcome.Err, "panic") {
			t.Fatalf("panic not recorded as failure: %#v", outcome)
		}
	}
}

func TestSecondProcessRejected(t *testing.T) {
	mgr, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := mgr.Add(ctx, fmt.Sprintf("slow-%d", i), "p", queue.PriorityMedium); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	done := make(chan []scheduler.Outcome, 1)
	go func() {
		outcomes, err := mgr.Process(ctx, func(_ context.Context, payload string) (string, error) {
			once.Do(func() { close(started) })
			<-release
			return payload, nil
		}, nil)
		if err != nil {
			t.Errorf("first Process: %v", err)
		}
		done <- outcomes
	}()

	<-started
	if _, err := mgr.Process(ctx, echoProcessor, nil); !errors.Is(err, scheduler.ErrAlreadyProcessing) {
		t.Fatalf("second Process: got %v, want ErrAlreadyProcessing", err)
	}
	close(release)

	outcomes := <-done
	if len(outcomes) != 3 {
		t.Fatalf("in-flight drain corrupted: %d outcomes", len(outcomes))
	}
	status := mgr.Status()
	if status.Completed != 3 || status.Draining {
		t.Fatalf("unexpected status after drain: %#v", status)
	}

	// the manager accepts a fresh drain once the first finishes
	if _, err := mgr.Process(ctx, echoProcessor, nil); err != nil {
		t.Fatalf("third Process after drain finished: %v", err)
	}
}

func TestCancelSemantics(t *testing.T) {
	mgr, store, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := mgr.Add(ctx, "victim", "p", queue.PriorityHigh); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := mgr.Add(ctx, "survivor", "p", queue.PriorityLow); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if mgr.Cancel(ctx, "missing") {
		t.Fatal("cancelling a missing id must return false")
	}
	if !mgr.Cancel(ctx, "victim") {
		t.Fatal("cancelling a pending item must return true")
	}
	if mgr.Cancel(ctx, "victim") {
		t.Fatal("cancelling a cancelled item must return false")
	}

	persisted, err := store.GetByID(ctx, "victim")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if persisted.Status != queue.StatusCancelled || persisted.CompletedAt == nil {
		t.Fatalf("cancel not persisted: %#v", persisted)
	}

	outcomes, err := mgr.Process(ctx, echoProcessor, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].ItemID != "survivor" {
		t.Fatalf("cancelled item reached the drain: %#v", outcomes)
	}

	if mgr.Cancel(ctx, "survivor") {
		t.Fatal("cancelling a completed item must return false")
	}
	after, err := store.GetByID(ctx, "survivor")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Status != queue.StatusCompleted {
		t.Fatalf("completed item mutated by cancel: %#v", after)
	}
}

func TestCancelInFlightKeepsCancelledStatus(t *testing.T) {
	mgr, store, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := mgr.Add(ctx, "inflight", "p", queue.PriorityHigh); err != nil {
		t.Fatalf("Add: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan []scheduler.Outcome, 1)
	go func() {
		outcomes, err := mgr.Process(ctx, func(_ context.Context, payload string) (string, error) {
			close(started)
			<-release
			return "late result", nil
		}, nil)
		if err != nil {
			t.Errorf("Process: %v", err)
		}
		done <- outcomes
	}()

	<-started
	if !mgr.Cancel(ctx, "inflight") {
		t.Fatal("cancelling a processing item must return true")
	}
	close(release)

	outcomes := <-done
	if len(outcomes) != 1 || outcomes[0].Status != queue.StatusCancelled {
		t.Fatalf("late result overwrote cancellation: %#v", outcomes)
	}
	persisted, err := store.GetByID(ctx, "inflight")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if persisted.Status != queue.StatusCancelled || persisted.Result != "" {
		t.Fatalf("store shows %s/%q, want cancelled with no result", persisted.Status, persisted.Result)
	}
}

func TestCancelAllOnlyTouchesPending(t *testing.T) {
	mgr, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := mgr.Add(ctx, fmt.Sprintf("p-%d", i), "p", queue.PriorityMedium); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if _, err := mgr.Process(ctx, echoProcessor, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := mgr.Add(ctx, fmt.Sprintf("late-%d", i), "p", queue.PriorityMedium); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if n := mgr.CancelAll(ctx); n != 2 {
		t.Fatalf("CancelAll = %d, want 2", n)
	}
	status := mgr.Status()
	if status.Completed != 4 || status.Cancelled != 2 || status.Pending != 0 {
		t.Fatalf("unexpected status: %#v", status)
	}
}

func TestPauseBlocksBetweenItems(t *testing.T) {
	mgr, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := mgr.Add(ctx, fmt.Sprintf("pz-%d", i), "p", queue.PriorityMedium); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	mgr.Pause()
	firstDispatch := make(chan struct{})
	var once sync.Once
	done := make(chan []scheduler.Outcome, 1)
	go func() {
		outcomes, err := mgr.Process(ctx, func(_ context.Context, payload string) (string, error) {
			once.Do(func() { close(firstDispatch) })
			return payload, nil
		}, nil)
		if err != nil {
			t.Errorf("Process: %v", err)
		}
		done <- outcomes
	}()

	select {
	case <-firstDispatch:
		t.Fatal("drain dispatched an item while paused")
	case <-time.After(100 * time.Millisecond):
	}
	if !mgr.Status().Paused {
		t.Fatal("status must report paused")
	}

	mgr.Resume()
	select {
	case outcomes := <-done:
		if len(outcomes) != 3 {
			t.Fatalf("expected 3 outcomes after resume, got %d", len(outcomes))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not finish after resume")
	}
}

func TestPressureHalvesBatchSizeDuringDrain(t *testing.T) {
	limit := int64(1 << 30)
	provider := testsupport.NewStaticTelemetry(uint64(0.9*float64(limit)), 90)
	mgr, _, _ := newTestManager(t, provider,
		testsupport.WithMemoryLimit(limit),
		testsupport.WithInitialBatchSize(8),
	)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := mgr.Add(ctx, fmt.Sprintf("hot-%d", i), "p", queue.PriorityMedium); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if _, err := mgr.Process(ctx, echoProcessor, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// 8 -> 4 -> 2 -> 1, then floor
	if got := mgr.BatchSize(); got != 1 {
		t.Fatalf("batch size after pressured drain = %d, want 1", got)
	}
	if status := mgr.Status(); status.BatchSize != 1 {
		t.Fatalf("status batch size = %d, want 1", status.BatchSize)
	}
}

func TestStatusCountsSumToTotal(t *testing.T) {
	mgr, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := mgr.Add(ctx, fmt.Sprintf("s-%d", i), "p", queue.PriorityMedium); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	mgr.Cancel(ctx, "s-5")

	dispatched := 0
	if _, err := mgr.Process(ctx, func(_ context.Context, payload string) (string, error) {
		dispatched++
		if dispatched%2 == 0 {
			return "", errors.New("boom")
		}
		return payload, nil
	}, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}

	status := mgr.Status()
	sum := status.Pending + status.Processing + status.Completed + status.Failed + status.Cancelled
	if sum != status.Total {
		t.Fatalf("counts %d do not sum to total %d: %#v", sum, status.Total, status)
	}
	if status.Total != 6 || status.Cancelled != 1 || status.Completed+status.Failed != 5 {
		t.Fatalf("unexpected distribution: %#v", status)
	}
}

func TestWorkingSetRecoveryAfterRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := testsupport.NewStaticTelemetry(0, 0)
	ctx := context.Background()

	mgr, err := scheduler.NewManager(ctx, cfg, store, provider, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	add := func(id string, p queue.Priority) {
		t.Helper()
		if _, err := mgr.Add(ctx, id, "p", p); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	add("r-low", queue.PriorityLow)
	add("r-high", queue.PriorityHigh)
	add("r-med", queue.PriorityMedium)
	mgr.Cancel(ctx, "r-med")

	// simulate a crash: a fresh manager over a reopened database
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	recovered, err := scheduler.NewManager(ctx, cfg, reopened, provider, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager after restart: %v", err)
	}

	items := recovered.Items()
	var ids []string
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	want := []string{"r-high", "r-low"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("recovered working set = %v, want %v", ids, want)
	}

	outcomes, err := recovered.Process(ctx, echoProcessor, nil)
	if err != nil {
		t.Fatalf("Process after recovery: %v", err)
	}
	if len(outcomes) != 2 || outcomes[0].ItemID != "r-high" || outcomes[1].ItemID != "r-low" {
		t.Fatalf("recovered drain order wrong: %#v", outcomes)
	}
}

func TestClearCompletedDropsWorkingSetOnly(t *testing.T) {
	mgr, store, _ := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := mgr.Add(ctx, fmt.Sprintf("c-%d", i), "p", queue.PriorityMedium); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if _, err := mgr.Process(ctx, echoProcessor, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := mgr.Add(ctx, "keep", "p", queue.PriorityMedium); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if removed := mgr.ClearCompleted(); removed != 3 {
		t.Fatalf("ClearCompleted = %d, want 3", removed)
	}
	status := mgr.Status()
	if status.Total != 1 || status.Pending != 1 {
		t.Fatalf("working set after clear: %#v", status)
	}

	// durable history is untouched
	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Completed != 3 {
		t.Fatalf("store lost completed history: %#v", health)
	}
}

func TestReAddUpsertsExistingID(t *testing.T) {
	mgr, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := mgr.Add(ctx, "dup", "first", queue.PriorityLow); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := mgr.Add(ctx, "dup", "second", queue.PriorityHigh); err != nil {
		t.Fatalf("re-Add: %v", err)
	}

	items := mgr.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item after re-add, got %d", len(items))
	}
	if items[0].Payload != "second" || items[0].Priority != queue.PriorityHigh {
		t.Fatalf("re-add did not replace: %#v", items[0])
	}
}
