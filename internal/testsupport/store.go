package testsupport

import (
	"context"
	"testing"
	"time"

	"gristmill/internal/config"
	"gristmill/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedItem writes a pending item directly into the store.
func SeedItem(t testing.TB, store *queue.Store, id, payload string, priority queue.Priority) *queue.Item {
	t.Helper()

	item := &queue.Item{
		ID:        id,
		Payload:   payload,
		Priority:  priority,
		Status:    queue.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Upsert(context.Background(), item); err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return item
}
