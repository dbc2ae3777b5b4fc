// Package scheduler orchestrates the classification work queue.
//
// The Manager composes the SQLite item store, the priority-ordered working
// set, the background resource monitor, and the admission governor behind a
// small public API. Processing is deliberately sequential: one item at a
// time on the caller's goroutine, so a shared stateful inference backend is
// never hit with concurrent calls. At most one drain runs per Manager; a
// second Process call while one is active is rejected, not queued.
//
// Every status transition is written through to the store before the next
// item is considered. A persistence failure is logged and swallowed: the
// in-memory transition stands for the current process lifetime, but that
// specific write is not guaranteed durable for recovery.
package scheduler
