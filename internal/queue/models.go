package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// allowedTransitions enumerates every legal status move. Terminal statuses
// have no entry: nothing transitions out of them.
var allowedTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusProcessing: {},
		StatusCancelled:  {},
	},
	StatusProcessing: {
		StatusCompleted: {},
		StatusFailed:    {},
		StatusCancelled: {},
	},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	targets, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Priority orders items for dequeue; lower ordinals drain first.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

var priorityNames = map[Priority]string{
	PriorityHigh:   "high",
	PriorityMedium: "medium",
	PriorityLow:    "low",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Valid reports whether the priority is a known tier.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority converts a tier name into a Priority. Unknown values are a
// configuration error and are never coerced.
func ParsePriority(value string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "high":
		return PriorityHigh, nil
	case "medium", "":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", value)
	}
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID           string
	Payload      string
	Priority     Priority
	Status       Status
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Result       string
	ErrorMessage string
}

// Terminal reports whether the item has reached a terminal status.
func (i Item) Terminal() bool {
	return i.Status.Terminal()
}

// MarkProcessing moves the item in flight and stamps StartedAt.
func (i *Item) MarkProcessing(now time.Time) {
	i.Status = StatusProcessing
	t := now.UTC()
	i.StartedAt = &t
}

// MarkCompleted records a successful processor run.
func (i *Item) MarkCompleted(result string, now time.Time) {
	i.Status = StatusCompleted
	i.Result = result
	i.ErrorMessage = ""
	t := now.UTC()
	i.CompletedAt = &t
}

// MarkFailed records a processor failure. The batch continues past it.
func (i *Item) MarkFailed(message string, now time.Time) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	t := now.UTC()
	i.CompletedAt = &t
}

// MarkCancelled stamps the terminal timestamp without touching StartedAt, so
// an item cancelled mid-flight keeps evidence it was dispatched.
func (i *Item) MarkCancelled(now time.Time) {
	i.Status = StatusCancelled
	t := now.UTC()
	i.CompletedAt = &t
}
