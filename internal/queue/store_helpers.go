package queue

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const itemColumns = `id, payload, priority, status, created_at, started_at, completed_at, result, error_message`

const timestampLayout = time.RFC3339Nano

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item        Item
		status      string
		createdAt   string
		startedAt   sql.NullString
		completedAt sql.NullString
		result      sql.NullString
		errMessage  sql.NullString
	)

	if err := scanner.Scan(
		&item.ID,
		&item.Payload,
		&item.Priority,
		&status,
		&createdAt,
		&startedAt,
		&completedAt,
		&result,
		&errMessage,
	); err != nil {
		return nil, err
	}

	parsed, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("item %s: unknown status %q", item.ID, status)
	}
	item.Status = parsed

	created, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("item %s: parse created_at: %w", item.ID, err)
	}
	item.CreatedAt = created

	if item.StartedAt, err = parseNullableTimestamp(startedAt); err != nil {
		return nil, fmt.Errorf("item %s: parse started_at: %w", item.ID, err)
	}
	if item.CompletedAt, err = parseNullableTimestamp(completedAt); err != nil {
		return nil, fmt.Errorf("item %s: parse completed_at: %w", item.ID, err)
	}
	item.Result = result.String
	item.ErrorMessage = errMessage.String

	return &item, nil
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(timestampLayout, strings.TrimSpace(value))
}

func parseNullableTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil, nil
	}
	parsed, err := parseTimestamp(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timestampLayout)
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
