package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePayload(t *testing.T) {
	if _, err := resolvePayload(nil, ""); err == nil {
		t.Fatal("expected error with no payload source")
	}
	if _, err := resolvePayload([]string{"x"}, "some-file"); err == nil {
		t.Fatal("expected error with both payload sources")
	}

	got, err := resolvePayload([]string{"inline"}, "")
	if err != nil || got != "inline" {
		t.Fatalf("inline payload: %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(`{"subject":"hello"}`), 0o644); err != nil {
		t.Fatalf("write payload file: %v", err)
	}
	got, err = resolvePayload(nil, path)
	if err != nil || got != `{"subject":"hello"}` {
		t.Fatalf("file payload: %q, %v", got, err)
	}
}

func TestParseStatusFilters(t *testing.T) {
	statuses, err := parseStatusFilters([]string{"pending", "Failed"})
	if err != nil {
		t.Fatalf("parseStatusFilters: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if _, err := parseStatusFilters([]string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("a very long error message", 10); got != "a very ..." {
		t.Fatalf("truncate long = %q", got)
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"add", "list", "status", "cancel", "clear", "drain", "run", "config"} {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing %q subcommand", name)
		}
	}
}
