package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"gristmill/internal/config"
	"gristmill/internal/scheduler"
)

// commandProcessor adapts the configured external command to the scheduler's
// processor contract: payload on stdin, trimmed stdout as the result. A
// non-zero exit marks the item failed and the drain continues.
func commandProcessor(cfg *config.Config) (scheduler.ProcessorFunc, error) {
	command := strings.TrimSpace(cfg.Processor.Command)
	if command == "" {
		return nil, errors.New("processor.command is not configured; set it in the config file")
	}
	args := cfg.Processor.Args

	return func(ctx context.Context, payload string) (string, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Stdin = strings.NewReader(payload)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return "", fmt.Errorf("%s: %w", msg, err)
			}
			return "", err
		}
		return strings.TrimSpace(stdout.String()), nil
	}, nil
}
