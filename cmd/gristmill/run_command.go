package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"gristmill/internal/logging"
	"gristmill/internal/scheduler"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drain the queue continuously until interrupted",
		Long: "Run acquires a lock on the data directory so only one gristmill " +
			"instance processes the queue, then alternates between draining " +
			"pending items and polling for new work.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			processor, err := commandProcessor(cfg)
			if err != nil {
				return err
			}

			lockPath := filepath.Join(cfg.Paths.DataDir, "gristmill.lock")
			lock := flock.New(lockPath)
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another gristmill instance is already running")
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release lock", logging.Error(err))
				}
			}()

			return ctx.withManager(cmd.Context(), func(mgr *scheduler.Manager) error {
				logger.Info("gristmill running",
					logging.String("lock", lockPath),
					logging.Int("poll_interval_seconds", cfg.Queue.PollInterval),
				)
				pollInterval := time.Duration(cfg.Queue.PollInterval) * time.Second

				for {
					outcomes, err := mgr.Process(cmd.Context(), processor, nil)
					switch {
					case errors.Is(err, context.Canceled):
						logger.Info("gristmill stopped")
						return nil
					case err != nil:
						return err
					}
					if len(outcomes) > 0 {
						fmt.Fprintf(cmd.OutOrStdout(), "drained %d item(s)\n", len(outcomes))
					}

					select {
					case <-cmd.Context().Done():
						logger.Info("gristmill stopped")
						return nil
					case <-time.After(pollInterval):
					}
				}
			})
		},
	}

	return cmd
}
