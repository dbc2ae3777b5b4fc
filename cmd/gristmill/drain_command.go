package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gristmill/internal/queue"
	"gristmill/internal/scheduler"
)

func newDrainCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Process all pending items once, in priority order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			processor, err := commandProcessor(cfg)
			if err != nil {
				return err
			}

			return ctx.withManager(cmd.Context(), func(mgr *scheduler.Manager) error {
				outcomes, err := mgr.Process(cmd.Context(), processor, func(index, total int, outcome scheduler.Outcome) {
					fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s: %s\n", index, total, outcome.ItemID, outcome.Status)
				})
				if err != nil {
					return err
				}

				completed, failed := 0, 0
				for _, outcome := range outcomes {
					switch outcome.Status {
					case queue.StatusCompleted:
						completed++
					case queue.StatusFailed:
						failed++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "drained %d item(s): %d completed, %d failed\n", len(outcomes), completed, failed)
				return nil
			})
		},
	}

	return cmd
}
