package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"gristmill/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}

				if jsonFlag {
					return writeJSON(cmd, map[string]any{
						"total":             health.Total,
						"pending":           health.Pending,
						"processing":        health.Processing,
						"completed":         health.Completed,
						"failed":            health.Failed,
						"cancelled":         health.Cancelled,
						"memory_limit":      cfg.Memory.LimitBytes,
						"target_throughput": cfg.Queue.TargetThroughput,
					})
				}

				rows := [][]string{
					{"pending", fmt.Sprint(health.Pending)},
					{"processing", fmt.Sprint(health.Processing)},
					{"completed", fmt.Sprint(health.Completed)},
					{"failed", fmt.Sprint(health.Failed)},
					{"cancelled", fmt.Sprint(health.Cancelled)},
					{"total", fmt.Sprint(health.Total)},
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)

				printer := message.NewPrinter(language.English)
				fmt.Fprintln(cmd.OutOrStdout(), printer.Sprintf("memory limit: %d bytes", cfg.Memory.LimitBytes))
				fmt.Fprintf(cmd.OutOrStdout(), "target throughput: %.1f items/min (informational)\n", cfg.Queue.TargetThroughput)
				fmt.Fprintf(cmd.OutOrStdout(), "database: %s\n", store.Path())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")

	return cmd
}
