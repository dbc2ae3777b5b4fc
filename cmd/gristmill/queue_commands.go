package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gristmill/internal/queue"
	"gristmill/internal/scheduler"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		statusFlags []string
		jsonFlag    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilters(statusFlags)
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd, itemsToJSON(items))
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						item.Priority.String(),
						string(item.Status),
						item.CreatedAt.Local().Format(time.DateTime),
						truncate(item.ErrorMessage, 40),
					})
				}
				table := renderTable(
					[]string{"ID", "Priority", "Status", "Created", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status (pending, processing, completed, failed, cancelled)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")

	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "cancel [id]",
		Short: "Cancel a queue item, or all pending items with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if allFlag == (len(args) == 1) {
				return errors.New("supply either an item id or --all")
			}

			return ctx.withManager(cmd.Context(), func(mgr *scheduler.Manager) error {
				if allFlag {
					n := mgr.CancelAll(cmd.Context())
					fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d pending item(s)\n", n)
					return nil
				}
				if !mgr.Cancel(cmd.Context(), args[0]) {
					return fmt.Errorf("item %s not found or already finished", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Cancel every pending item")

	return cmd
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var (
		completedFlag bool
		failedFlag    bool
		allFlag       bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished items from the durable queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !completedFlag && !failedFlag && !allFlag {
				completedFlag = true
			}

			return ctx.withStore(func(store *queue.Store) error {
				var (
					removed int64
					err     error
				)
				switch {
				case allFlag:
					removed, err = store.Clear(cmd.Context())
				case failedFlag:
					removed, err = store.ClearFailed(cmd.Context())
				default:
					removed, err = store.ClearCompleted(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d item(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completedFlag, "completed", false, "Remove completed items (default)")
	cmd.Flags().BoolVar(&failedFlag, "failed", false, "Remove failed items")
	cmd.Flags().BoolVar(&allFlag, "all", false, "Remove every item, including pending work")

	return cmd
}

func parseStatusFilters(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

type itemJSON struct {
	ID          string     `json:"id"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func itemsToJSON(items []*queue.Item) []itemJSON {
	out := make([]itemJSON, 0, len(items))
	for _, item := range items {
		out = append(out, itemJSON{
			ID:          item.ID,
			Priority:    item.Priority.String(),
			Status:      string(item.Status),
			CreatedAt:   item.CreatedAt,
			StartedAt:   item.StartedAt,
			CompletedAt: item.CompletedAt,
			Result:      item.Result,
			Error:       item.ErrorMessage,
		})
	}
	return out
}

func writeJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}
