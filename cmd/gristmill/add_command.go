package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gristmill/internal/queue"
	"gristmill/internal/scheduler"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		idFlag       string
		priorityFlag string
		fileFlag     string
	)

	cmd := &cobra.Command{
		Use:   "add [payload]",
		Short: "Enqueue a payload for classification",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := resolvePayload(args, fileFlag)
			if err != nil {
				return err
			}

			priority, err := queue.ParsePriority(priorityFlag)
			if err != nil {
				return err
			}

			id := strings.TrimSpace(idFlag)
			if id == "" {
				id = uuid.NewString()
			}

			return ctx.withManager(cmd.Context(), func(mgr *scheduler.Manager) error {
				item, err := mgr.Add(cmd.Context(), id, payload, priority)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s priority)\n", item.ID, item.Priority)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&idFlag, "id", "", "Item identifier (generated when omitted; re-using an id replaces the item)")
	cmd.Flags().StringVarP(&priorityFlag, "priority", "p", "medium", "Priority tier: high, medium, or low")
	cmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read the payload from a file instead of the argument")

	return cmd
}

func resolvePayload(args []string, fileFlag string) (string, error) {
	if fileFlag != "" {
		if len(args) > 0 {
			return "", errors.New("supply either a payload argument or --file, not both")
		}
		data, err := os.ReadFile(fileFlag)
		if err != nil {
			return "", fmt.Errorf("read payload file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", errors.New("payload argument or --file is required")
	}
	return args[0], nil
}
