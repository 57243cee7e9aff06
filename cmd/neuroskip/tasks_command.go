package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"neuroskip/internal/tasks"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List queued and finished tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := tasks.Open(cfg)
			if err != nil {
				return fmt.Errorf("open task store: %w", err)
			}
			defer store.Close()

			var status tasks.Status
			if strings.TrimSpace(statusFilter) != "" {
				parsed, ok := tasks.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				status = parsed
			}

			items, err := store.List(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks recorded")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, task := range items {
				detail := task.ErrorMessage
				if detail == "" {
					detail = task.PayloadJSON
				}
				rows = append(rows, []string{
					shortID(task.ID),
					string(task.Kind),
					string(task.Lane),
					string(task.Status),
					task.CreatedAt.Local().Format(time.DateTime),
					truncate(detail, 48),
				})
			}
			table := renderTable(
				[]string{"ID", "Kind", "Lane", "Status", "Created", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprint(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show tasks with this status (pending, running, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of tasks to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
