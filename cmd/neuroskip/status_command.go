package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"neuroskip/internal/segments"
	"neuroskip/internal/tasks"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task queue and segment store summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			taskStore, err := tasks.Open(cfg)
			if err != nil {
				return fmt.Errorf("open task store: %w", err)
			}
			defer taskStore.Close()

			segmentStore, err := segments.Open(cfg)
			if err != nil {
				return fmt.Errorf("open segment store: %w", err)
			}
			defer segmentStore.Close()

			health, err := taskStore.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("task health: %w", err)
			}
			stats, err := segmentStore.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("segment stats: %w", err)
			}

			out := cmd.OutOrStdout()
			taskRows := [][]string{
				{"Pending", strconv.Itoa(health.Pending)},
				{"Running", strconv.Itoa(health.Running)},
				{"Completed", strconv.Itoa(health.Completed)},
				{"Failed", strconv.Itoa(health.Failed)},
				{"Total", strconv.Itoa(health.Total)},
			}
			fmt.Fprintln(out, "Tasks")
			fmt.Fprint(out, renderTable([]string{"Status", "Count"}, taskRows, []columnAlignment{alignLeft, alignRight}))

			segmentRows := [][]string{
				{"Ads", strconv.Itoa(stats[segments.TypeAd])},
				{"Content", strconv.Itoa(stats[segments.TypeContent])},
				{"Unclassified", strconv.Itoa(stats["unclassified"])},
			}
			fmt.Fprintln(out, "Segments")
			fmt.Fprint(out, renderTable([]string{"Type", "Count"}, segmentRows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
