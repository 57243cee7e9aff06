package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"neuroskip/internal/segments"
)

func newSegmentsCommand(ctx *commandContext) *cobra.Command {
	provider := "youtube"

	cmd := &cobra.Command{
		Use:   "segments <video-id>",
		Short: "List stored transcript segments for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := segments.Open(cfg)
			if err != nil {
				return fmt.Errorf("open segment store: %w", err)
			}
			defer store.Close()

			items, err := store.Query(cmd.Context(), args[0], provider)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No segments stored for this video")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, seg := range items {
				segType := seg.Type
				if segType == "" {
					segType = "unclassified"
				}
				rows = append(rows, []string{
					strconv.FormatInt(seg.ID, 10),
					seg.Start,
					seg.End,
					segType,
					truncate(seg.Text, 60),
				})
			}
			table := renderTable(
				[]string{"ID", "Start", "End", "Type", "Text"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft},
			)
			fmt.Fprint(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", provider, "Source provider of the video")
	return cmd
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}
