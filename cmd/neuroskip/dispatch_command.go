package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"neuroskip/internal/lock"
	"neuroskip/internal/logging"
	"neuroskip/internal/services"
	"neuroskip/internal/tasks"
)

func newDispatchCommand(ctx *commandContext) *cobra.Command {
	provider := "youtube"

	cmd := &cobra.Command{
		Use:   "dispatch <video-id>",
		Short: "Lock a video and enqueue it for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()

			store, err := tasks.Open(cfg)
			if err != nil {
				return fmt.Errorf("open task store: %w", err)
			}
			defer store.Close()

			redisStore := lock.NewRedisStore(cfg.Redis)
			defer redisStore.Close()
			if err := redisStore.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
			}

			locks := lock.NewCoordinator(redisStore,
				lock.WithTTL(time.Duration(cfg.Workflow.LockTTLSeconds)*time.Second),
			)
			dispatcher := tasks.NewDispatcher(store, locks, logger)

			task, err := dispatcher.DispatchProcessing(cmd.Context(), args[0], provider)
			if errors.Is(err, services.ErrLockContention) {
				fmt.Fprintln(cmd.OutOrStdout(), "Video is already being processed")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued task %s on %s lane\n", shortID(task.ID), task.Lane)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", provider, "Source provider of the video")
	return cmd
}
