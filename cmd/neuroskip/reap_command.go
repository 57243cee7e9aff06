package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"neuroskip/internal/lock"
	"neuroskip/internal/logging"
	"neuroskip/internal/workspace"
)

func newReapCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Remove stale unlocked workspaces now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()

			redisStore := lock.NewRedisStore(cfg.Redis)
			defer redisStore.Close()
			if err := redisStore.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
			}

			manager := workspace.NewManager(cfg.Paths.TempDir, logger)
			locks := lock.NewCoordinator(redisStore)
			reaper := workspace.NewReaper(manager, locks,
				time.Duration(cfg.Workflow.ReaperInterval)*time.Second,
				time.Duration(cfg.Workflow.ReaperMaxAge)*time.Second,
				logger,
			)

			result := reaper.Sweep(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d, skipped %d locked\n", len(result.Removed), len(result.Skipped))
			for _, removed := range result.Removed {
				fmt.Fprintf(out, "  removed %s\n", removed)
			}
			for _, sweepErr := range result.Errors {
				fmt.Fprintf(out, "  error %s: %v\n", sweepErr.Path, sweepErr.Error)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d workspaces could not be removed", len(result.Errors))
			}
			return nil
		},
	}
}
