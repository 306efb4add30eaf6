package main

import (
	"os/signal"
	"syscall"

	"github.com/okian/crossfire/internal/adapters/stream"
	"github.com/spf13/cobra"
)

func newCorrelateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correlate <player> <opponent>",
		Short: "Run one correlation in-process and write NDJSON to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			correlator, err := newCorrelator(cfg)
			if err != nil {
				return err
			}

			if err := correlator.Run(ctx, args[0], args[1], stream.NewEncoder(cmd.OutOrStdout())); err != nil {
				return errRunFailed
			}
			return nil
		},
	}
}
