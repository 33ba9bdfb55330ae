package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"origlang/internal/daemon"
	"origlang/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lookup API and run scheduled cache cleanup",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			det, err := ctx.newDetector()
			if err != nil {
				return err
			}
			d, err := daemon.New(cfg, det, logger)
			if err != nil {
				_ = det.Close()
				return err
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := d.Run(runCtx); err != nil {
				return err
			}
			logger.Info("origlang serve shutting down", logging.String(logging.FieldComponent, "cli"))
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind")
	return cmd
}
