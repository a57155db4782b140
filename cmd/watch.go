package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridwatch/sentinel/internal/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run detection cycles continuously until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.webhook != nil {
			go env.webhook.Run(ctx, env.bus.Subscribe(0))
		}

		sched := scheduler.New(env.pipeline, cfg.Processing, env.bus)
		if err := sched.Start(ctx); err != nil {
			return err
		}

		zap.L().Info("watching", zap.Duration("interval", cfg.Processing.BatchInterval()))
		<-ctx.Done()
		sched.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
