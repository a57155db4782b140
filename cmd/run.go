package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single detection cycle and print the anomalies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.pipeline.Cycle(ctx)
		if err != nil {
			return eris.Wrap(err, "detection cycle")
		}

		zap.L().Info("cycle complete",
			zap.Int("data_points", result.DataPoints),
			zap.Int("anomalies", len(result.Anomalies)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Anomalies)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
