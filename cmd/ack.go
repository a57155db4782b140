package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var ackCmd = &cobra.Command{
	Use:   "ack <anomaly-id>...",
	Short: "Acknowledge one or more anomalies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, id := range args {
			if err := env.store.Acknowledge(ctx, id); err != nil {
				return eris.Wrapf(err, "acknowledge %s", id)
			}
			fmt.Printf("acknowledged %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ackCmd)
}
