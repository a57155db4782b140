package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	anomaliesLimit int
	anomaliesJSON  bool
)

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "List unacknowledged anomalies, most severe first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		anomalies, err := env.store.ListUnacknowledged(ctx, anomaliesLimit)
		if err != nil {
			return eris.Wrap(err, "list anomalies")
		}

		if anomaliesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(anomalies)
		}

		if len(anomalies) == 0 {
			fmt.Println("no unacknowledged anomalies")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSEVERITY\tENTITY\tMETHOD\tSCORE\tCONF\tAGE\tDESCRIPTION")
		for _, a := range anomalies {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\n",
				a.ID, a.Severity, a.EntityID, a.DetectionMethod,
				a.Score, a.Confidence,
				time.Since(a.Timestamp).Round(time.Second), a.Description)
		}
		return w.Flush()
	},
}

func init() {
	anomaliesCmd.Flags().IntVar(&anomaliesLimit, "limit", 50, "maximum anomalies to show (0 = all)")
	anomaliesCmd.Flags().BoolVar(&anomaliesJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(anomaliesCmd)
}
