package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/gridwatch/sentinel/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export unacknowledged anomalies as CSV or Markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		anomalies, err := env.store.ListUnacknowledged(ctx, 0)
		if err != nil {
			return eris.Wrap(err, "list anomalies")
		}

		var out io.Writer = os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		switch exportFormat {
		case "csv":
			return export.CSV(out, anomalies)
		case "markdown", "md":
			return export.Markdown(out, anomalies)
		default:
			return eris.Errorf("unknown format %q (want csv or markdown)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or markdown")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
