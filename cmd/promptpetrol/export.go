package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/promptpetrol/internal/export"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write per-provider usage totals as JSON or CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			closer := setupLogging(true)
			defer closer.Close()

			eng, store := newEngine(opts)
			defer closeStore(store)

			snap, err := eng.RunCycle(cmd.Context())
			if err != nil {
				return err
			}
			report := export.Build(snap.Data, snap.Limits, time.Now())

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			if err := export.Write(w, report, f); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d providers)\n", output, len(report.Providers))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
