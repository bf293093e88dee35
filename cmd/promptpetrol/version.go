package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/promptpetrol/internal/appupdate"
	"github.com/janekbaraniewski/promptpetrol/internal/version"
)

func newVersionCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "promptpetrol "+version.String())
			if !check {
				return nil
			}
			res, err := appupdate.Check(cmd.Context(), appupdate.Options{CurrentVersion: version.Version})
			if err != nil {
				return fmt.Errorf("update check: %w", err)
			}
			switch {
			case res.CurrentVersion == "":
				fmt.Fprintln(out, "development build, update check skipped")
			case res.UpdateAvailable:
				fmt.Fprintf(out, "%s is available: %s\n", res.LatestVersion, res.UpgradeHint)
			default:
				fmt.Fprintln(out, "up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check for a newer release")
	return cmd
}
