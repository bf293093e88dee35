package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
	"github.com/janekbaraniewski/promptpetrol/internal/engine"
)

func newScanCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one ingestion cycle and print the diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			closer := setupLogging(true)
			defer closer.Close()

			eng, store := newEngine(opts)
			defer closeStore(store)

			snap, err := eng.RunCycle(cmd.Context())
			if snap == nil {
				return err
			}
			if asJSON {
				if werr := writeScanJSON(cmd.OutOrStdout(), snap); werr != nil {
					return werr
				}
			} else {
				writeScanText(cmd.OutOrStdout(), snap, time.Now())
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the diagnostics snapshot as JSON")
	return cmd
}

func writeScanJSON(w io.Writer, snap *engine.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Diagnostics any                      `json:"diagnostics"`
		Scheduler   any                      `json:"scheduler"`
		Providers   []core.ProviderSummary   `json:"providers"`
		Limits      []core.RateLimitSnapshot `json:"rate_limits"`
		Halted      bool                     `json:"halted"`
	}{snap.Diagnostics, snap.Scheduler, snap.Summaries(), snap.Limits, snap.Halted})
}

func writeScanText(w io.Writer, snap *engine.Snapshot, now time.Time) {
	d := snap.Diagnostics
	fmt.Fprintln(w, d.StatusLine(now))
	if d.ConfigError != "" {
		fmt.Fprintf(w, "config error: %s\n", d.ConfigError)
	}
	if d.StoreError != "" {
		fmt.Fprintf(w, "store error: %s\n", d.StoreError)
	}
	failures := d.Failures()
	kinds := lo.Keys(failures)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %-20s %d\n", kind, failures[kind])
	}
	for _, p := range d.ParseErrorFiles {
		fmt.Fprintf(w, "  parse error: %s\n", p)
	}
	for _, p := range d.UnreadableFiles {
		fmt.Fprintf(w, "  unreadable:  %s\n", p)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tTOKENS\tCOST")
	for _, s := range snap.Summaries() {
		fmt.Fprintf(tw, "%s\t%d\t$%.4f\n", s.Provider, s.TotalTokens, s.TotalCostUSD)
	}
	tw.Flush()

	for _, a := range core.LimitAlerts(snap.Limits, snap.Alerts) {
		fmt.Fprintf(w, "%-9s %5.1f%%  %s\n", a.Label, a.Ratio*100, a.Level)
	}
	if len(d.CostUnestimatedKeys) > 0 {
		fmt.Fprintf(w, "no pricing rule for: %s\n", strings.Join(d.CostUnestimatedKeys, ", "))
	}
}
