// Package diagnostics collects per-cycle ingestion health into a read-only
// snapshot. Each cycle starts from scratch; only the previous snapshot's
// import time is carried forward for freshness.
package diagnostics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/janekbaraniewski/promptpetrol/internal/codex"
	"github.com/janekbaraniewski/promptpetrol/internal/core"
	"github.com/janekbaraniewski/promptpetrol/internal/pricing"
)

type Snapshot struct {
	CycleID string `json:"cycle_id"`

	FilesDiscovered  int           `json:"files_discovered"`
	FilesRefreshed   int           `json:"files_refreshed"`
	ParseErrorFiles  []string      `json:"parse_error_files"`
	NoUsageFiles     []string      `json:"no_usage_or_limits_files"`
	UnreadableFiles  []string      `json:"unreadable_files"`
	UnreadableDirs   int           `json:"unreadable_dirs"`
	BytesRead        int64         `json:"bytes_read"`
	ImportEnabled    bool          `json:"import_enabled"`
	LastImportAt     time.Time     `json:"last_import_at,omitempty"`
	PreviousImportAt time.Time     `json:"previous_import_at,omitempty"`
	ScanDuration     time.Duration `json:"scan_duration"`

	FallbackIdentityEntries int      `json:"entries_using_fallback_identity"`
	CostUnestimatedEntries  int      `json:"cost_unestimated_entries"`
	CostUnestimatedKeys     []string `json:"cost_unestimated_keys,omitempty"`
	RejectedEntries         int      `json:"rejected_entries"`
	SkippedEntries          int      `json:"skipped_entries"`

	StoreError  string `json:"store_error,omitempty"`
	ConfigError string `json:"config_error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Failures counts the distinct failure categories present in the snapshot.
func (s Snapshot) Failures() map[core.FailureKind]int {
	out := map[core.FailureKind]int{}
	if n := len(s.UnreadableFiles) + s.UnreadableDirs; n > 0 {
		out[core.FailureUnreadable] = n
	}
	if n := len(s.ParseErrorFiles) + s.RejectedEntries; n > 0 {
		out[core.FailureMalformed] = n
	}
	if s.FallbackIdentityEntries > 0 {
		out[core.FailureIncomplete] = s.FallbackIdentityEntries
	}
	if s.CostUnestimatedEntries > 0 {
		out[core.FailurePricingUnresolved] = s.CostUnestimatedEntries
	}
	if s.ConfigError != "" {
		out[core.FailureConfigInvalid] = 1
	}
	return out
}

// StatusLine renders the one-line import summary shown under the dashboard.
func (s Snapshot) StatusLine(now time.Time) string {
	if !s.ImportEnabled {
		return "Codex import disabled"
	}
	updated := "never"
	if !s.LastImportAt.IsZero() {
		updated = fmt.Sprintf("%ds", int(now.Sub(s.LastImportAt).Seconds()))
	}
	return fmt.Sprintf("Codex import files:%d refreshed:%d parse_fail:%d scan:%ds updated:%s",
		s.FilesDiscovered, s.FilesRefreshed, len(s.ParseErrorFiles), int(s.ScanDuration.Seconds()), updated)
}

func (s Snapshot) Freshness(now time.Time) core.Freshness {
	return core.FreshnessOf(s.LastImportAt, now)
}

// Aggregator builds one Snapshot per cycle. Begin resets it; Finish
// publishes. Recording outside a cycle is a no-op.
type Aggregator struct {
	mu       sync.Mutex
	current  *Snapshot
	previous Snapshot
	now      func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

func (a *Aggregator) Begin(cycleID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = &Snapshot{
		CycleID:          cycleID,
		StartedAt:        a.now(),
		LastImportAt:     a.previous.LastImportAt,
		PreviousImportAt: a.previous.LastImportAt,
	}
}

func (a *Aggregator) RecordImport(r codex.Report, scan time.Duration) {
	a.update(func(s *Snapshot) {
		s.ImportEnabled = true
		s.FilesDiscovered = r.FilesDiscovered
		s.FilesRefreshed = r.FilesRefreshed
		s.ParseErrorFiles = sortedCopy(r.ParseErrorFiles)
		s.NoUsageFiles = sortedCopy(r.NoUsageFiles)
		s.UnreadableFiles = sortedCopy(r.UnreadableFiles)
		s.UnreadableDirs = r.UnreadableDirs
		s.BytesRead = r.BytesRead
		s.ScanDuration = scan
		s.LastImportAt = a.now()
	})
}

// RecordEntries counts fallback identities across the merged entry set.
func (a *Aggregator) RecordEntries(entries []core.UsageEntry) {
	a.update(func(s *Snapshot) {
		s.FallbackIdentityEntries = 0
		for _, e := range entries {
			if e.FallbackIdentity {
				s.FallbackIdentityEntries++
			}
		}
	})
}

func (a *Aggregator) RecordPricing(o pricing.Outcome) {
	a.update(func(s *Snapshot) {
		s.CostUnestimatedEntries = o.Unresolved
		s.CostUnestimatedKeys = append([]string(nil), o.UnresolvedKeys...)
	})
}

func (a *Aggregator) RecordStore(rejected, skipped int, err error) {
	a.update(func(s *Snapshot) {
		s.RejectedEntries = rejected
		s.SkippedEntries = skipped
		if err != nil {
			s.StoreError = err.Error()
		}
	})
}

func (a *Aggregator) RecordConfigError(err error) {
	a.update(func(s *Snapshot) {
		if err != nil {
			s.ConfigError = err.Error()
		}
	})
}

// Finish seals the cycle and returns its snapshot.
func (a *Aggregator) Finish() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return a.previous
	}
	a.current.FinishedAt = a.now()
	snap := *a.current
	a.previous = snap
	a.current = nil
	return snap
}

// Last returns the most recently finished snapshot.
func (a *Aggregator) Last() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.previous
}

func (a *Aggregator) update(fn func(*Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return
	}
	fn(a.current)
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
