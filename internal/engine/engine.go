// Package engine runs ingestion cycles: reload config, read the usage
// store, import codex sessions, estimate cost, and publish one immutable
// Snapshot per cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/janekbaraniewski/promptpetrol/internal/codex"
	"github.com/janekbaraniewski/promptpetrol/internal/config"
	"github.com/janekbaraniewski/promptpetrol/internal/core"
	"github.com/janekbaraniewski/promptpetrol/internal/diagnostics"
	"github.com/janekbaraniewski/promptpetrol/internal/pricing"
	"github.com/janekbaraniewski/promptpetrol/internal/scheduler"
	"github.com/janekbaraniewski/promptpetrol/internal/usagestore"
)

type Paths struct {
	Config string
	Data   string
}

// Snapshot is everything the presentation layer needs after one cycle.
// It is never modified after publication.
type Snapshot struct {
	Seq         uint64
	CycleID     string
	At          time.Time
	Data        core.UsageData
	Limits      []core.RateLimitSnapshot
	Diagnostics diagnostics.Snapshot
	Scheduler   scheduler.State
	Alerts      core.AlertThresholds

	// Halted is set while the config is invalid; Data and Limits are then
	// carried over from the last good cycle.
	Halted bool
}

func (s *Snapshot) Summaries() []core.ProviderSummary {
	if s == nil {
		return nil
	}
	return core.ProviderSummaries(s.Data)
}

type Engine struct {
	paths    Paths
	importer *codex.Importer
	sched    *scheduler.Scheduler
	diag     *diagnostics.Aggregator
	now      func() time.Time

	cfg  atomic.Pointer[config.Config]
	snap atomic.Pointer[Snapshot]

	reload chan struct{}

	// Owned by the cycle in flight; cycles are serialized by the scheduler.
	seq           uint64
	store         core.UsageData
	storeMod      time.Time
	cfgMod        time.Time
	table         *pricing.Table
	importEnabled bool
}

type Option func(*Engine)

func WithIndex(idx codex.CursorIndex) Option {
	return func(e *Engine) { e.importer = codex.NewImporter(codex.WithIndex(idx)) }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(paths Paths, opts ...Option) *Engine {
	e := &Engine{
		paths:    paths,
		importer: codex.NewImporter(),
		sched:    scheduler.New(scheduler.DefaultPolicy()),
		diag:     diagnostics.NewAggregator(),
		now:      time.Now,
		reload:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns the latest published snapshot, or nil before the first
// cycle completes.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// Config returns the last valid config, or nil.
func (e *Engine) Config() *config.Config {
	return e.cfg.Load()
}

// NextDelay is the scheduler's recommended wait before the next cycle.
func (e *Engine) NextDelay() time.Duration {
	return e.sched.NextDelay()
}

// RunCycle runs one cycle, waiting for any cycle already in flight. The
// returned error is non-nil only for an invalid config or cancellation;
// per-file and per-entry failures land in the snapshot's diagnostics.
func (e *Engine) RunCycle(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	state, err := e.sched.RunCycle(ctx, func(ctx context.Context) (bool, error) {
		var changed bool
		var cycleErr error
		snap, changed, cycleErr = e.cycle(ctx)
		return changed, cycleErr
	})
	if snap == nil {
		return e.Snapshot(), err
	}
	snap.Scheduler = state
	e.publish(snap)

	entry := log.WithField("cycle_id", snap.CycleID).
		WithField("interval", state.Interval).
		WithField("mode", state.Mode)
	if err != nil {
		entry.WithError(err).Error("engine: cycle halted")
	} else {
		entry.WithField("files_refreshed", snap.Diagnostics.FilesRefreshed).
			WithField("entries", len(snap.Data.Entries)).
			Info("engine: cycle complete")
	}
	return snap, err
}

func (e *Engine) publish(snap *Snapshot) {
	for {
		cur := e.snap.Load()
		if cur != nil && cur.Seq >= snap.Seq {
			return
		}
		if e.snap.CompareAndSwap(cur, snap) {
			return
		}
	}
}

func (e *Engine) cycle(ctx context.Context) (*Snapshot, bool, error) {
	e.seq++
	id := uuid.NewString()
	e.diag.Begin(id)
	prev := e.snap.Load()

	cfg, table, changed, err := e.loadConfig()
	if err != nil {
		e.diag.RecordConfigError(err)
		if errors.Is(err, core.ErrConfigInvalid) {
			snap := e.carryOver(prev, id)
			snap.Diagnostics = e.diag.Finish()
			return snap, false, err
		}
		log.WithError(err).Warn("engine: config unreadable, keeping last good config")
	}

	if e.loadStore() {
		changed = true
	}

	var imported codex.Result
	if cfg.CodexImport.Enabled {
		start := e.now()
		imported, err = e.importer.Import(ctx, codex.Options{
			Root:         cfg.ResolveSessionsDir(),
			DefaultModel: cfg.CodexImport.Model,
		})
		if err != nil {
			e.diag.Finish()
			return nil, false, err
		}
		e.diag.RecordImport(imported.Report, e.now().Sub(start))
		if imported.Report.Changed {
			changed = true
		}
	}
	if cfg.CodexImport.Enabled != e.importEnabled {
		e.importEnabled = cfg.CodexImport.Enabled
		changed = true
	}

	entries := make([]core.UsageEntry, 0, len(e.store.Entries)+len(imported.Entries))
	entries = append(entries, e.store.Entries...)
	entries = append(entries, imported.Entries...)
	core.SortEntries(entries)

	priced, outcome := table.Estimate(entries)
	e.diag.RecordEntries(priced)
	e.diag.RecordPricing(outcome)
	if err := outcome.Err(); err != nil {
		log.WithField("cycle_id", id).WithError(err).Debug("engine: cost not estimated")
	}

	return &Snapshot{
		Seq:         e.seq,
		CycleID:     id,
		At:          e.now(),
		Data:        core.UsageData{BudgetUSD: e.store.BudgetUSD, Entries: priced},
		Limits:      core.LatestLimits(imported.Limits),
		Diagnostics: e.diag.Finish(),
		Alerts:      cfg.Alerts,
	}, changed, nil
}

// loadConfig reloads the config file and builds its pricing table. A read
// error falls back to the last good config (or defaults); an invalid config
// is returned as an error.
func (e *Engine) loadConfig() (config.Config, *pricing.Table, bool, error) {
	mod := modTime(e.paths.Config)
	cfg, err := config.LoadFrom(e.paths.Config)
	if err != nil {
		if errors.Is(err, core.ErrConfigInvalid) {
			return cfg, nil, false, err
		}
		if last := e.cfg.Load(); last != nil && e.table != nil {
			return *last, e.table, false, err
		}
		def := config.DefaultConfig()
		table, terr := def.PricingTable()
		if terr != nil {
			return def, nil, false, fmt.Errorf("%w: default pricing: %w", core.ErrConfigInvalid, terr)
		}
		return def, table, false, err
	}

	table, err := cfg.PricingTable()
	if err != nil {
		return cfg, nil, false, fmt.Errorf("%w: %w", core.ErrConfigInvalid, err)
	}
	changed := e.cfg.Load() == nil || !mod.Equal(e.cfgMod)
	e.cfgMod = mod
	e.cfg.Store(&cfg)
	e.table = table
	e.sched.SetPolicy(cfg.SchedulerPolicy())
	return cfg, table, changed, nil
}

// loadStore rereads the usage document. On failure the previous entries
// stay in place and the error is recorded.
func (e *Engine) loadStore() bool {
	loaded, err := usagestore.Load(e.paths.Data)
	if err != nil {
		log.WithError(err).WithField("path", e.paths.Data).Warn("engine: usage store not loaded")
		e.diag.RecordStore(0, 0, err)
		return false
	}
	e.diag.RecordStore(loaded.Rejected, loaded.Skipped, nil)
	changed := loaded.Bootstrapped || !loaded.Modified.Equal(e.storeMod) || e.storeMod.IsZero()
	e.store = loaded.Data
	e.storeMod = loaded.Modified
	return changed
}

func (e *Engine) carryOver(prev *Snapshot, id string) *Snapshot {
	snap := &Snapshot{
		Seq:     e.seq,
		CycleID: id,
		At:      e.now(),
		Halted:  true,
		Alerts:  core.DefaultAlertThresholds(),
	}
	if prev != nil {
		snap.Data = prev.Data
		snap.Limits = prev.Limits
		snap.Alerts = prev.Alerts
	}
	return snap
}
