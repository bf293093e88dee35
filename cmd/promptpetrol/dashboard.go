package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/janekbaraniewski/promptpetrol/internal/config"
	"github.com/janekbaraniewski/promptpetrol/internal/engine"
	"github.com/janekbaraniewski/promptpetrol/internal/index"
	"github.com/janekbaraniewski/promptpetrol/internal/tui"
	"github.com/janekbaraniewski/promptpetrol/internal/watcher"
)

const indexRetention = 30 * 24 * time.Hour

func runDashboard(parent context.Context, opts *rootOptions) error {
	closer := setupLogging(false)
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, store := newEngine(opts)
	defer closeStore(store)

	model := tui.NewModel()
	model.SetOnRefresh(eng.Reload)
	program := tea.NewProgram(model, tea.WithAltScreen())

	var hints <-chan struct{}
	if w := startWatcher(opts); w != nil {
		defer w.Close()
		hints = w.Hints()
	}

	done := make(chan error, 1)
	go func() {
		done <- eng.Run(ctx, hints, func(s *engine.Snapshot) {
			program.Send(tui.SnapshotMsg{Snapshot: s})
		})
	}()
	go pruneIndex(ctx, store)

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startWatcher watches the sessions root plus the config and data files.
// The root is read from the config at startup; a later sessions_dir change
// is still picked up by polling.
func startWatcher(opts *rootOptions) *watcher.Watcher {
	var roots []string
	if cfg, err := config.LoadFrom(opts.configPath); err == nil && cfg.CodexImport.Enabled {
		roots = append(roots, cfg.ResolveSessionsDir())
	}
	w, err := watcher.New(roots, []string{opts.configPath, opts.dataPath})
	if err != nil {
		log.WithError(err).Warn("watcher: disabled, falling back to polling")
		return nil
	}
	return w
}

func pruneIndex(ctx context.Context, store *index.Store) {
	if store == nil {
		return
	}
	n, err := store.Prune(ctx, indexRetention)
	if err != nil {
		log.WithError(err).Debug("index: prune failed")
		return
	}
	if n > 0 {
		log.WithField("removed", n).Info("index: pruned idle cursors")
	}
}
