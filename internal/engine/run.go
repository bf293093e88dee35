package engine

import (
	"context"
	"errors"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

// SnapshotHandler receives every published snapshot.
type SnapshotHandler func(*Snapshot)

// Reload requests an immediate cycle. Requests made while one is pending
// collapse into it.
func (e *Engine) Reload() {
	select {
	case e.reload <- struct{}{}:
	default:
	}
}

// Run drives cycles until ctx is done: one immediately, then whenever the
// scheduler's delay elapses, Reload is called, or a hint arrives on
// triggers. Hints are rate limited since a busy session tree can emit
// events continuously; explicit reloads are not.
func (e *Engine) Run(ctx context.Context, triggers <-chan struct{}, handler SnapshotHandler) error {
	limiter := rate.NewLimiter(rate.Every(2*time.Second), 1)

	runOnce := func() error {
		snap, err := e.RunCycle(ctx)
		if err != nil && !errors.Is(err, core.ErrConfigInvalid) {
			return err
		}
		if snap != nil && handler != nil {
			handler(snap)
		}
		return nil
	}

	if err := runOnce(); err != nil {
		return err
	}

	timer := time.NewTimer(e.NextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-e.reload:
		case _, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			log.Debug("engine: change hint")
		}

		if err := runOnce(); err != nil {
			return err
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(e.NextDelay())
	}
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
