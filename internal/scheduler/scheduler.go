// Package scheduler decides when the next ingestion cycle should run. The
// policy is a pure transition function; Scheduler only serializes cycles
// and remembers state. Timers belong to the host.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Mode string

const (
	ModeActive  Mode = "active"
	ModeBackoff Mode = "backoff"
)

type Policy struct {
	Base          time.Duration
	Max           time.Duration
	IdleThreshold int
	Factor        float64
}

func DefaultPolicy() Policy {
	return Policy{
		Base:          10 * time.Second,
		Max:           120 * time.Second,
		IdleThreshold: 3,
		Factor:        2,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.Base <= 0:
		return fmt.Errorf("base interval %s must be positive", p.Base)
	case p.Max < p.Base:
		return fmt.Errorf("max interval %s below base %s", p.Max, p.Base)
	case p.IdleThreshold < 1:
		return fmt.Errorf("idle threshold %d must be at least 1", p.IdleThreshold)
	case p.Factor < 1:
		return fmt.Errorf("backoff factor %g must be at least 1", p.Factor)
	}
	return nil
}

type State struct {
	Mode        Mode          `json:"mode"`
	Interval    time.Duration `json:"interval"`
	IdleCycles  int           `json:"idle_cycles"`
	Cycles      uint64        `json:"cycles"`
	LastCycleAt time.Time     `json:"last_cycle_at,omitempty"`
}

func (p Policy) Initial() State {
	return State{Mode: ModeActive, Interval: p.Base}
}

// Next applies one finished cycle to s. A change resets to Active at the
// base interval. After IdleThreshold consecutive idle cycles the interval
// grows by Factor per further idle cycle, capped at Max.
func (p Policy) Next(s State, changed bool, at time.Time) State {
	s.Cycles++
	s.LastCycleAt = at
	if changed {
		s.Mode = ModeActive
		s.Interval = p.Base
		s.IdleCycles = 0
		return s
	}

	s.IdleCycles++
	if s.IdleCycles < p.IdleThreshold {
		if s.Interval <= 0 {
			s.Interval = p.Base
		}
		return s
	}
	s.Mode = ModeBackoff
	next := time.Duration(float64(s.Interval) * p.Factor)
	if next > p.Max {
		next = p.Max
	}
	s.Interval = next
	return s
}

// Delay is how long to wait after the last cycle as of now.
func (s State) Delay(now time.Time) time.Duration {
	if s.LastCycleAt.IsZero() {
		return 0
	}
	remaining := s.Interval - now.Sub(s.LastCycleAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CycleFunc runs one ingestion cycle and reports whether any source changed.
type CycleFunc func(ctx context.Context) (changed bool, err error)

type Scheduler struct {
	cycleMu sync.Mutex // held for the duration of a cycle

	mu     sync.Mutex
	policy Policy
	state  State
	now    func() time.Time
}

func New(policy Policy) *Scheduler {
	return &Scheduler{policy: policy, state: policy.Initial(), now: time.Now}
}

// SetPolicy swaps the policy after a config reload. The current interval is
// clamped into the new bounds.
func (s *Scheduler) SetPolicy(p Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
	if s.state.Interval < p.Base || s.state.Mode == ModeActive {
		s.state.Interval = p.Base
	}
	if s.state.Interval > p.Max {
		s.state.Interval = p.Max
	}
}

// RunCycle runs fn, waiting for any cycle already in flight, then advances
// the state. A failed cycle counts as idle.
func (s *Scheduler) RunCycle(ctx context.Context, fn CycleFunc) (State, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	changed, err := fn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.policy.Next(s.state, changed && err == nil, s.now())
	return s.state, err
}

// NextDelay is the recommended wait before the next scheduled cycle.
func (s *Scheduler) NextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Delay(s.now())
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
