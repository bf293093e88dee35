package core

import (
	"sort"
	"time"
)

type Window string

const (
	WindowFiveHour Window = "five_hour"
	WindowWeekly   Window = "weekly"
)

const (
	fiveHourWindowMinutes = 300
	weeklyWindowMinutes   = 10080
)

func (w Window) Label() string {
	switch w {
	case WindowFiveHour:
		return "5H LIMIT"
	case WindowWeekly:
		return "WEEKLY"
	default:
		return string(w)
	}
}

// ClassifyWindow maps a window length to its usage window. slot is the
// position the reading occupied in the source ("primary" or "secondary") and
// decides when the length is missing or unfamiliar.
func ClassifyWindow(windowMinutes int, slot string) Window {
	switch windowMinutes {
	case fiveHourWindowMinutes:
		return WindowFiveHour
	case weeklyWindowMinutes:
		return WindowWeekly
	}
	if slot == "secondary" {
		return WindowWeekly
	}
	return WindowFiveHour
}

// RateLimitSnapshot is a point-in-time reading of one usage window.
type RateLimitSnapshot struct {
	Window        Window     `json:"window"`
	UsedFraction  *float64   `json:"used_fraction,omitempty"` // nil when unknown
	WindowMinutes int        `json:"window_minutes,omitempty"`
	ResetsAt      *time.Time `json:"resets_at,omitempty"`
	CapturedAt    time.Time  `json:"captured_at"`
	Provider      string     `json:"provider"`
	Model         string     `json:"model"`

	SourcePath     string    `json:"-"`
	SourceModified time.Time `json:"-"`
}

// UsedPercent returns the used fraction as a percentage, or -1 when unknown.
func (s RateLimitSnapshot) UsedPercent() float64 {
	if s.UsedFraction == nil {
		return -1
	}
	return *s.UsedFraction * 100
}

// FractionFromPercent converts a 0-100 reading into a clamped fraction.
func FractionFromPercent(percent float64) float64 {
	return clamp01(percent / 100)
}

// LatestLimits keeps one snapshot per window: the one from the most recently
// modified source, then the latest capture time. Output is ordered by window.
func LatestLimits(snaps []RateLimitSnapshot) []RateLimitSnapshot {
	best := make(map[Window]RateLimitSnapshot, 2)
	for _, snap := range snaps {
		current, ok := best[snap.Window]
		if !ok || newerSnapshot(snap, current) {
			best[snap.Window] = snap
		}
	}

	out := make([]RateLimitSnapshot, 0, len(best))
	for _, snap := range best {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return windowOrder(out[i].Window) < windowOrder(out[j].Window) })
	return out
}

// LimitFor returns the snapshot for window, if present.
func LimitFor(snaps []RateLimitSnapshot, window Window) (RateLimitSnapshot, bool) {
	for _, snap := range snaps {
		if snap.Window == window {
			return snap, true
		}
	}
	return RateLimitSnapshot{}, false
}

func newerSnapshot(a, b RateLimitSnapshot) bool {
	if !a.SourceModified.Equal(b.SourceModified) {
		return a.SourceModified.After(b.SourceModified)
	}
	if !a.CapturedAt.Equal(b.CapturedAt) {
		return a.CapturedAt.After(b.CapturedAt)
	}
	return a.SourcePath > b.SourcePath
}

func windowOrder(w Window) int {
	switch w {
	case WindowFiveHour:
		return 0
	case WindowWeekly:
		return 1
	default:
		return 2
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
