package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestComputeGauges(t *testing.T) {
	data := UsageData{
		BudgetUSD: Float64Ptr(10),
		Entries: []UsageEntry{
			entry("openai", 800, 200, Float64Ptr(9)),
			entry("gemini", 250, 250, Float64Ptr(3)),
			entry("gemini", 0, 0, Float64Ptr(0)),
			entry("gemini", 0, 0, Float64Ptr(0)),
		},
	}

	g := ComputeGauges(data, "openai")
	if diff := g.Fuel - 0.1; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Fuel = %f, want 0.1", g.Fuel)
	}
	if g.RPM != 1 || g.Throttle != 1 {
		t.Errorf("RPM/Throttle = %f/%f, want 1/1", g.RPM, g.Throttle)
	}
	if g.Traffic != 0.25 {
		t.Errorf("Traffic = %f, want 0.25", g.Traffic)
	}

	alerts := GaugeAlerts(g, DefaultAlertThresholds())
	wantLevels := []AlertLevel{AlertAlert, AlertAlert, AlertAlert, AlertNominal}
	for i, want := range wantLevels {
		if alerts[i].Level != want {
			t.Errorf("%s level = %s, want %s", alerts[i].Label, alerts[i].Level, want)
		}
	}

	gem := ComputeGauges(data, "gemini")
	if gem.Traffic != 0.75 {
		t.Errorf("gemini Traffic = %f, want 0.75", gem.Traffic)
	}
	if lvl := GaugeAlerts(gem, DefaultAlertThresholds())[3].Level; lvl != AlertWatch {
		t.Errorf("gemini TRAFFIC JAM = %s, want WATCH", lvl)
	}
}

func TestComputeGaugesWithoutBudget(t *testing.T) {
	data := UsageData{Entries: []UsageEntry{entry("openai", 1, 1, Float64Ptr(100))}}
	if g := ComputeGauges(data, "openai"); g.Fuel != 1 {
		t.Fatalf("Fuel = %f, want 1 when no budget", g.Fuel)
	}
	if g := ComputeGauges(data, "nobody"); g.Fuel != 1 || g.RPM != 0 {
		t.Fatalf("unknown provider gauges = %+v", g)
	}
}

func TestLimitAlerts(t *testing.T) {
	limits := []RateLimitSnapshot{
		{Window: WindowFiveHour, UsedFraction: Float64Ptr(0.8)},
		{Window: WindowWeekly, UsedFraction: nil},
	}
	got := LimitAlerts(limits, DefaultAlertThresholds())
	if got[0].Level != AlertWatch {
		t.Errorf("5h level = %s, want WATCH", got[0].Level)
	}
	if got[1].Level != AlertUnavailable {
		t.Errorf("weekly level = %s, want UNAVAILABLE", got[1].Level)
	}

	got = LimitAlerts([]RateLimitSnapshot{{Window: WindowWeekly, UsedFraction: Float64Ptr(0.95)}}, DefaultAlertThresholds())
	if got[0].Level != AlertUnavailable || got[1].Level != AlertAlert {
		t.Errorf("levels = %s/%s, want UNAVAILABLE/ALERT", got[0].Level, got[1].Level)
	}
}

func TestFreshnessOf(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		age  time.Duration
		want Freshness
	}{
		{0, FreshnessLive},
		{30*time.Second + 500*time.Millisecond, FreshnessLive},
		{31 * time.Second, FreshnessStale},
		{120 * time.Second, FreshnessStale},
		{121 * time.Second, FreshnessOld},
		{-5 * time.Second, FreshnessLive},
	}
	for _, tt := range tests {
		if got := FreshnessOf(now.Add(-tt.age), now); got != tt.want {
			t.Errorf("FreshnessOf(age %s) = %s, want %s", tt.age, got, tt.want)
		}
	}
	if got := FreshnessOf(time.Time{}, now); got != FreshnessUnknown {
		t.Errorf("FreshnessOf(zero) = %s, want UNKNOWN", got)
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{nil, FailureNone},
		{fmt.Errorf("open x: %w", ErrUnreadable), FailureUnreadable},
		{fmt.Errorf("line 3: %w", ErrMalformed), FailureMalformed},
		{errors.Join(errors.New("a"), ErrConfigInvalid), FailureConfigInvalid},
		{ErrPricingUnresolved, FailurePricingUnresolved},
		{ErrIncomplete, FailureIncomplete},
	}
	for _, tt := range tests {
		if got := ClassifyFailure(tt.err); got != tt.want {
			t.Errorf("ClassifyFailure(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
	if !FailureConfigInvalid.Fatal() || FailureMalformed.Fatal() {
		t.Error("only config_invalid should be fatal")
	}
}
