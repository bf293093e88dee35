package core

import (
	"time"
)

type AlertLevel string

const (
	AlertNominal     AlertLevel = "NOMINAL"
	AlertWatch       AlertLevel = "WATCH"
	AlertAlert       AlertLevel = "ALERT"
	AlertUnavailable AlertLevel = "UNAVAILABLE"
)

type AlertThresholds struct {
	LowFuel    float64 `json:"low_fuel" yaml:"low_fuel"`
	HighRPM    float64 `json:"high_rpm" yaml:"high_rpm"`
	Overburn   float64 `json:"overburn" yaml:"overburn"`
	TrafficJam float64 `json:"traffic_jam" yaml:"traffic_jam"`
	LimitWatch float64 `json:"limit_watch" yaml:"limit_watch"`
	LimitAlert float64 `json:"limit_alert" yaml:"limit_alert"`
}

func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		LowFuel:    0.20,
		HighRPM:    0.85,
		Overburn:   0.85,
		TrafficJam: 0.90,
		LimitWatch: 0.75,
		LimitAlert: 0.90,
	}
}

const (
	fuelHealthyAt  = 0.35
	loadHealthyMax = 0.70
)

// Gauges are the four dashboard ratios for one provider, each in [0,1].
type Gauges struct {
	Fuel     float64 // budget left
	RPM      float64 // tokens relative to the busiest provider
	Throttle float64 // cost relative to the most expensive provider
	Traffic  float64 // share of all requests
}

// ComputeGauges derives the gauge ratios for provider. An unknown provider
// yields zero load and a full tank.
func ComputeGauges(data UsageData, provider string) Gauges {
	stats, ok := StatsFor(data, provider)
	if !ok {
		return Gauges{Fuel: 1}
	}

	var maxTokens uint64
	var maxCost float64
	for _, s := range ProviderSummaries(data) {
		if s.TotalTokens > maxTokens {
			maxTokens = s.TotalTokens
		}
		if s.TotalCostUSD > maxCost {
			maxCost = s.TotalCostUSD
		}
	}

	g := Gauges{}
	budgetUsed := 0.0
	if budget, ok := data.Budget(); ok && budget > 0 {
		budgetUsed = clamp01(stats.TotalCostUSD / budget)
	}
	g.Fuel = clamp01(1 - budgetUsed)
	if maxTokens > 0 {
		g.RPM = clamp01(float64(stats.TotalTokens) / float64(maxTokens))
	}
	if maxCost > 0 {
		g.Throttle = clamp01(stats.TotalCostUSD / maxCost)
	}
	if n := len(data.Entries); n > 0 {
		g.Traffic = clamp01(float64(stats.Requests) / float64(n))
	}
	return g
}

type Alert struct {
	Label string
	Level AlertLevel
	Ratio float64
}

// GaugeAlerts evaluates the four gauge alerts in display order.
func GaugeAlerts(g Gauges, t AlertThresholds) []Alert {
	return []Alert{
		gaugeAlert("LOW FUEL", g.Fuel, g.Fuel <= t.LowFuel, g.Fuel >= fuelHealthyAt),
		gaugeAlert("HIGH RPM", g.RPM, g.RPM >= t.HighRPM, g.RPM <= loadHealthyMax),
		gaugeAlert("OVERBURN", g.Throttle, g.Throttle >= t.Overburn, g.Throttle <= loadHealthyMax),
		gaugeAlert("TRAFFIC JAM", g.Traffic, g.Traffic >= t.TrafficJam, g.Traffic <= loadHealthyMax),
	}
}

func gaugeAlert(label string, ratio float64, alert, healthy bool) Alert {
	level := AlertWatch
	switch {
	case alert:
		level = AlertAlert
	case healthy:
		level = AlertNominal
	}
	return Alert{Label: label, Level: level, Ratio: ratio}
}

// LimitAlerts evaluates each usage window. A missing window or unknown
// fraction is reported as unavailable.
func LimitAlerts(limits []RateLimitSnapshot, t AlertThresholds) []Alert {
	out := make([]Alert, 0, 2)
	for _, w := range []Window{WindowFiveHour, WindowWeekly} {
		a := Alert{Label: w.Label(), Level: AlertUnavailable}
		if snap, ok := LimitFor(limits, w); ok && snap.UsedFraction != nil {
			a.Ratio = *snap.UsedFraction
			switch {
			case a.Ratio >= t.LimitAlert:
				a.Level = AlertAlert
			case a.Ratio >= t.LimitWatch:
				a.Level = AlertWatch
			default:
				a.Level = AlertNominal
			}
		}
		out = append(out, a)
	}
	return out
}

type Freshness string

const (
	FreshnessLive    Freshness = "LIVE"
	FreshnessStale   Freshness = "STALE"
	FreshnessOld     Freshness = "OLD"
	FreshnessUnknown Freshness = "UNKNOWN"
)

const (
	liveMaxAge  = 30 * time.Second
	staleMaxAge = 120 * time.Second
)

// FreshnessOf classifies the age of the last import. A zero lastImport
// means no import has completed yet.
func FreshnessOf(lastImport, now time.Time) Freshness {
	if lastImport.IsZero() {
		return FreshnessUnknown
	}
	age := now.Sub(lastImport).Truncate(time.Second)
	if age < 0 {
		age = 0
	}
	switch {
	case age <= liveMaxAge:
		return FreshnessLive
	case age <= staleMaxAge:
		return FreshnessStale
	default:
		return FreshnessOld
	}
}
