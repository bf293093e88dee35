package core

import (
	"math"
	"testing"
	"time"
)

func entry(provider string, in, out uint64, cost *float64) UsageEntry {
	return UsageEntry{
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Provider:     provider,
		Model:        "m",
		InputTokens:  in,
		OutputTokens: out,
		CostUSD:      cost,
	}
}

func TestProviderSummariesOrdering(t *testing.T) {
	data := UsageData{Entries: []UsageEntry{
		entry("gemini", 100, 0, Float64Ptr(0.5)),
		entry("openai", 500, 500, Float64Ptr(1.0)),
		entry("anthropic", 200, 0, Float64Ptr(0.5)),
		entry("codex", 9000, 0, nil),
		entry("openai", 10, 10, Float64Ptr(0.25)),
	}}

	got := ProviderSummaries(data)
	want := []string{"openai", "anthropic", "gemini", "codex"}
	if len(got) != len(want) {
		t.Fatalf("len(summaries) = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Provider != name {
			t.Fatalf("summaries[%d].Provider = %q, want %q", i, got[i].Provider, name)
		}
	}
	if got[0].TotalTokens != 1020 {
		t.Errorf("openai tokens = %d, want 1020", got[0].TotalTokens)
	}
	if math.Abs(got[0].TotalCostUSD-1.25) > 1e-9 {
		t.Errorf("openai cost = %f, want 1.25", got[0].TotalCostUSD)
	}
	if got[3].TotalCostUSD != 0 {
		t.Errorf("unestimated cost = %f, want 0", got[3].TotalCostUSD)
	}
}

func TestStatsFor(t *testing.T) {
	data := UsageData{Entries: []UsageEntry{
		entry("openai", 100, 50, Float64Ptr(0.1)),
		entry("openai", 10, 5, nil),
		entry("gemini", 1, 1, Float64Ptr(0.01)),
	}}

	stats, ok := StatsFor(data, "openai")
	if !ok {
		t.Fatal("expected stats for openai")
	}
	if stats.Requests != 2 || stats.TotalTokens != 165 || stats.Unestimated != 1 {
		t.Fatalf("stats = %+v, want requests=2 tokens=165 unestimated=1", stats)
	}
	if _, ok := StatsFor(data, "missing"); ok {
		t.Fatal("expected no stats for unknown provider")
	}
	if _, ok := StatsFor(data, ""); ok {
		t.Fatal("expected no stats for empty provider")
	}
}

func TestDailyCost(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 9, 0, 0, 0, time.UTC) }
	data := UsageData{Entries: []UsageEntry{
		{Timestamp: day(1), Provider: "openai", CostUSD: Float64Ptr(1)},
		{Timestamp: day(3), Provider: "openai", CostUSD: Float64Ptr(2)},
		{Timestamp: day(3), Provider: "gemini", CostUSD: Float64Ptr(4)},
		{Timestamp: day(4), Provider: "openai", CostUSD: Float64Ptr(3)},
	}}

	got := DailyCost(data, "openai", 3)
	want := []float64{0, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("DailyCost = %v, want %v", got, want)
		}
	}

	all := DailyCost(data, "", 4)
	if all[0] != 1 || all[2] != 6 {
		t.Fatalf("DailyCost(all) = %v, want [1 0 6 3]", all)
	}
}
