package pricing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

func mustTable(t *testing.T, rules map[string]Rate) *Table {
	t.Helper()
	table, err := NewTable(rules)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return table
}

func TestLookupPrecedence(t *testing.T) {
	table := mustTable(t, map[string]Rate{
		"anthropic/claude-3.7-sonnet": {InputPerMillionUSD: 3, OutputPerMillionUSD: 15},
		"Anthropic/*":                 {InputPerMillionUSD: 1, OutputPerMillionUSD: 2},
	})

	if r, ok := table.Lookup("anthropic", "claude-3.7-sonnet"); !ok || r.InputPerMillionUSD != 3 {
		t.Fatalf("exact lookup = %+v, %v", r, ok)
	}
	if r, ok := table.Lookup("anthropic", "claude-x"); !ok || r.OutputPerMillionUSD != 2 {
		t.Fatalf("wildcard lookup = %+v, %v", r, ok)
	}
	if _, ok := table.Lookup("openai", "gpt"); ok {
		t.Fatal("expected no rule for openai")
	}
}

func TestEstimate(t *testing.T) {
	table := mustTable(t, map[string]Rate{
		"openai/gpt-4.1-mini": {InputPerMillionUSD: 0.40, OutputPerMillionUSD: 1.60},
		"anthropic/*":         {InputPerMillionUSD: 3, OutputPerMillionUSD: 15},
	})
	ts := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	entries := []core.UsageEntry{
		{Timestamp: ts, Provider: "openai", Model: "gpt-4.1-mini", InputTokens: 1_000_000, OutputTokens: 500_000},
		{Timestamp: ts, Provider: "anthropic", Model: "claude-x", InputTokens: 2000, OutputTokens: 1000},
		{Timestamp: ts, Provider: "gemini", Model: "flash", InputTokens: 10, OutputTokens: 10},
		{Timestamp: ts, Provider: "openai", Model: "gpt-4.1-mini", InputTokens: 1, CostUSD: core.Float64Ptr(9)},
	}

	got, outcome := table.Estimate(entries)
	if outcome.Estimated != 2 || outcome.Unresolved != 1 {
		t.Fatalf("outcome = %+v, want 2 estimated, 1 unresolved", outcome)
	}
	if math.Abs(got[0].Cost()-1.2) > 1e-9 {
		t.Errorf("openai cost = %f, want 1.2", got[0].Cost())
	}
	if math.Abs(got[1].Cost()-0.021) > 1e-12 {
		t.Errorf("anthropic wildcard cost = %f, want 0.021", got[1].Cost())
	}
	if got[2].HasCost() {
		t.Errorf("unresolved entry got cost %f, want unset", got[2].Cost())
	}
	if got[3].Cost() != 9 {
		t.Errorf("existing cost overwritten: %f", got[3].Cost())
	}
	if entries[0].HasCost() {
		t.Error("Estimate modified its input")
	}
	if !errors.Is(outcome.Err(), core.ErrPricingUnresolved) {
		t.Errorf("outcome.Err() = %v, want ErrPricingUnresolved", outcome.Err())
	}
	if len(outcome.UnresolvedKeys) != 1 || outcome.UnresolvedKeys[0] != "gemini/flash" {
		t.Errorf("unresolved keys = %v", outcome.UnresolvedKeys)
	}
}

func TestNewTableRejectsBadRules(t *testing.T) {
	tests := []map[string]Rate{
		{"openai": {}},
		{"/gpt": {}},
		{"openai/": {}},
		{"openai/gpt": {InputPerMillionUSD: -1}},
		{"openai/gpt": {OutputPerMillionUSD: math.Inf(1)}},
	}
	for _, rules := range tests {
		if _, err := NewTable(rules); err == nil {
			t.Errorf("NewTable(%v) = nil error, want failure", rules)
		}
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	got, outcome := table.Estimate([]core.UsageEntry{{Provider: "a", Model: "b"}})
	if got[0].HasCost() || outcome.Unresolved != 1 {
		t.Fatalf("nil table estimate = %+v / %+v", got, outcome)
	}
}
