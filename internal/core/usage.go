package core

import (
	"sort"
	"strings"
	"time"
)

type Origin string

const (
	OriginDirect      Origin = "direct"
	OriginCodexImport Origin = "codex_import"
	OriginNormalized  Origin = "normalized" // store entry rebuilt from provider-specific aliases
)

// UnknownIdentity is substituted for a provider or model the source did not declare.
const UnknownIdentity = "unknown"

// UsageEntry is one normalized usage event. Entries are values: helpers that
// change a field return a copy.
type UsageEntry struct {
	Timestamp             time.Time `json:"timestamp"`
	Provider              string    `json:"provider"`
	Model                 string    `json:"model"`
	InputTokens           uint64    `json:"input_tokens"`
	OutputTokens          uint64    `json:"output_tokens"`
	CachedInputTokens     *uint64   `json:"cached_input_tokens,omitempty"`
	ReasoningOutputTokens *uint64   `json:"reasoning_output_tokens,omitempty"`
	CostUSD               *float64  `json:"cost_usd,omitempty"`
	Origin                Origin    `json:"source_origin,omitempty"`
	FallbackIdentity      bool      `json:"raw_identity_fallback,omitempty"`

	// SourcePath is the session file an imported entry came from.
	SourcePath string `json:"-"`
}

func (e UsageEntry) TotalTokens() uint64 {
	return e.InputTokens + e.OutputTokens
}

func (e UsageEntry) HasCost() bool {
	return e.CostUSD != nil
}

// Cost returns the entry cost, or zero when it was never estimated.
func (e UsageEntry) Cost() float64 {
	if e.CostUSD == nil {
		return 0
	}
	return *e.CostUSD
}

func (e UsageEntry) WithCost(cost float64) UsageEntry {
	e.CostUSD = Float64Ptr(cost)
	return e
}

// Key identifies the pricing rule an entry resolves against.
func (e UsageEntry) Key() string {
	return e.Provider + "/" + e.Model
}

// UsageData is the merged record set handed to the presentation layer.
type UsageData struct {
	BudgetUSD *float64     `json:"budget_usd"`
	Entries   []UsageEntry `json:"entries"`
}

func (d UsageData) Budget() (float64, bool) {
	if d.BudgetUSD == nil {
		return 0, false
	}
	return *d.BudgetUSD, true
}

// SortEntries orders entries by timestamp, then provider and model so that
// merged output does not depend on the order sources were read in.
func SortEntries(entries []UsageEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		return a.SourcePath < b.SourcePath
	})
}

// NormalizeProvider lower-cases and trims a provider id.
func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func Uint64Ptr(v uint64) *uint64 {
	vv := v
	return &vv
}

func Float64Ptr(v float64) *float64 {
	vv := v
	return &vv
}
