package core

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

type ProviderSummary struct {
	Provider     string  `json:"provider"`
	TotalTokens  uint64  `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

type ProviderStats struct {
	Provider     string  `json:"provider"`
	TotalTokens  uint64  `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Requests     int     `json:"requests"`
	Unestimated  int     `json:"unestimated"`
}

// ProviderSummaries groups entries by provider, ordered by cost desc, then
// tokens desc, then provider name. Unestimated costs contribute zero.
func ProviderSummaries(data UsageData) []ProviderSummary {
	grouped := lo.GroupBy(data.Entries, func(e UsageEntry) string { return e.Provider })
	summaries := lo.MapToSlice(grouped, func(provider string, entries []UsageEntry) ProviderSummary {
		return ProviderSummary{
			Provider:     provider,
			TotalTokens:  lo.SumBy(entries, func(e UsageEntry) uint64 { return e.TotalTokens() }),
			TotalCostUSD: lo.SumBy(entries, func(e UsageEntry) float64 { return e.Cost() }),
		}
	})
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.TotalCostUSD != b.TotalCostUSD {
			return a.TotalCostUSD > b.TotalCostUSD
		}
		if a.TotalTokens != b.TotalTokens {
			return a.TotalTokens > b.TotalTokens
		}
		return a.Provider < b.Provider
	})
	return summaries
}

// StatsFor returns aggregate stats for one provider, or false when it has no entries.
func StatsFor(data UsageData, provider string) (ProviderStats, bool) {
	if provider == "" {
		return ProviderStats{}, false
	}
	entries := lo.Filter(data.Entries, func(e UsageEntry, _ int) bool { return e.Provider == provider })
	if len(entries) == 0 {
		return ProviderStats{}, false
	}
	return ProviderStats{
		Provider:     provider,
		TotalTokens:  lo.SumBy(entries, func(e UsageEntry) uint64 { return e.TotalTokens() }),
		TotalCostUSD: lo.SumBy(entries, func(e UsageEntry) float64 { return e.Cost() }),
		Requests:     len(entries),
		Unestimated:  lo.CountBy(entries, func(e UsageEntry) bool { return !e.HasCost() }),
	}, true
}

// ProviderNames lists providers in summary order.
func ProviderNames(data UsageData) []string {
	return lo.Map(ProviderSummaries(data), func(s ProviderSummary, _ int) string { return s.Provider })
}

// TotalCost sums estimated costs across all entries.
func TotalCost(data UsageData) float64 {
	return lo.SumBy(data.Entries, func(e UsageEntry) float64 { return e.Cost() })
}

// DailyCost buckets cost per UTC day over the last days days ending at the
// day containing the newest entry. Used for the spend sparkline.
func DailyCost(data UsageData, provider string, days int) []float64 {
	if days <= 0 || len(data.Entries) == 0 {
		return nil
	}
	latest := lo.MaxBy(data.Entries, func(a, b UsageEntry) bool { return a.Timestamp.After(b.Timestamp) }).Timestamp.UTC()
	end := latest.Truncate(24 * time.Hour)

	out := make([]float64, days)
	for _, e := range data.Entries {
		if provider != "" && e.Provider != provider {
			continue
		}
		day := e.Timestamp.UTC().Truncate(24 * time.Hour)
		offset := int(end.Sub(day) / (24 * time.Hour))
		if offset < 0 || offset >= days {
			continue
		}
		out[days-1-offset] += e.Cost()
	}
	return out
}
