// Package export renders usage totals for files and pipes.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

// Columns is the CSV header. The order is part of the output contract.
var Columns = []string{"provider", "model", "input_tokens", "output_tokens", "cost_usd", "entry_count"}

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json or csv)", s)
	}
}

// Row totals one provider, or one provider/model pair.
type Row struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model,omitempty"`
	InputTokens  uint64  `json:"input_tokens"`
	OutputTokens uint64  `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	EntryCount   int     `json:"entry_count"`
	// Unestimated counts entries whose cost is missing from CostUSD.
	Unestimated int `json:"cost_unestimated_entries,omitempty"`
}

type Report struct {
	GeneratedAt  time.Time                `json:"generated_at"`
	BudgetUSD    *float64                 `json:"budget_usd"`
	TotalCostUSD float64                  `json:"total_cost_usd"`
	Providers    []Row                    `json:"providers"`
	Models       []Row                    `json:"models"`
	Limits       []core.RateLimitSnapshot `json:"rate_limits,omitempty"`
}

// Build totals data per provider and per provider/model. Providers follow
// the dashboard order; models are sorted by provider then model.
func Build(data core.UsageData, limits []core.RateLimitSnapshot, now time.Time) Report {
	byProvider := lo.GroupBy(data.Entries, func(e core.UsageEntry) string { return e.Provider })
	providers := lo.Map(core.ProviderNames(data), func(p string, _ int) Row {
		return total(p, "", byProvider[p])
	})

	byModel := lo.GroupBy(data.Entries, func(e core.UsageEntry) string { return e.Key() })
	models := lo.MapToSlice(byModel, func(_ string, entries []core.UsageEntry) Row {
		return total(entries[0].Provider, entries[0].Model, entries)
	})
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Model < models[j].Model
	})

	return Report{
		GeneratedAt:  now.UTC(),
		BudgetUSD:    data.BudgetUSD,
		TotalCostUSD: core.TotalCost(data),
		Providers:    providers,
		Models:       models,
		Limits:       limits,
	}
}

func total(provider, model string, entries []core.UsageEntry) Row {
	return Row{
		Provider:     provider,
		Model:        model,
		InputTokens:  lo.SumBy(entries, func(e core.UsageEntry) uint64 { return e.InputTokens }),
		OutputTokens: lo.SumBy(entries, func(e core.UsageEntry) uint64 { return e.OutputTokens }),
		CostUSD:      lo.SumBy(entries, func(e core.UsageEntry) float64 { return e.Cost() }),
		EntryCount:   len(entries),
		Unestimated:  lo.CountBy(entries, func(e core.UsageEntry) bool { return !e.HasCost() }),
	}
}

func Write(w io.Writer, r Report, format Format) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatCSV:
		return WriteCSV(w, r)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes one row per provider/model pair.
func WriteCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range r.Models {
		record := []string{
			row.Provider,
			row.Model,
			strconv.FormatUint(row.InputTokens, 10),
			strconv.FormatUint(row.OutputTokens, 10),
			strconv.FormatFloat(row.CostUSD, 'f', 6, 64),
			strconv.Itoa(row.EntryCount),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
