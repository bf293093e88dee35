package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

const wildcardModel = "*"

type Rate struct {
	InputPerMillionUSD  float64 `json:"input_per_million_usd" yaml:"input_per_million_usd"`
	OutputPerMillionUSD float64 `json:"output_per_million_usd" yaml:"output_per_million_usd"`
}

// Cost prices a token pair at this rate.
func (r Rate) Cost(inputTokens, outputTokens uint64) float64 {
	return float64(inputTokens)/1_000_000*r.InputPerMillionUSD +
		float64(outputTokens)/1_000_000*r.OutputPerMillionUSD
}

// Table is an immutable set of pricing rules keyed "provider/model" or
// "provider/*".
type Table struct {
	rules map[string]Rate
}

// NewTable builds a table from config rules. Provider ids are lower-cased so
// lookups match normalized entries. Invalid rules fail the whole table.
func NewTable(rules map[string]Rate) (*Table, error) {
	t := &Table{rules: make(map[string]Rate, len(rules))}
	var errs []error
	for key, rate := range rules {
		provider, model, err := SplitKey(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := rate.validate(); err != nil {
			errs = append(errs, fmt.Errorf("pricing %q: %w", key, err))
			continue
		}
		t.rules[provider+"/"+model] = rate
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

// SplitKey validates and splits a pricing key.
func SplitKey(key string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(strings.TrimSpace(key), "/")
	provider = core.NormalizeProvider(provider)
	model = strings.TrimSpace(model)
	if !ok || provider == "" || model == "" {
		return "", "", fmt.Errorf("pricing key %q: want provider/model or provider/*", key)
	}
	return provider, model, nil
}

func (r Rate) validate() error {
	for _, v := range []float64{r.InputPerMillionUSD, r.OutputPerMillionUSD} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("rate %v must be a non-negative number", v)
		}
	}
	return nil
}

// Lookup resolves an exact provider/model rule, then the provider wildcard.
func (t *Table) Lookup(provider, model string) (Rate, bool) {
	if t == nil {
		return Rate{}, false
	}
	provider = core.NormalizeProvider(provider)
	if r, ok := t.rules[provider+"/"+model]; ok {
		return r, true
	}
	r, ok := t.rules[provider+"/"+wildcardModel]
	return r, ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

type Outcome struct {
	Estimated  int
	Unresolved int
	// UnresolvedKeys lists the distinct provider/model pairs left unpriced.
	UnresolvedKeys []string
}

// Estimate fills in missing costs. Entries that already carry a cost are
// left alone; entries with no matching rule keep a nil cost so they never
// count as free. The input slice is not modified.
func (t *Table) Estimate(entries []core.UsageEntry) ([]core.UsageEntry, Outcome) {
	out := make([]core.UsageEntry, len(entries))
	var outcome Outcome
	unresolved := make(map[string]struct{})
	for i, e := range entries {
		if e.HasCost() {
			out[i] = e
			continue
		}
		rate, ok := t.Lookup(e.Provider, e.Model)
		if !ok {
			out[i] = e
			outcome.Unresolved++
			unresolved[e.Key()] = struct{}{}
			continue
		}
		out[i] = e.WithCost(rate.Cost(e.InputTokens, e.OutputTokens))
		outcome.Estimated++
	}
	for key := range unresolved {
		outcome.UnresolvedKeys = append(outcome.UnresolvedKeys, key)
	}
	sort.Strings(outcome.UnresolvedKeys)
	return out, outcome
}

// Err reports unresolved pricing as ErrPricingUnresolved, or nil.
func (o Outcome) Err() error {
	if o.Unresolved == 0 {
		return nil
	}
	return fmt.Errorf("%d entries (%s): %w", o.Unresolved, strings.Join(o.UnresolvedKeys, ", "), core.ErrPricingUnresolved)
}
