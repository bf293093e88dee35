// Package adapters maps provider-specific payloads into normalized usage
// records. The set of adapters is closed: every payload is tagged with a
// Kind and dispatched to one of the parsers below. Parsing is pure; no
// adapter touches the filesystem.
package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/janekbaraniewski/promptpetrol/internal/codex"
	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

type Kind string

const (
	KindDirect  Kind = "direct"
	KindCodex   Kind = "codex"
	KindGeneric Kind = "generic"
)

func (k Kind) Valid() bool {
	switch k {
	case KindDirect, KindCodex, KindGeneric:
		return true
	}
	return false
}

type Payload struct {
	Kind Kind // empty means classify from Data
	Data []byte

	// Codex payloads only.
	Source       string
	Modified     time.Time
	DefaultModel string
}

type Result struct {
	Entries []core.UsageEntry
	Limits  []core.RateLimitSnapshot
	// Skipped is set when a payload carried nothing usable. It is not an
	// error and is counted separately from malformed input.
	Skipped bool
}

// Classify infers the adapter for an untagged payload: a session log for
// codex, an object with input_tokens and output_tokens for direct, and
// anything else for generic.
func Classify(data []byte) Kind {
	trimmed := bytes.TrimSpace(data)
	first, _, _ := bytes.Cut(trimmed, []byte{'\n'})
	if looksLikeSessionEvent(first) {
		return KindCodex
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err == nil {
		if _, ok := probe["input_tokens"]; ok {
			if _, ok := probe["output_tokens"]; ok {
				return KindDirect
			}
		}
	}
	return KindGeneric
}

func looksLikeSessionEvent(line []byte) bool {
	var probe struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return false
	}
	return probe.Type != "" && len(probe.Payload) > 0
}

// Parse dispatches p to its adapter.
func Parse(p Payload) (Result, error) {
	kind := p.Kind
	if kind == "" {
		kind = Classify(p.Data)
	}
	switch kind {
	case KindCodex:
		return parseCodex(p)
	case KindDirect, KindGeneric:
		var raw RawEntry
		if err := json.Unmarshal(p.Data, &raw); err != nil {
			return Result{}, fmt.Errorf("%s entry: %w: %v", kind, core.ErrMalformed, err)
		}
		if kind == KindDirect {
			return parseDirect(raw)
		}
		return parseGeneric(raw)
	default:
		return Result{}, fmt.Errorf("adapter %q: %w", kind, core.ErrMalformed)
	}
}

// NormalizeEntry runs a decoded store entry through the direct adapter when
// it carries both canonical counts and through the generic one otherwise.
func NormalizeEntry(raw RawEntry) (Result, error) {
	if raw.hasDirectCounts() {
		return parseDirect(raw)
	}
	return parseGeneric(raw)
}

func parseDirect(raw RawEntry) (Result, error) {
	ts, err := parseEntryTimestamp(raw.Timestamp)
	if err != nil {
		return Result{}, err
	}
	if raw.InputTokens == nil || raw.OutputTokens == nil {
		return Result{}, fmt.Errorf("direct entry: missing token counts: %w", core.ErrMalformed)
	}
	in, err := nonNegative("input_tokens", raw.InputTokens)
	if err != nil {
		return Result{}, err
	}
	out, err := nonNegative("output_tokens", raw.OutputTokens)
	if err != nil {
		return Result{}, err
	}

	entry := core.UsageEntry{
		Timestamp:    ts,
		InputTokens:  *in,
		OutputTokens: *out,
		Origin:       origin(raw.SourceOrigin, core.OriginDirect),
	}
	if entry.CachedInputTokens, err = nonNegative("cached_input_tokens", raw.CachedInputTokens); err != nil {
		return Result{}, err
	}
	if entry.ReasoningOutputTokens, err = nonNegative("reasoning_output_tokens", raw.ReasoningOutputTokens); err != nil {
		return Result{}, err
	}
	if entry.CostUSD, err = validCost(raw.CostUSD); err != nil {
		return Result{}, err
	}
	entry.Provider, entry.Model, entry.FallbackIdentity = identity(raw)
	return Result{Entries: []core.UsageEntry{entry}}, nil
}

func parseGeneric(raw RawEntry) (Result, error) {
	if !raw.anyCount() {
		return Result{Skipped: true}, nil
	}
	ts, err := parseEntryTimestamp(raw.Timestamp)
	if err != nil {
		return Result{}, err
	}

	provider, model, fallback := identity(raw)
	aliases := aliasesFor(provider)
	in, err := nonNegative("input", firstSet(aliases.input(&raw)))
	if err != nil {
		return Result{}, err
	}
	out, err := nonNegative("output", firstSet(aliases.output(&raw)))
	if err != nil {
		return Result{}, err
	}
	total, err := nonNegative("total", firstSet(aliases.total(&raw)))
	if err != nil {
		return Result{}, err
	}
	if in == nil && out == nil && total == nil {
		// Counts exist but none under this provider's aliases.
		return Result{Skipped: true}, nil
	}
	inputTokens, outputTokens := splitWithTotal(deref(in), deref(out), total)

	cost, err := validCost(raw.CostUSD)
	if err != nil {
		return Result{}, err
	}
	return Result{Entries: []core.UsageEntry{{
		Timestamp:        ts,
		Provider:         provider,
		Model:            model,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		CostUSD:          cost,
		Origin:           origin(raw.SourceOrigin, core.OriginNormalized),
		FallbackIdentity: fallback,
	}}}, nil
}

func parseCodex(p Payload) (Result, error) {
	state := codex.ParseSession(p.Data)
	if state.ValidLines == 0 && state.MalformedLines > 0 {
		return Result{}, fmt.Errorf("codex session %s: %d lines: %w", p.Source, state.MalformedLines, core.ErrMalformed)
	}
	c := state.Contribute(p.Source, p.Modified, p.DefaultModel)
	res := Result{Limits: c.Limits, Skipped: state.NoUsage()}
	if c.Entry != nil {
		res.Entries = []core.UsageEntry{*c.Entry}
	}
	return res, nil
}

// identity resolves provider and model. Empty and absent values are treated
// the same and replaced by the unknown placeholder.
func identity(raw RawEntry) (provider, model string, fallback bool) {
	provider = core.NormalizeProvider(raw.Provider)
	model = core.FirstNonEmpty(raw.Model)
	fallback = raw.FallbackIdentity
	if provider == "" {
		provider = core.UnknownIdentity
		fallback = true
	}
	if model == "" {
		model = core.UnknownIdentity
		fallback = true
	}
	return provider, model, fallback
}

func parseEntryTimestamp(raw string) (time.Time, error) {
	if core.FirstNonEmpty(raw) == "" {
		return time.Time{}, fmt.Errorf("entry timestamp missing: %w", core.ErrMalformed)
	}
	ts, err := core.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("entry timestamp %q: %w", raw, core.ErrMalformed)
	}
	return ts, nil
}

func nonNegative(field string, v *int64) (*uint64, error) {
	if v == nil {
		return nil, nil
	}
	if *v < 0 {
		return nil, fmt.Errorf("%s = %d: negative count: %w", field, *v, core.ErrMalformed)
	}
	return core.Uint64Ptr(uint64(*v)), nil
}

func validCost(v *float64) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	if *v < 0 {
		return nil, fmt.Errorf("cost_usd = %f: negative cost: %w", *v, core.ErrMalformed)
	}
	return core.Float64Ptr(*v), nil
}

func deref(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}
