package adapters

import (
	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

// RawEntry is a usage store entry before normalization. Counts are signed
// so negative values can be rejected instead of wrapping.
type RawEntry struct {
	Timestamp             string   `json:"timestamp"`
	Provider              string   `json:"provider"`
	Model                 string   `json:"model"`
	InputTokens           *int64   `json:"input_tokens,omitempty"`
	OutputTokens          *int64   `json:"output_tokens,omitempty"`
	CachedInputTokens     *int64   `json:"cached_input_tokens,omitempty"`
	ReasoningOutputTokens *int64   `json:"reasoning_output_tokens,omitempty"`
	PromptTokens          *int64   `json:"prompt_tokens,omitempty"`
	CompletionTokens      *int64   `json:"completion_tokens,omitempty"`
	RequestTokens         *int64   `json:"request_tokens,omitempty"`
	ResponseTokens        *int64   `json:"response_tokens,omitempty"`
	PromptTokenCount      *int64   `json:"prompt_token_count,omitempty"`
	CandidatesTokenCount  *int64   `json:"candidates_token_count,omitempty"`
	TotalTokens           *int64   `json:"total_tokens,omitempty"`
	TotalTokenCount       *int64   `json:"total_token_count,omitempty"`
	CostUSD               *float64 `json:"cost_usd,omitempty"`
	SourceOrigin          string   `json:"source_origin,omitempty"`
	FallbackIdentity      bool     `json:"raw_identity_fallback,omitempty"`
}

// tokenAliases lists, per provider, which raw fields carry input, output
// and total counts in order of preference.
type tokenAliases struct {
	input  func(*RawEntry) []*int64
	output func(*RawEntry) []*int64
	total  func(*RawEntry) []*int64
}

var openAIAliases = tokenAliases{
	input:  func(r *RawEntry) []*int64 { return []*int64{r.InputTokens, r.PromptTokens, r.RequestTokens} },
	output: func(r *RawEntry) []*int64 { return []*int64{r.OutputTokens, r.CompletionTokens, r.ResponseTokens} },
	total:  func(r *RawEntry) []*int64 { return []*int64{r.TotalTokens} },
}

var providerAliases = map[string]tokenAliases{
	"openai":    openAIAliases,
	"codex":     openAIAliases,
	"anthropic": openAIAliases,
	"gemini": {
		input:  func(r *RawEntry) []*int64 { return []*int64{r.InputTokens, r.PromptTokenCount, r.PromptTokens} },
		output: func(r *RawEntry) []*int64 { return []*int64{r.OutputTokens, r.CandidatesTokenCount, r.CompletionTokens} },
		total:  func(r *RawEntry) []*int64 { return []*int64{r.TotalTokens, r.TotalTokenCount} },
	},
	"opus": {
		input:  func(r *RawEntry) []*int64 { return []*int64{r.InputTokens, r.PromptTokens, r.PromptTokenCount} },
		output: func(r *RawEntry) []*int64 { return []*int64{r.OutputTokens, r.CompletionTokens, r.CandidatesTokenCount} },
		total:  func(r *RawEntry) []*int64 { return []*int64{r.TotalTokens, r.TotalTokenCount} },
	},
}

var genericAliases = tokenAliases{
	input: func(r *RawEntry) []*int64 {
		return []*int64{r.InputTokens, r.PromptTokens, r.RequestTokens, r.PromptTokenCount}
	},
	output: func(r *RawEntry) []*int64 {
		return []*int64{r.OutputTokens, r.CompletionTokens, r.ResponseTokens, r.CandidatesTokenCount}
	},
	total: func(r *RawEntry) []*int64 { return []*int64{r.TotalTokens, r.TotalTokenCount} },
}

func aliasesFor(provider string) tokenAliases {
	if a, ok := providerAliases[provider]; ok {
		return a
	}
	return genericAliases
}

func firstSet(values []*int64) *int64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// splitWithTotal reconciles per-direction counts with a reported total. A
// total alone is split in half with the odd token going to output; a total
// above the known counts adds the remainder to output.
func splitWithTotal(input, output uint64, total *uint64) (uint64, uint64) {
	if total == nil {
		return input, output
	}
	known := input + output
	if known == 0 {
		in := *total / 2
		return in, *total - in
	}
	if known < *total {
		return input, output + (*total - known)
	}
	return input, output
}

func (r *RawEntry) hasDirectCounts() bool {
	return r.InputTokens != nil && r.OutputTokens != nil
}

func (r *RawEntry) anyCount() bool {
	for _, v := range genericAliases.input(r) {
		if v != nil {
			return true
		}
	}
	for _, v := range genericAliases.output(r) {
		if v != nil {
			return true
		}
	}
	return firstSet(genericAliases.total(r)) != nil
}

func origin(raw string, fallback core.Origin) core.Origin {
	switch core.Origin(raw) {
	case core.OriginDirect, core.OriginCodexImport, core.OriginNormalized:
		return core.Origin(raw)
	}
	return fallback
}
