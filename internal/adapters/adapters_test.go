package adapters

import (
	"errors"
	"testing"
	"time"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Kind
	}{
		{"direct", `{"provider":"openai","input_tokens":1,"output_tokens":2}`, KindDirect},
		{"generic", `{"provider":"gemini","prompt_token_count":1}`, KindGeneric},
		{"codex", `{"type":"session_meta","payload":{"id":"x"}}` + "\n" + `{"type":"turn_context","payload":{}}`, KindCodex},
		{"garbage", `not json`, KindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify([]byte(tt.data)); got != tt.want {
				t.Fatalf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseDirectPreservesCounts(t *testing.T) {
	res, err := Parse(Payload{Kind: KindDirect, Data: []byte(`{"timestamp":"2026-02-09T08:45:00Z","provider":"OpenAI","model":"gpt-4.1-mini","input_tokens":7600,"output_tokens":2400,"cost_usd":0.084}`)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(res.Entries))
	}
	e := res.Entries[0]
	if e.InputTokens != 7600 || e.OutputTokens != 2400 {
		t.Fatalf("tokens = %d/%d, want 7600/2400", e.InputTokens, e.OutputTokens)
	}
	if e.Provider != "openai" || e.Origin != core.OriginDirect || e.FallbackIdentity {
		t.Fatalf("entry = %+v", e)
	}
	if !e.HasCost() || e.Cost() != 0.084 {
		t.Fatalf("cost = %v, want 0.084", e.CostUSD)
	}
	if want := time.Date(2026, 2, 9, 8, 45, 0, 0, time.UTC); !e.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %s, want %s", e.Timestamp, want)
	}
}

func TestParseDirectRejectsNegativeCounts(t *testing.T) {
	_, err := Parse(Payload{Kind: KindDirect, Data: []byte(`{"timestamp":"2026-02-09T08:45:00Z","provider":"openai","model":"m","input_tokens":-5,"output_tokens":2}`)})
	if !errors.Is(err, core.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseDirectFallbackIdentity(t *testing.T) {
	res, err := Parse(Payload{Kind: KindDirect, Data: []byte(`{"timestamp":"2026-02-09T08:45:00Z","provider":"","input_tokens":1,"output_tokens":2}`)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e := res.Entries[0]
	if e.Provider != core.UnknownIdentity || e.Model != core.UnknownIdentity || !e.FallbackIdentity {
		t.Fatalf("entry = %+v, want unknown/unknown with fallback", e)
	}
}

func TestNormalizeEntryAliases(t *testing.T) {
	i := func(v int64) *int64 { return &v }
	tests := []struct {
		name    string
		raw     RawEntry
		wantIn  uint64
		wantOut uint64
	}{
		{"openai prompt/completion", RawEntry{Provider: "openai", PromptTokens: i(10), CompletionTokens: i(5)}, 10, 5},
		{"anthropic request/response", RawEntry{Provider: "Anthropic", RequestTokens: i(7), ResponseTokens: i(3)}, 7, 3},
		{"gemini total only", RawEntry{Provider: "gemini", TotalTokenCount: i(101)}, 50, 51},
		{"gemini candidates", RawEntry{Provider: "gemini", PromptTokenCount: i(40), CandidatesTokenCount: i(8)}, 40, 8},
		{"opus remainder to output", RawEntry{Provider: "opus", PromptTokens: i(10), CompletionTokens: i(5), TotalTokens: i(20)}, 10, 10},
		{"openai ignores total_token_count", RawEntry{Provider: "openai", PromptTokens: i(4), TotalTokenCount: i(100)}, 4, 0},
		{"generic all aliases", RawEntry{Provider: "mistral", PromptTokenCount: i(6), ResponseTokens: i(2)}, 6, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.raw.Timestamp = "2026-02-10T03:15:00Z"
			tt.raw.Model = "m"
			res, err := NormalizeEntry(tt.raw)
			if err != nil {
				t.Fatalf("NormalizeEntry: %v", err)
			}
			e := res.Entries[0]
			if e.InputTokens != tt.wantIn || e.OutputTokens != tt.wantOut {
				t.Fatalf("tokens = %d/%d, want %d/%d", e.InputTokens, e.OutputTokens, tt.wantIn, tt.wantOut)
			}
			if e.Origin != core.OriginNormalized {
				t.Fatalf("origin = %s, want normalized", e.Origin)
			}
		})
	}
}

func TestParseGenericSkipsUnresolvable(t *testing.T) {
	res, err := Parse(Payload{Kind: KindGeneric, Data: []byte(`{"timestamp":"2026-02-10T03:15:00Z","provider":"x","note":"hello"}`)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.Skipped || len(res.Entries) != 0 {
		t.Fatalf("result = %+v, want skipped", res)
	}

	// Gemini aliases do not include request_tokens.
	res, err = Parse(Payload{Kind: KindGeneric, Data: []byte(`{"timestamp":"2026-02-10T03:15:00Z","provider":"gemini","request_tokens":3}`)})
	if err != nil || !res.Skipped {
		t.Fatalf("gemini request_tokens: res=%+v err=%v, want skipped", res, err)
	}
}

func TestParseCodexPayload(t *testing.T) {
	data := `{"timestamp":"2026-02-22T10:00:00Z","type":"session_meta","payload":{"model_provider":"openai","model":"gpt-5"}}
{"timestamp":"2026-02-22T10:00:02Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":5,"output_tokens":6}},"rate_limits":{"secondary":{"used_percent":80,"window_minutes":10080}}}}
`
	res, err := Parse(Payload{Data: []byte(data), Source: "/s/a.jsonl"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Origin != core.OriginCodexImport {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if len(res.Limits) != 1 || res.Limits[0].Window != core.WindowWeekly {
		t.Fatalf("limits = %+v", res.Limits)
	}

	_, err = Parse(Payload{Kind: KindCodex, Data: []byte("{bad\n{worse\n")})
	if !errors.Is(err, core.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseIsPure(t *testing.T) {
	data := []byte(`{"timestamp":"2026-02-09T08:45:00Z","provider":"openai","model":"m","input_tokens":1,"output_tokens":2}`)
	a, _ := Parse(Payload{Data: data})
	b, _ := Parse(Payload{Data: data})
	if a.Entries[0] != b.Entries[0] {
		t.Fatalf("repeated parse differs: %+v vs %+v", a.Entries[0], b.Entries[0])
	}
}
