package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

func sampleData() core.UsageData {
	at := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	return core.UsageData{
		BudgetUSD: core.Float64Ptr(50),
		Entries: []core.UsageEntry{
			{Timestamp: at, Provider: "openai", Model: "gpt-4.1-mini", InputTokens: 100, OutputTokens: 50, CostUSD: core.Float64Ptr(0.5)},
			{Timestamp: at, Provider: "openai", Model: "gpt-4.1-mini", InputTokens: 200, OutputTokens: 10, CostUSD: core.Float64Ptr(0.25)},
			{Timestamp: at, Provider: "openai", Model: "gpt-5", InputTokens: 5, OutputTokens: 5},
			{Timestamp: at, Provider: "anthropic", Model: "claude", InputTokens: 1000, OutputTokens: 1000, CostUSD: core.Float64Ptr(2)},
		},
	}
}

func TestBuildTotals(t *testing.T) {
	r := Build(sampleData(), nil, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	if len(r.Providers) != 2 || r.Providers[0].Provider != "anthropic" {
		t.Fatalf("providers = %+v, want anthropic first by cost", r.Providers)
	}
	openai := r.Providers[1]
	if openai.InputTokens != 305 || openai.OutputTokens != 65 || openai.EntryCount != 3 || openai.Unestimated != 1 {
		t.Fatalf("openai totals = %+v", openai)
	}
	if openai.CostUSD != 0.75 {
		t.Fatalf("openai cost = %v, want 0.75", openai.CostUSD)
	}
	if len(r.Models) != 3 || r.Models[0].Provider != "anthropic" || r.Models[2].Model != "gpt-5" {
		t.Fatalf("models = %+v", r.Models)
	}
	if r.TotalCostUSD != 2.75 {
		t.Fatalf("total = %v, want 2.75", r.TotalCostUSD)
	}
}

func TestWriteCSVColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, Build(sampleData(), nil, time.Now())); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "provider,model,input_tokens,output_tokens,cost_usd,entry_count" {
		t.Fatalf("header = %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(lines))
	}
	if lines[2] != "openai,gpt-4.1-mini,300,60,0.750000,2" {
		t.Fatalf("row = %q", lines[2])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Build(sampleData(), nil, time.Now()), FormatJSON); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var decoded struct {
		BudgetUSD float64 `json:"budget_usd"`
		Providers []struct {
			Provider   string `json:"provider"`
			EntryCount int    `json:"entry_count"`
		} `json:"providers"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.BudgetUSD != 50 || len(decoded.Providers) != 2 || decoded.Providers[1].EntryCount != 3 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" CSV "); err != nil || f != FormatCSV {
		t.Fatalf("ParseFormat(CSV) = %q, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}
