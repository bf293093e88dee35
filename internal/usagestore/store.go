// Package usagestore reads the local usage document: a budget plus an
// ordered list of usage entries, some of which may still be in a
// provider's raw shape.
package usagestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/janekbaraniewski/promptpetrol/internal/adapters"
	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

// Document is the on-disk shape. Entries stay raw until normalized so one
// bad entry cannot fail the whole document.
type Document struct {
	BudgetUSD *float64          `json:"budget_usd"`
	Entries   []json.RawMessage `json:"entries"`
}

type Loaded struct {
	Data     core.UsageData
	Rejected int
	Skipped  int
	Modified time.Time
	// Bootstrapped is set when the file did not exist and was seeded.
	Bootstrapped bool
}

// Load reads path, seeding it when absent. A document that is not a JSON
// object with an entries array is malformed as a whole; individual entries
// that fail validation are rejected and counted.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		seed := Seed()
		if err := Save(path, seed); err != nil {
			return Loaded{Data: seed}, fmt.Errorf("bootstrapping usage store: %w", err)
		}
		return Loaded{Data: seed, Modified: modTime(path), Bootstrapped: true}, nil
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("usage store %s: %w: %v", path, core.ErrUnreadable, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Loaded{}, fmt.Errorf("usage store %s: %w: %v", path, core.ErrMalformed, err)
	}

	out := Loaded{
		Data:     core.UsageData{BudgetUSD: doc.BudgetUSD},
		Modified: modTime(path),
	}
	for i, raw := range doc.Entries {
		res, err := decodeEntry(raw)
		switch {
		case err != nil:
			out.Rejected++
			log.WithError(err).WithField("path", path).WithField("entry", i).Debug("usagestore: entry rejected")
		case res.Skipped:
			out.Skipped++
		default:
			out.Data.Entries = append(out.Data.Entries, res.Entries...)
		}
	}
	return out, nil
}

func decodeEntry(raw json.RawMessage) (adapters.Result, error) {
	var entry adapters.RawEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return adapters.Result{}, fmt.Errorf("%w: %v", core.ErrMalformed, err)
	}
	return adapters.NormalizeEntry(entry)
}

// Save writes data as an indented document, creating parent directories.
func Save(path string, data core.UsageData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if data.Entries == nil {
		data.Entries = []core.UsageEntry{}
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling usage store: %w", err)
	}
	payload = append(payload, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("writing usage store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing usage store: %w", err)
	}
	return nil
}

// Seed is the document written on first run.
func Seed() core.UsageData {
	at := func(s string) time.Time {
		t, _ := time.Parse(time.RFC3339, s)
		return t
	}
	return core.UsageData{
		BudgetUSD: core.Float64Ptr(50),
		Entries: []core.UsageEntry{
			{
				Timestamp:    at("2026-02-09T08:45:00Z"),
				Provider:     "openai",
				Model:        "gpt-4.1-mini",
				InputTokens:  7600,
				OutputTokens: 2400,
				CostUSD:      core.Float64Ptr(0.084),
				Origin:       core.OriginDirect,
			},
			{
				Timestamp:    at("2026-02-09T13:30:00Z"),
				Provider:     "anthropic",
				Model:        "claude-3.7-sonnet",
				InputTokens:  10400,
				OutputTokens: 5800,
				CostUSD:      core.Float64Ptr(0.361),
				Origin:       core.OriginDirect,
			},
			{
				Timestamp:    at("2026-02-10T03:15:00Z"),
				Provider:     "gemini",
				Model:        "gemini-2.0-flash",
				InputTokens:  5300,
				OutputTokens: 1200,
				CostUSD:      core.Float64Ptr(0.056),
				Origin:       core.OriginDirect,
			},
		},
	}
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
