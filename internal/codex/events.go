package codex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

const (
	DefaultProvider = "codex"
	DefaultModel    = "codex-cli"

	eventSessionMeta = "session_meta"
	eventTurnContext = "turn_context"
	eventMsg         = "event_msg"
	msgTokenCount    = "token_count"
)

type sessionEvent struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type eventPayload struct {
	Type       string      `json:"type"`
	Info       *tokenInfo  `json:"info,omitempty"`
	RateLimits *rateLimits `json:"rate_limits,omitempty"`
}

type tokenInfo struct {
	TotalTokenUsage *tokenUsage `json:"total_token_usage,omitempty"`
}

type tokenUsage struct {
	InputTokens           uint64  `json:"input_tokens"`
	CachedInputTokens     *uint64 `json:"cached_input_tokens,omitempty"`
	OutputTokens          uint64  `json:"output_tokens"`
	ReasoningOutputTokens *uint64 `json:"reasoning_output_tokens,omitempty"`
	TotalTokens           uint64  `json:"total_tokens"`
}

type rateLimits struct {
	Primary   *rateLimitBucket `json:"primary,omitempty"`
	Secondary *rateLimitBucket `json:"secondary,omitempty"`
}

type rateLimitBucket struct {
	UsedPercent   *float64 `json:"used_percent"` // integer or float in the log
	WindowMinutes int      `json:"window_minutes"`
	ResetsAt      *int64   `json:"resets_at,omitempty"` // Unix timestamp
}

type sessionMetaPayload struct {
	ID            string `json:"id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	Model         string `json:"model,omitempty"`
	ModelProvider string `json:"model_provider,omitempty"`
}

type turnContextPayload struct {
	Model string `json:"model,omitempty"`
}

type Totals struct {
	InputTokens           uint64  `json:"input_tokens"`
	OutputTokens          uint64  `json:"output_tokens"`
	CachedInputTokens     *uint64 `json:"cached_input_tokens,omitempty"`
	ReasoningOutputTokens *uint64 `json:"reasoning_output_tokens,omitempty"`
}

// LimitReading is one window reading from the latest token-count event
// that carried rate limits.
type LimitReading struct {
	Window        core.Window `json:"window"`
	UsedPercent   *float64    `json:"used_percent,omitempty"`
	WindowMinutes int         `json:"window_minutes,omitempty"`
	ResetsAt      *time.Time  `json:"resets_at,omitempty"`
	CapturedAt    time.Time   `json:"captured_at"`
}

// SessionState is everything learned from a session log so far. It can be
// resumed with more lines and is persisted in the cursor index.
type SessionState struct {
	SessionID        string         `json:"session_id,omitempty"`
	SessionTimestamp time.Time      `json:"session_timestamp,omitempty"`
	Provider         string         `json:"provider,omitempty"`
	MetaModel        string         `json:"meta_model,omitempty"`
	TurnModel        string         `json:"turn_model,omitempty"`
	HasUsage         bool           `json:"has_usage"`
	Usage            Totals         `json:"usage"`
	LastTokenEventAt time.Time      `json:"last_token_event_at,omitempty"`
	Limits           []LimitReading `json:"limits,omitempty"`
	ValidLines       int            `json:"valid_lines"`
	MalformedLines   int            `json:"malformed_lines"`

	// PendingMalformed marks an unterminated last line that can never become
	// valid JSON. It is re-read on every refresh and is not in MalformedLines.
	PendingMalformed bool `json:"pending_malformed,omitempty"`
}

// Apply folds one log line into the state. Blank lines are ignored; a line
// that is not a well-formed event is counted and reported as ErrMalformed.
func (s *SessionState) Apply(line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	if err := s.apply(line); err != nil {
		s.MalformedLines++
		return fmt.Errorf("%w: %v", core.ErrMalformed, err)
	}
	s.ValidLines++
	return nil
}

func (s *SessionState) apply(line []byte) error {
	var ev sessionEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return err
	}

	switch ev.Type {
	case eventSessionMeta:
		var meta sessionMetaPayload
		if err := unmarshalPayload(ev.Payload, &meta); err != nil {
			return err
		}
		if ts := core.FirstNonEmpty(meta.Timestamp, ev.Timestamp); ts != "" {
			parsed, err := core.ParseTimestamp(ts)
			if err != nil {
				return fmt.Errorf("session timestamp %q: %w", ts, err)
			}
			s.SessionTimestamp = parsed
		}
		if id := core.FirstNonEmpty(meta.ID); id != "" {
			s.SessionID = id
		}
		if p := core.NormalizeProvider(meta.ModelProvider); p != "" {
			s.Provider = p
		}
		if m := core.FirstNonEmpty(meta.Model); m != "" {
			s.MetaModel = m
		}
	case eventTurnContext:
		var tc turnContextPayload
		if err := unmarshalPayload(ev.Payload, &tc); err != nil {
			return err
		}
		if m := core.FirstNonEmpty(tc.Model); m != "" {
			s.TurnModel = m
		}
	case eventMsg:
		var payload eventPayload
		if err := unmarshalPayload(ev.Payload, &payload); err != nil {
			return err
		}
		if payload.Type != msgTokenCount {
			return nil
		}
		return s.applyTokenCount(ev.Timestamp, payload)
	}
	return nil
}

func (s *SessionState) applyTokenCount(rawTS string, payload eventPayload) error {
	var ts time.Time
	if rawTS != "" {
		parsed, err := core.ParseTimestamp(rawTS)
		if err != nil {
			return fmt.Errorf("event timestamp %q: %w", rawTS, err)
		}
		ts = parsed
	}

	// Totals are cumulative: the latest event replaces earlier ones.
	if payload.Info != nil && payload.Info.TotalTokenUsage != nil {
		u := payload.Info.TotalTokenUsage
		s.Usage = Totals{
			InputTokens:           u.InputTokens,
			OutputTokens:          u.OutputTokens,
			CachedInputTokens:     u.CachedInputTokens,
			ReasoningOutputTokens: u.ReasoningOutputTokens,
		}
		s.HasUsage = true
		if !ts.IsZero() {
			s.LastTokenEventAt = ts
		}
	}

	if payload.RateLimits != nil && !ts.IsZero() {
		var readings []LimitReading
		if r, ok := readLimit(payload.RateLimits.Primary, "primary", ts); ok {
			readings = append(readings, r)
		}
		if r, ok := readLimit(payload.RateLimits.Secondary, "secondary", ts); ok {
			readings = append(readings, r)
		}
		if len(readings) > 0 {
			s.Limits = readings
		}
	}
	return nil
}

func readLimit(b *rateLimitBucket, slot string, capturedAt time.Time) (LimitReading, bool) {
	if b == nil {
		return LimitReading{}, false
	}
	r := LimitReading{
		Window:        core.ClassifyWindow(b.WindowMinutes, slot),
		UsedPercent:   b.UsedPercent,
		WindowMinutes: b.WindowMinutes,
		CapturedAt:    capturedAt,
	}
	if b.ResetsAt != nil && *b.ResetsAt > 0 {
		resets := core.UnixAuto(*b.ResetsAt)
		r.ResetsAt = &resets
	}
	return r, true
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// ParseError reports whether any line failed to parse.
func (s SessionState) ParseError() bool { return s.MalformedLines > 0 || s.PendingMalformed }

// NoUsage reports a readable session without usage or limit events. A file
// made only of malformed lines is a parse error, not no_usage; a file mixing
// malformed lines with irrelevant events is both.
func (s SessionState) NoUsage() bool {
	return !s.HasUsage && len(s.Limits) == 0 && (s.ValidLines > 0 || !s.ParseError())
}

func (s SessionState) clone() SessionState {
	out := s
	if s.Limits != nil {
		out.Limits = append([]LimitReading(nil), s.Limits...)
	}
	return out
}

// Contribution is what one session file adds to the aggregate: at most one
// entry and at most one snapshot per window.
type Contribution struct {
	Entry  *core.UsageEntry
	Limits []core.RateLimitSnapshot
}

// Contribute turns the session state into usage records. modified stands in
// for the entry timestamp when the log carries none.
func (s SessionState) Contribute(path string, modified time.Time, defaultModel string) Contribution {
	provider, model, fallback := s.identity(defaultModel)

	var c Contribution
	if s.HasUsage {
		ts := s.LastTokenEventAt
		if ts.IsZero() {
			ts = s.SessionTimestamp
		}
		if ts.IsZero() {
			ts = modified.UTC()
		}
		c.Entry = &core.UsageEntry{
			Timestamp:             ts,
			Provider:              provider,
			Model:                 model,
			InputTokens:           s.Usage.InputTokens,
			OutputTokens:          s.Usage.OutputTokens,
			CachedInputTokens:     s.Usage.CachedInputTokens,
			ReasoningOutputTokens: s.Usage.ReasoningOutputTokens,
			Origin:                core.OriginCodexImport,
			FallbackIdentity:      fallback,
			SourcePath:            path,
		}
	}

	for _, r := range s.Limits {
		snap := core.RateLimitSnapshot{
			Window:         r.Window,
			WindowMinutes:  r.WindowMinutes,
			ResetsAt:       r.ResetsAt,
			CapturedAt:     r.CapturedAt,
			Provider:       provider,
			Model:          model,
			SourcePath:     path,
			SourceModified: modified,
		}
		if r.UsedPercent != nil {
			snap.UsedFraction = core.Float64Ptr(core.FractionFromPercent(*r.UsedPercent))
		}
		c.Limits = append(c.Limits, snap)
	}
	return c
}

func (s SessionState) identity(defaultModel string) (provider, model string, fallback bool) {
	provider = s.Provider
	if provider == "" {
		provider = DefaultProvider
		fallback = true
	}
	model = core.FirstNonEmpty(s.TurnModel, s.MetaModel)
	if model == "" {
		model = core.FirstNonEmpty(defaultModel, DefaultModel)
		fallback = true
	}
	return provider, model, fallback
}

// ParseSession reads a whole session log held in memory.
func ParseSession(data []byte) SessionState {
	var s SessionState
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		_ = s.Apply(line)
	}
	return s
}
