package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
	"github.com/janekbaraniewski/promptpetrol/internal/pricing"
	"github.com/janekbaraniewski/promptpetrol/internal/scheduler"
)

const appName = "promptpetrol"

type CodexImportConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// SessionsDir nil means the platform default (~/.codex/sessions).
	SessionsDir *string `json:"sessions_dir" yaml:"sessions_dir"`
	Model       string  `json:"model" yaml:"model"`
}

type RefreshConfig struct {
	BaseIntervalSeconds int     `json:"base_interval_seconds" yaml:"base_interval_seconds"`
	MaxIntervalSeconds  int     `json:"max_interval_seconds" yaml:"max_interval_seconds"`
	IdleThreshold       int     `json:"idle_threshold" yaml:"idle_threshold"`
	BackoffFactor       float64 `json:"backoff_factor" yaml:"backoff_factor"`
}

type Config struct {
	APIKeys     map[string]string       `json:"api_keys" yaml:"api_keys"`
	Pricing     map[string]pricing.Rate `json:"pricing" yaml:"pricing"`
	CodexImport CodexImportConfig       `json:"codex_import" yaml:"codex_import"`
	Refresh     RefreshConfig           `json:"refresh" yaml:"refresh"`
	Alerts      core.AlertThresholds    `json:"alerts" yaml:"alerts"`
}

func DefaultConfig() Config {
	return Config{
		APIKeys: map[string]string{
			"openai":    "<set-openai-key>",
			"anthropic": "<set-anthropic-key>",
			"gemini":    "<set-gemini-key>",
			"codex":     "<set-codex-key>",
			"opus":      "<set-opus-key>",
		},
		Pricing: map[string]pricing.Rate{
			"openai/gpt-4.1-mini":         {InputPerMillionUSD: 0.40, OutputPerMillionUSD: 1.60},
			"anthropic/claude-3.7-sonnet": {InputPerMillionUSD: 3.00, OutputPerMillionUSD: 15.00},
			"gemini/gemini-2.0-flash":     {InputPerMillionUSD: 0.35, OutputPerMillionUSD: 1.05},
		},
		CodexImport: CodexImportConfig{
			Enabled: true,
			Model:   "codex-cli",
		},
		Refresh: RefreshConfig{
			BaseIntervalSeconds: 10,
			MaxIntervalSeconds:  120,
			IdleThreshold:       3,
			BackoffFactor:       2,
		},
		Alerts: core.DefaultAlertThresholds(),
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), appName)
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DataPath is the default usage store document.
func DataPath() string {
	return filepath.Join(ConfigDir(), "usage.json")
}

// LoadFrom reads the config at path. A missing file is bootstrapped with
// defaults. Parse and validation failures wrap core.ErrConfigInvalid.
func LoadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if err := SaveTo(path, cfg); err != nil {
				return cfg, fmt.Errorf("bootstrapping config: %w", err)
			}
			return cfg, nil
		}
		return DefaultConfig(), fmt.Errorf("reading config: %w", err)
	}

	cfg, err := decode(path, data)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w: %v", path, core.ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte) (Config, error) {
	cfg := DefaultConfig()
	// Maps present in the file replace the defaults instead of merging.
	cfg.APIKeys = nil
	cfg.Pricing = nil

	if isYAML(path) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.APIKeys == nil {
		cfg.APIKeys = map[string]string{}
	}
	if cfg.Pricing == nil {
		cfg.Pricing = map[string]pricing.Rate{}
	}
	cfg.CodexImport.Model = strings.TrimSpace(cfg.CodexImport.Model)
	if cfg.CodexImport.Model == "" {
		cfg.CodexImport.Model = DefaultConfig().CodexImport.Model
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Validate reports every structural problem at once, wrapped in
// core.ErrConfigInvalid.
func (c Config) Validate() error {
	var errs []error
	if _, err := pricing.NewTable(c.Pricing); err != nil {
		errs = append(errs, err)
	}
	if err := c.SchedulerPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("refresh: %w", err))
	}
	ratios := map[string]float64{
		"low_fuel":    c.Alerts.LowFuel,
		"high_rpm":    c.Alerts.HighRPM,
		"overburn":    c.Alerts.Overburn,
		"traffic_jam": c.Alerts.TrafficJam,
		"limit_watch": c.Alerts.LimitWatch,
		"limit_alert": c.Alerts.LimitAlert,
	}
	for _, name := range []string{"low_fuel", "high_rpm", "overburn", "traffic_jam", "limit_watch", "limit_alert"} {
		if v := ratios[name]; v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("alerts.%s = %g: want a ratio in [0,1]", name, v))
		}
	}
	if c.Alerts.LimitWatch > c.Alerts.LimitAlert {
		errs = append(errs, fmt.Errorf("alerts.limit_watch %g above limit_alert %g", c.Alerts.LimitWatch, c.Alerts.LimitAlert))
	}
	if c.CodexImport.SessionsDir != nil && strings.TrimSpace(*c.CodexImport.SessionsDir) == "" {
		errs = append(errs, errors.New("codex_import.sessions_dir: empty path, use null for the default"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", core.ErrConfigInvalid, errors.Join(errs...))
}

// PricingTable builds the immutable lookup table for this config.
func (c Config) PricingTable() (*pricing.Table, error) {
	return pricing.NewTable(c.Pricing)
}

func (c Config) SchedulerPolicy() scheduler.Policy {
	return scheduler.Policy{
		Base:          time.Duration(c.Refresh.BaseIntervalSeconds) * time.Second,
		Max:           time.Duration(c.Refresh.MaxIntervalSeconds) * time.Second,
		IdleThreshold: c.Refresh.IdleThreshold,
		Factor:        c.Refresh.BackoffFactor,
	}
}

// ResolveSessionsDir returns the codex sessions root: the configured path
// with ~ expanded, else $CODEX_HOME/sessions, else ~/.codex/sessions.
func (c Config) ResolveSessionsDir() string {
	if c.CodexImport.SessionsDir != nil {
		if dir := core.ExpandHome(*c.CodexImport.SessionsDir); dir != "" {
			return dir
		}
	}
	if codexHome := strings.TrimSpace(os.Getenv("CODEX_HOME")); codexHome != "" {
		return filepath.Join(core.ExpandHome(codexHome), "sessions")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".codex", "sessions")
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
