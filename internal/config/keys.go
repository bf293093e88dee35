package config

import (
	"fmt"
	"strings"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
	"github.com/janekbaraniewski/promptpetrol/internal/pricing"
)

// SetAPIKeyTo stores a provider key in the config file (read-modify-write).
// Keys are informational; nothing in ingestion reads them.
func SetAPIKeyTo(path, provider, key string) error {
	provider = core.NormalizeProvider(provider)
	if provider == "" {
		return fmt.Errorf("api key: empty provider")
	}
	return update(path, func(cfg *Config) error {
		cfg.APIKeys[provider] = strings.TrimSpace(key)
		return nil
	})
}

func DeleteAPIKeyFrom(path, provider string) error {
	provider = core.NormalizeProvider(provider)
	return update(path, func(cfg *Config) error {
		delete(cfg.APIKeys, provider)
		return nil
	})
}

// SetPricingTo adds or replaces one pricing rule after validating its key
// and rates.
func SetPricingTo(path, key string, rate pricing.Rate) error {
	provider, model, err := pricing.SplitKey(key)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return update(path, func(cfg *Config) error {
		cfg.Pricing[provider+"/"+model] = rate
		return cfg.Validate()
	})
}

func update(path string, fn func(*Config) error) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	cfg, err := LoadFrom(path)
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return SaveTo(path, cfg)
}
