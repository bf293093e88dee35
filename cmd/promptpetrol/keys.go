package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/promptpetrol/internal/config"
	"github.com/janekbaraniewski/promptpetrol/internal/detect"
	"github.com/janekbaraniewski/promptpetrol/internal/pricing"
)

func newKeysCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys stored in the config",
	}
	var save bool
	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Look for API keys in the environment and a local Codex install",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := detect.Detect(nil)
			fmt.Fprint(cmd.OutOrStdout(), res.Summary())
			if !save {
				return nil
			}
			for _, k := range res.Keys {
				if err := config.SetAPIKeyTo(opts.configPath, k.Provider, k.Value); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d key(s) to %s\n", len(res.Keys), opts.configPath)
			return nil
		},
	}
	detectCmd.Flags().BoolVar(&save, "save", false, "store detected keys in the config")

	cmd.AddCommand(
		detectCmd,
		&cobra.Command{
			Use:   "list",
			Short: "List providers with a stored key",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.LoadFrom(opts.configPath)
				if err != nil {
					return err
				}
				providers := make([]string, 0, len(cfg.APIKeys))
				for p := range cfg.APIKeys {
					providers = append(providers, p)
				}
				sort.Strings(providers)
				for _, p := range providers {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p, maskKey(cfg.APIKeys[p]))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <provider> <key>",
			Short: "Store a key for a provider",
			Args:  cobra.ExactArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				return config.SetAPIKeyTo(opts.configPath, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "delete <provider>",
			Short: "Remove a provider's key",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return config.DeleteAPIKeyFrom(opts.configPath, args[0])
			},
		},
	)
	return cmd
}

func newPricingCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Inspect or edit pricing rules",
	}

	var in, out float64
	set := &cobra.Command{
		Use:   "set <provider/model|provider/*>",
		Short: "Add or replace a pricing rule (USD per million tokens)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return config.SetPricingTo(opts.configPath, args[0], pricing.Rate{InputPerMillionUSD: in, OutputPerMillionUSD: out})
		},
	}
	set.Flags().Float64Var(&in, "input", 0, "input rate per million tokens")
	set.Flags().Float64Var(&out, "output", 0, "output rate per million tokens")

	list := &cobra.Command{
		Use:   "list",
		Short: "List pricing rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(opts.configPath)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(cfg.Pricing))
			for k := range cfg.Pricing {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				r := cfg.Pricing[k]
				fmt.Fprintf(cmd.OutOrStdout(), "%-32s in $%.2f/M  out $%.2f/M\n", k, r.InputPerMillionUSD, r.OutputPerMillionUSD)
			}
			return nil
		},
	}
	cmd.AddCommand(set, list)
	return cmd
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}
