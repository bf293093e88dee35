package main

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/promptpetrol/internal/config"
	"github.com/janekbaraniewski/promptpetrol/internal/engine"
	"github.com/janekbaraniewski/promptpetrol/internal/index"
	"github.com/janekbaraniewski/promptpetrol/internal/logging"
	"github.com/janekbaraniewski/promptpetrol/internal/version"
)

type rootOptions struct {
	configPath string
	dataPath   string
	noIndex    bool
}

func main() {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "promptpetrol",
		Short:         "PromptPetrol is a fuel gauge for LLM token spend.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.ConfigPath(), "path to config.json (or .yaml)")
	root.PersistentFlags().StringVar(&opts.dataPath, "data", config.DataPath(), "path to the usage store document")
	root.PersistentFlags().BoolVar(&opts.noIndex, "no-index", false, "do not persist session cursors between runs")

	root.AddCommand(
		newScanCommand(opts),
		newExportCommand(opts),
		newKeysCommand(opts),
		newPricingCommand(opts),
		newVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging routes logs to the state dir. Subcommands that keep the
// terminal may mirror to stderr in debug mode.
func setupLogging(stderr bool) io.Closer {
	stateDir, err := index.DefaultStateDir()
	if err == nil {
		closer, err := logging.Setup(logging.Options{StateDir: stateDir, Stderr: stderr})
		if err == nil {
			return closer
		}
	}
	if logging.Debug() && stderr {
		logging.Configure(log.StandardLogger(), os.Stderr, log.DebugLevel)
	} else {
		log.SetOutput(io.Discard)
	}
	return io.NopCloser(nil)
}

// newEngine builds the engine with the sqlite cursor index unless disabled.
// The store is nil when running without an index.
func newEngine(opts *rootOptions) (*engine.Engine, *index.Store) {
	paths := engine.Paths{Config: opts.configPath, Data: opts.dataPath}
	if opts.noIndex {
		return engine.New(paths), nil
	}
	dbPath, err := index.DefaultDBPath()
	if err != nil {
		log.WithError(err).Warn("index: no state dir, running without cursor index")
		return engine.New(paths), nil
	}
	store, err := index.OpenStore(dbPath)
	if err != nil {
		log.WithError(err).WithField("path", dbPath).Warn("index: open failed, running without cursor index")
		return engine.New(paths), nil
	}
	return engine.New(paths, engine.WithIndex(store)), store
}

func closeStore(store *index.Store) {
	if store != nil {
		store.Close()
	}
}
