// Package logging configures the process-wide logrus logger. The dashboard
// owns the terminal, so logs go to a rotating file in the state dir.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const DebugEnv = "PROMPTPETROL_DEBUG"

type Options struct {
	StateDir string
	// Stderr mirrors log output to stderr when debugging. Set for
	// subcommands that do not take over the terminal.
	Stderr bool
}

// Debug reports whether PROMPTPETROL_DEBUG is set to a truthy value.
func Debug() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(DebugEnv))) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

// Setup points the standard logger at <StateDir>/promptpetrol.log and
// returns a closer for the rotating writer.
func Setup(opts Options) (io.Closer, error) {
	if err := os.MkdirAll(opts.StateDir, 0o755); err != nil {
		return nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(opts.StateDir, "promptpetrol.log"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     14,
	}

	var out io.Writer = rotator
	level := log.InfoLevel
	if Debug() {
		level = log.DebugLevel
		if opts.Stderr {
			out = io.MultiWriter(rotator, os.Stderr)
		}
	}
	Configure(log.StandardLogger(), out, level)
	return rotator, nil
}

func Configure(logger *log.Logger, out io.Writer, level log.Level) {
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(&log.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
}
