// Package detect looks for provider API keys in the environment and for a
// local Codex CLI install whose session logs can be imported.
package detect

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

type envKey struct {
	EnvVar   string
	Provider string
}

// Checked in order; the first variable set for a provider wins.
var envKeys = []envKey{
	{"OPENAI_API_KEY", "openai"},
	{"ANTHROPIC_API_KEY", "anthropic"},
	{"GEMINI_API_KEY", "gemini"},
	{"GOOGLE_API_KEY", "gemini"},
	{"CODEX_API_KEY", "codex"},
}

type Key struct {
	Provider string
	EnvVar   string
	Value    string
}

type Result struct {
	Keys []Key

	CodexBinary string
	// SessionsDir is set only when the directory exists.
	SessionsDir string
}

// Env abstracts os.Getenv for tests.
type Env func(string) string

func Detect(getenv Env) Result {
	if getenv == nil {
		getenv = os.Getenv
	}
	var res Result

	seen := map[string]bool{}
	for _, k := range envKeys {
		val := strings.TrimSpace(getenv(k.EnvVar))
		if val == "" || seen[k.Provider] {
			continue
		}
		seen[k.Provider] = true
		log.WithField("env", k.EnvVar).Debug("detect: found api key")
		res.Keys = append(res.Keys, Key{Provider: k.Provider, EnvVar: k.EnvVar, Value: val})
	}

	if bin, err := exec.LookPath("codex"); err == nil {
		res.CodexBinary = bin
	}
	if dir := codexSessionsDir(getenv); dirExists(dir) {
		res.SessionsDir = dir
	}
	return res
}

func codexSessionsDir(getenv Env) string {
	if home := strings.TrimSpace(getenv("CODEX_HOME")); home != "" {
		return filepath.Join(home, "sessions")
	}
	home := strings.TrimSpace(getenv("HOME"))
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".codex", "sessions")
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (r Result) Summary() string {
	var sb strings.Builder
	switch {
	case r.SessionsDir != "":
		fmt.Fprintf(&sb, "Codex sessions: %s\n", r.SessionsDir)
	case r.CodexBinary != "":
		fmt.Fprintf(&sb, "Codex CLI at %s, no sessions yet\n", r.CodexBinary)
	}
	for _, k := range r.Keys {
		fmt.Fprintf(&sb, "  • %s key from $%s\n", k.Provider, k.EnvVar)
	}
	if sb.Len() == 0 {
		sb.WriteString("No API keys or Codex sessions detected.\n")
	}
	return sb.String()
}
