package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func DefaultStateDir() (string, error) {
	if base := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); base != "" {
		return filepath.Join(base, "promptpetrol"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("index: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".local", "state", "promptpetrol"), nil
}

func DefaultDBPath() (string, error) {
	stateDir, err := DefaultStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(stateDir, "index.db"), nil
}
