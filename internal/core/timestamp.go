package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = [...]string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// ParseTimestamp normalizes a timestamp to UTC. Besides RFC 3339 it takes
// naive datetimes (read as UTC) and integer unix times in s, ms or µs.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
		return UnixAuto(n), nil
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", value, ErrMalformed)
}

// UnixAuto picks the unit from the magnitude of ts.
func UnixAuto(ts int64) time.Time {
	if ts > 1e15 {
		return time.UnixMicro(ts).UTC()
	}
	if ts > 1e12 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// FirstNonEmpty returns the first value that is not blank, trimmed.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
