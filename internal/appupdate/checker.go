// Package appupdate compares the running build against the latest
// published release.
package appupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	defaultReleaseURL = "https://api.github.com/repos/janekbaraniewski/promptpetrol/releases/latest"
	defaultTimeout    = 2 * time.Second
	binaryName        = "promptpetrol"
)

type Options struct {
	CurrentVersion string
	Executable     string
	ReleaseURL     string
	Timeout        time.Duration
	Client         *http.Client
}

type Result struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	UpgradeHint     string
}

// Check fetches the latest release tag. Dev and prerelease builds are never
// compared, so Check returns early for them without a request.
func Check(ctx context.Context, opts Options) (Result, error) {
	current := canonicalRelease(opts.CurrentVersion)
	res := Result{CurrentVersion: current, UpgradeHint: upgradeHint(executablePath(opts.Executable))}
	if current == "" {
		return res, nil
	}

	latest, err := latestRelease(ctx, opts)
	if err != nil {
		return res, err
	}
	res.LatestVersion = latest
	res.UpdateAvailable = semver.Compare(latest, current) > 0
	return res, nil
}

func latestRelease(ctx context.Context, opts Options) (string, error) {
	url := strings.TrimSpace(opts.ReleaseURL)
	if url == "" {
		url = defaultReleaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", binaryName)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch latest release: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode release: %w", err)
	}
	latest := canonicalRelease(payload.TagName)
	if latest == "" {
		return "", fmt.Errorf("latest release tag %q is not a stable version", payload.TagName)
	}
	return latest, nil
}

// canonicalRelease returns vMAJOR.MINOR.PATCH for stable versions and ""
// for anything else (dev builds, prereleases, build metadata).
func canonicalRelease(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return ""
	}
	return semver.Canonical(v)
}

func executablePath(explicit string) string {
	p := strings.TrimSpace(explicit)
	if p == "" {
		exe, err := os.Executable()
		if err != nil {
			return ""
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		p = exe
	}
	return strings.ToLower(filepath.ToSlash(filepath.Clean(p)))
}

func upgradeHint(exe string) string {
	switch {
	case strings.Contains(exe, "/cellar/"+binaryName+"/"):
		return "brew upgrade janekbaraniewski/tap/" + binaryName
	case strings.Contains(exe, "/go/bin/"+binaryName):
		return "go install github.com/janekbaraniewski/" + binaryName + "/cmd/" + binaryName + "@latest"
	default:
		return "download the latest release from https://github.com/janekbaraniewski/" + binaryName + "/releases"
	}
}
