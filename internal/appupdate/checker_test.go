package appupdate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestCanonicalRelease(t *testing.T) {
	tests := map[string]string{
		"v1.2.3":      "v1.2.3",
		"1.2.3":       "v1.2.3",
		"v1.2":        "v1.2.0",
		"v1.2.3-rc.1": "",
		"dev":         "",
		"":            "",
	}
	for in, want := range tests {
		if got := canonicalRelease(in); got != want {
			t.Errorf("canonicalRelease(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUpgradeHint(t *testing.T) {
	if got := upgradeHint(executablePath("/opt/homebrew/Cellar/promptpetrol/0.3.0/bin/promptpetrol")); !strings.HasPrefix(got, "brew upgrade") {
		t.Errorf("homebrew hint = %q", got)
	}
	if got := upgradeHint(executablePath("/home/u/go/bin/promptpetrol")); !strings.HasPrefix(got, "go install") {
		t.Errorf("go install hint = %q", got)
	}
	if got := upgradeHint("/tmp/promptpetrol"); !strings.Contains(got, "/releases") {
		t.Errorf("default hint = %q", got)
	}
}

func TestCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"v0.4.0"}`))
	}))
	defer server.Close()

	tests := []struct {
		current string
		want    bool
	}{
		{"v0.3.1", true},
		{"0.4.0", false},
		{"v0.5.0", false},
	}
	for _, tt := range tests {
		res, err := Check(context.Background(), Options{
			CurrentVersion: tt.current,
			Executable:     "/usr/local/bin/promptpetrol",
			ReleaseURL:     server.URL,
			Client:         server.Client(),
			Timeout:        time.Second,
		})
		if err != nil {
			t.Fatalf("Check(%s) error = %v", tt.current, err)
		}
		if res.UpdateAvailable != tt.want || res.LatestVersion != "v0.4.0" {
			t.Errorf("Check(%s) = %+v, want update=%v", tt.current, res, tt.want)
		}
	}
}

func TestCheckSkipsDevBuild(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	res, err := Check(context.Background(), Options{CurrentVersion: "dev", ReleaseURL: server.URL, Client: server.Client()})
	if err != nil || res.UpdateAvailable {
		t.Fatalf("Check(dev) = %+v, %v", res, err)
	}
	if hits.Load() != 0 {
		t.Fatalf("dev build made %d requests, want 0", hits.Load())
	}
}

func TestCheckBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := Check(context.Background(), Options{CurrentVersion: "v1.0.0", ReleaseURL: server.URL, Client: server.Client()})
	if err == nil || !strings.Contains(err.Error(), "HTTP 403") {
		t.Fatalf("Check() error = %v, want HTTP 403", err)
	}
}
