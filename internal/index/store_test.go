package index

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/janekbaraniewski/promptpetrol/internal/codex"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreInit_CreatesTables(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("second Init: %v", err)
	}

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, "session_cursors").Scan(&name)
	if err != nil {
		t.Fatalf("table session_cursors missing: %v", err)
	}
}

func TestStoreSaveLoadDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	mod := time.Date(2026, 2, 22, 10, 0, 0, 123, time.UTC)

	cursors := []codex.PersistedCursor{
		{Cursor: codex.Cursor{Path: "/s/b.jsonl", ModTime: mod, Size: 40, Offset: 40, Fingerprint: "fb"}, State: []byte(`{"b":1}`)},
		{Cursor: codex.Cursor{Path: "/s/a.jsonl", ModTime: mod, Size: 10, Offset: 8, LastEventAt: mod.Add(-time.Minute), Fingerprint: "fa"}, State: []byte(`{"a":1}`)},
	}
	if err := store.SaveCursors(ctx, "/s", cursors); err != nil {
		t.Fatalf("SaveCursors: %v", err)
	}
	if err := store.SaveCursors(ctx, "/other", cursors[:1]); err != nil {
		t.Fatalf("SaveCursors other root: %v", err)
	}

	got, err := store.LoadCursors(ctx, "/s")
	if err != nil {
		t.Fatalf("LoadCursors: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d cursors, want 2", len(got))
	}
	if got[0].Cursor.Path != "/s/a.jsonl" || got[0].Cursor.Offset != 8 || string(got[0].State) != `{"a":1}` {
		t.Fatalf("first cursor = %+v", got[0])
	}
	if !got[0].Cursor.ModTime.Equal(mod) || !got[0].Cursor.LastEventAt.Equal(mod.Add(-time.Minute)) {
		t.Fatalf("times = %s / %s", got[0].Cursor.ModTime, got[0].Cursor.LastEventAt)
	}
	if !got[1].Cursor.LastEventAt.IsZero() {
		t.Fatalf("LastEventAt = %s, want zero", got[1].Cursor.LastEventAt)
	}

	cursors[0].Cursor.Offset = 80
	if err := store.SaveCursors(ctx, "/s", cursors[:1]); err != nil {
		t.Fatalf("SaveCursors upsert: %v", err)
	}
	if err := store.DeleteCursors(ctx, "/s", []string{"/s/a.jsonl"}); err != nil {
		t.Fatalf("DeleteCursors: %v", err)
	}
	got, err = store.LoadCursors(ctx, "/s")
	if err != nil {
		t.Fatalf("LoadCursors: %v", err)
	}
	if len(got) != 1 || got[0].Cursor.Offset != 80 {
		t.Fatalf("after upsert+delete = %+v", got)
	}

	other, _ := store.LoadCursors(ctx, "/other")
	if len(other) != 1 {
		t.Fatalf("other root cursors = %d, want 1", len(other))
	}
}

func TestStorePruneIdleRoots(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return now.Add(-60 * 24 * time.Hour) }
	if err := store.SaveCursors(ctx, "/old", []codex.PersistedCursor{{Cursor: codex.Cursor{Path: "/old/a.jsonl", ModTime: now}, State: []byte("{}")}}); err != nil {
		t.Fatal(err)
	}
	store.now = func() time.Time { return now }
	if err := store.SaveCursors(ctx, "/new", []codex.PersistedCursor{{Cursor: codex.Cursor{Path: "/new/a.jsonl", ModTime: now}, State: []byte("{}")}}); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Prune(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Roots != 1 || st.Cursors != 1 {
		t.Fatalf("stats = %+v, want 1 root / 1 cursor", st)
	}
}

func TestImporterRestartReadsNothing(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "2026", "02", "22", "rollout.jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	session := `{"timestamp":"2026-02-22T10:00:00Z","type":"session_meta","payload":{"id":"s","model_provider":"openai"}}` + "\n" +
		`{"timestamp":"2026-02-22T10:00:02Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":300,"output_tokens":100}}}}` + "\n"
	if err := os.WriteFile(path, []byte(session), 0o644); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(t.TempDir(), "index.db")
	run := func() codex.Result {
		store, err := OpenStore(dbPath)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		defer store.Close()
		res, err := codex.NewImporter(codex.WithIndex(store)).Import(context.Background(), codex.Options{Root: root, DefaultModel: "codex-cli"})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		return res
	}

	first := run()
	if first.Report.BytesRead == 0 || len(first.Entries) != 1 {
		t.Fatalf("first run = %+v", first.Report)
	}
	second := run()
	if second.Report.BytesRead != 0 {
		t.Fatalf("restart bytes_read = %d, want 0", second.Report.BytesRead)
	}
	if len(second.Entries) != 1 || second.Entries[0].InputTokens != 300 || second.Entries[0].Provider != "openai" {
		t.Fatalf("restored entries = %+v", second.Entries)
	}
}
