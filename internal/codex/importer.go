package codex

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

const (
	sessionFileExt = ".jsonl"

	readBufferSize    = 64 * 1024
	fingerprintWindow = 4096
)

// Cursor is the per-file bookkeeping that lets an unchanged file be skipped
// and a grown file be resumed from where the last read stopped.
type Cursor struct {
	Path        string    `json:"path"`
	ModTime     time.Time `json:"mod_time"`
	Size        int64     `json:"size"`
	Offset      int64     `json:"offset"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
	// Fingerprint hashes the bytes just before Offset so a rewritten file
	// is not mistaken for an appended one.
	Fingerprint string `json:"fingerprint"`
}

// PersistedCursor is a cursor plus the encoded session state it resumes.
type PersistedCursor struct {
	Cursor Cursor
	State  []byte
}

// CursorIndex persists cursors across restarts. Failures are logged and
// otherwise ignored; the in-memory cache stays authoritative.
type CursorIndex interface {
	LoadCursors(ctx context.Context, root string) ([]PersistedCursor, error)
	SaveCursors(ctx context.Context, root string, cursors []PersistedCursor) error
	DeleteCursors(ctx context.Context, root string, paths []string) error
}

type Options struct {
	Root         string
	DefaultModel string
}

type Report struct {
	FilesDiscovered  int      `json:"files_discovered"`
	FilesRefreshed   int      `json:"files_refreshed"`
	ParseErrorFiles  []string `json:"parse_error_files"`
	NoUsageFiles     []string `json:"no_usage_or_limits_files"`
	UnreadableFiles  []string `json:"unreadable_files"`
	UnreadableDirs   int      `json:"unreadable_dirs"`
	FallbackIdentity int      `json:"entries_using_fallback_identity"`
	BytesRead        int64    `json:"bytes_read"`
	// Changed is set when a file appeared, disappeared or was re-read.
	Changed bool `json:"changed"`
}

type Result struct {
	Entries []core.UsageEntry
	Limits  []core.RateLimitSnapshot // per file, at most one per window
	Report  Report
}

type fileRecord struct {
	cursor Cursor
	state  SessionState
}

type Importer struct {
	mu      sync.Mutex
	root    string
	files   map[string]*fileRecord
	loaded  bool
	index   CursorIndex
	workers int
}

type Option func(*Importer)

func WithIndex(idx CursorIndex) Option {
	return func(im *Importer) { im.index = idx }
}

func WithWorkers(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

func NewImporter(opts ...Option) *Importer {
	im := &Importer{
		files:   make(map[string]*fileRecord),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Cursors returns a copy of the cursor cache ordered by path.
func (im *Importer) Cursors() []Cursor {
	im.mu.Lock()
	defer im.mu.Unlock()
	out := make([]Cursor, 0, len(im.files))
	for _, rec := range im.files {
		out = append(out, rec.cursor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

type discoveredFile struct {
	path    string
	modTime time.Time
	size    int64
}

type fileOutcome struct {
	path       string
	record     *fileRecord
	refreshed  bool
	unreadable bool
	bytesRead  int64
}

// Import runs one discovery and parse pass. Calls are serialized. Per-file
// failures are reported in the result; only context cancellation is
// returned as an error.
func (im *Importer) Import(ctx context.Context, opts Options) (Result, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	root := filepath.Clean(opts.Root)
	if root != im.root {
		im.root = root
		im.files = make(map[string]*fileRecord)
		im.loaded = false
	}
	if !im.loaded {
		im.loadIndex(ctx)
		im.loaded = true
	}

	found, unreadableDirs, err := discover(root)
	if err != nil {
		return Result{}, err
	}
	report := Report{
		FilesDiscovered: len(found),
		UnreadableDirs:  unreadableDirs,
	}

	outcomes := make([]fileOutcome, len(found))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for i, f := range found {
		prev := im.files[f.path]
		if prev != nil && prev.cursor.ModTime.Equal(f.modTime) && prev.cursor.Size == f.size {
			outcomes[i] = fileOutcome{path: f.path, record: prev}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = refreshFile(f, prev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	seen := make(map[string]struct{}, len(found))
	var saved []PersistedCursor
	var removed []string
	var result Result
	for _, out := range outcomes {
		seen[out.path] = struct{}{}
		report.BytesRead += out.bytesRead
		if out.unreadable {
			report.UnreadableFiles = append(report.UnreadableFiles, out.path)
			if _, had := im.files[out.path]; had {
				delete(im.files, out.path)
				removed = append(removed, out.path)
				report.Changed = true
			}
			continue
		}

		rec := out.record
		im.files[out.path] = rec
		if out.refreshed {
			report.FilesRefreshed++
			report.Changed = true
		}
		if out.refreshed && im.index != nil {
			if p, err := persist(rec); err == nil {
				saved = append(saved, p)
			}
		}

		if rec.state.ParseError() {
			report.ParseErrorFiles = append(report.ParseErrorFiles, out.path)
		}
		if rec.state.NoUsage() {
			report.NoUsageFiles = append(report.NoUsageFiles, out.path)
		}

		c := rec.state.Contribute(out.path, rec.cursor.ModTime, opts.DefaultModel)
		if c.Entry != nil {
			result.Entries = append(result.Entries, *c.Entry)
			if c.Entry.FallbackIdentity {
				report.FallbackIdentity++
			}
		}
		result.Limits = append(result.Limits, c.Limits...)
	}

	for path := range im.files {
		if _, ok := seen[path]; !ok {
			removed = append(removed, path)
			delete(im.files, path)
		}
	}
	if len(removed) > 0 {
		report.Changed = true
		sort.Strings(removed)
	}

	im.syncIndex(ctx, saved, removed)

	result.Report = report
	return result, nil
}

func (im *Importer) loadIndex(ctx context.Context) {
	if im.index == nil {
		return
	}
	persisted, err := im.index.LoadCursors(ctx, im.root)
	if err != nil {
		log.WithError(err).WithField("root", im.root).Warn("codex: cursor index load failed")
		return
	}
	for _, p := range persisted {
		var state SessionState
		if err := json.Unmarshal(p.State, &state); err != nil {
			log.WithError(err).WithField("path", p.Cursor.Path).Debug("codex: dropping undecodable cursor state")
			continue
		}
		im.files[p.Cursor.Path] = &fileRecord{cursor: p.Cursor, state: state}
	}
	log.WithField("root", im.root).WithField("cursors", len(persisted)).Debug("codex: cursor index loaded")
}

func (im *Importer) syncIndex(ctx context.Context, saved []PersistedCursor, removed []string) {
	if im.index == nil {
		return
	}
	if len(saved) > 0 {
		if err := im.index.SaveCursors(ctx, im.root, saved); err != nil {
			log.WithError(err).Warn("codex: cursor index save failed")
		}
	}
	if len(removed) > 0 {
		if err := im.index.DeleteCursors(ctx, im.root, removed); err != nil {
			log.WithError(err).Warn("codex: cursor index delete failed")
		}
	}
}

func persist(rec *fileRecord) (PersistedCursor, error) {
	data, err := json.Marshal(rec.state)
	if err != nil {
		return PersistedCursor{}, err
	}
	return PersistedCursor{Cursor: rec.cursor, State: data}, nil
}

// discover walks root for session logs. A missing root yields no files;
// unreadable subdirectories are counted and skipped.
func discover(root string) ([]discoveredFile, int, error) {
	var files []discoveredFile
	unreadableDirs := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			if d == nil || d.IsDir() {
				unreadableDirs++
				if path == root {
					return filepath.SkipAll
				}
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), sessionFileExt) {
			return nil
		}
		f := discoveredFile{path: path}
		if info, err := d.Info(); err == nil {
			f.modTime = info.ModTime()
			f.size = info.Size()
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, unreadableDirs, fmt.Errorf("codex: walking %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, unreadableDirs, nil
}

func refreshFile(f discoveredFile, prev *fileRecord) fileOutcome {
	out := fileOutcome{path: f.path, refreshed: true}

	file, err := os.Open(f.path)
	if err != nil {
		log.WithError(err).WithField("path", f.path).Debug("codex: session unreadable")
		out.unreadable = true
		return out
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		out.unreadable = true
		return out
	}

	rec := &fileRecord{cursor: Cursor{Path: f.path, ModTime: info.ModTime(), Size: info.Size()}}
	if prev != nil && canResume(file, info.Size(), prev.cursor) {
		rec.state = prev.state.clone()
		rec.cursor.Offset = prev.cursor.Offset
		if _, err := file.Seek(prev.cursor.Offset, io.SeekStart); err != nil {
			rec.state = SessionState{}
			rec.cursor.Offset = 0
		}
	}
	if rec.cursor.Offset == 0 {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			out.unreadable = true
			return out
		}
	}

	n, err := readLines(file, &rec.state)
	out.bytesRead = n
	if err != nil {
		log.WithError(err).WithField("path", f.path).Debug("codex: session read failed")
		out.unreadable = true
		return out
	}
	rec.cursor.Offset += n
	rec.cursor.LastEventAt = rec.state.LastTokenEventAt
	if rec.cursor.Fingerprint, err = fingerprint(file, rec.cursor.Offset); err != nil {
		// An empty fingerprint never matches, so the next change re-reads in full.
		log.WithError(err).WithField("path", f.path).Debug("codex: fingerprint failed")
	}

	out.record = rec
	return out
}

// canResume reports whether the file only grew since cur was taken.
func canResume(file *os.File, size int64, cur Cursor) bool {
	if cur.Offset <= 0 || size < cur.Size || size < cur.Offset {
		return false
	}
	fp, err := fingerprint(file, cur.Offset)
	return err == nil && fp == cur.Fingerprint
}

func fingerprint(file *os.File, offset int64) (string, error) {
	start := offset - fingerprintWindow
	if start < 0 {
		start = 0
	}
	buf := make([]byte, offset-start)
	if _, err := file.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// readLines streams complete lines into state and returns the bytes
// consumed. A trailing line without a newline is consumed only when it is a
// complete JSON value. A truncated value is retried next cycle as a
// half-written event; one that is already a syntax error is left unconsumed
// too but flags the state as PendingMalformed.
func readLines(r io.Reader, state *SessionState) (int64, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	state.PendingMalformed = false
	var consumed int64
	for {
		line, err := br.ReadBytes('\n')
		if err == nil {
			_ = state.Apply(line)
			consumed += int64(len(line))
			continue
		}
		if errors.Is(err, io.EOF) {
			switch tail := bytes.TrimSpace(line); {
			case len(tail) == 0:
			case json.Valid(tail):
				_ = state.Apply(line)
				consumed += int64(len(line))
			default:
				state.PendingMalformed = !truncatedJSON(tail)
			}
			return consumed, nil
		}
		return consumed, err
	}
}

// truncatedJSON reports whether b is a prefix of some valid JSON value.
func truncatedJSON(b []byte) bool {
	var v json.RawMessage
	err := json.NewDecoder(bytes.NewReader(b)).Decode(&v)
	return errors.Is(err, io.ErrUnexpectedEOF)
}
