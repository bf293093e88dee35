// Package watcher turns filesystem events into coalesced wake-up hints.
// Hints only shorten the wait before the next cycle; the importer's own
// mtime/size check stays the source of truth, so a dropped event costs at
// most one poll interval.
package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const sessionExt = ".jsonl"

type Watcher struct {
	fsw   *fsnotify.Watcher
	files map[string]struct{}
	roots []string
	hints chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// New watches every directory under each root for session log changes and
// the parent directory of each file for changes to that file. Roots that do
// not exist yet are skipped.
func New(roots, files []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:   fsw,
		files: make(map[string]struct{}, len(files)),
		hints: make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
	for _, root := range roots {
		root = filepath.Clean(root)
		w.roots = append(w.roots, root)
		w.addTree(root)
	}
	for _, f := range files {
		f = filepath.Clean(f)
		w.files[f] = struct{}{}
		if err := fsw.Add(filepath.Dir(f)); err != nil {
			log.WithError(err).WithField("path", f).Debug("watcher: cannot watch file dir")
		}
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Hints delivers at most one pending wake-up; bursts collapse into one.
func (w *Watcher) Hints() <-chan struct{} {
	return w.hints
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.WithError(err).Debug("watcher: fsnotify error")
			// Overflowed queues lose events; wake the host so it rescans.
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.notify()
			}
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Clean(event.Name)
	if event.Has(fsnotify.Create) && w.underRoot(name) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			w.addTree(name)
			w.notify()
			return
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if _, ok := w.files[name]; ok {
		w.notify()
		return
	}
	if strings.EqualFold(filepath.Ext(name), sessionExt) && w.underRoot(name) {
		w.notify()
	}
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			log.WithError(err).WithField("path", path).Debug("watcher: add failed")
		}
		return nil
	})
}

func (w *Watcher) notify() {
	select {
	case w.hints <- struct{}{}:
	default:
	}
}
