package tooling

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/vormadev/kiln/kit/colorlog"
	"github.com/vormadev/kiln/kit/fsutil"
)

// Directories never watched, relative to the watch root. Each is ignored
// together with everything below it.
var alwaysIgnored = []string{"**/.git", "**/node_modules"}

// Watcher delivers filesystem events for a directory tree.
type Watcher interface {
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	// AddDir watches root and every directory below it that is not ignored.
	AddDir(root string) error
	// Watched reports whether path is a directory being watched. It still
	// answers for a removed directory until RemoveStale runs.
	Watched(path string) bool
	// RemoveStale forgets directories that no longer exist.
	RemoveStale()
	Close() error
}

// FSWatcher is the fsnotify-backed Watcher. fsnotify is not recursive, so
// every directory is added on its own and new ones are added as they appear.
type FSWatcher struct {
	log     *slog.Logger
	fsWatch *fsnotify.Watcher
	root    string

	watchedDirs sync.Map
	ignoredDirs []string
}

// NewFSWatcher watches nothing until AddDir is called. exclude lists
// directories, relative to root, that are never watched.
func NewFSWatcher(root string, exclude []string, log *slog.Logger) (*FSWatcher, error) {
	if log == nil {
		log = colorlog.New("watch")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSWatcher{log: log, fsWatch: fsWatch, root: abs}
	for _, p := range alwaysIgnored {
		w.ignoredDirs = append(w.ignoredDirs, p, p+"/**")
	}
	for _, p := range exclude {
		p = filepath.ToSlash(filepath.Clean(p))
		w.ignoredDirs = append(w.ignoredDirs, p, p+"/**")
	}
	return w, nil
}

func (w *FSWatcher) Events() <-chan fsnotify.Event {
	return w.fsWatch.Events
}

func (w *FSWatcher) Errors() <-chan error {
	return w.fsWatch.Errors
}

func (w *FSWatcher) Close() error {
	return w.fsWatch.Close()
}

func (w *FSWatcher) AddDir(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if w.IsIgnoredDir(path) {
			return filepath.SkipDir
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if _, exists := w.watchedDirs.Load(abs); exists {
			return nil
		}
		if err := w.fsWatch.Add(abs); err != nil {
			return err
		}
		w.watchedDirs.Store(abs, true)
		return nil
	})
}

func (w *FSWatcher) Watched(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	_, ok := w.watchedDirs.Load(abs)
	return ok
}

func (w *FSWatcher) RemoveStale() {
	w.watchedDirs.Range(func(key, _ any) bool {
		path := key.(string)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			w.fsWatch.Remove(path)
			w.watchedDirs.Delete(path)
		}
		return true
	})
}

// IsIgnoredDir reports whether path (absolute or relative to the working
// directory) falls under an ignored directory.
func (w *FSWatcher) IsIgnoredDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := fsutil.Rel(w.root, abs)
	if err != nil || rel == "." {
		return false
	}
	for _, pattern := range w.ignoredDirs {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			w.log.Error("Pattern match error", "pattern", pattern, "path", rel, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Debouncer hands events to its callback once none has arrived for the
// quiet period. One goroutine runs every callback, so batches never
// overlap; events added during a callback form the next batch.
type Debouncer struct {
	quiet    time.Duration
	callback func([]fsnotify.Event)

	mu     sync.Mutex
	queue  []fsnotify.Event
	closed bool

	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewDebouncer(quiet time.Duration, cb func([]fsnotify.Event)) *Debouncer {
	d := &Debouncer{
		quiet:    quiet,
		callback: cb,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Debouncer) Add(evt fsnotify.Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, evt)
	d.mu.Unlock()

	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *Debouncer) take() []fsnotify.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	batch := d.queue
	d.queue = nil
	return batch
}

func (d *Debouncer) loop() {
	defer close(d.done)
	timer := time.NewTimer(d.quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-d.kick:
			timer.Reset(d.quiet)
		case <-timer.C:
			if batch := d.take(); len(batch) > 0 {
				d.callback(batch)
			}
		}
	}
}

// Stop drops queued events, ignores later ones and waits for a running
// callback to return. It must not be called from the callback.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.queue = nil
		d.mu.Unlock()
		close(d.stop)
	})
	<-d.done
}

// permissionOnly reports a mode change on a file that already has content.
// A chmod on an empty file still counts: some editors create the file,
// chmod it, then write.
func permissionOnly(evt fsnotify.Event) bool {
	if evt.Op != fsnotify.Chmod {
		return false
	}
	info, err := os.Stat(evt.Name)
	return err == nil && info.Size() > 0
}
