package tooling

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/vormadev/kiln/kiln/internal/devserver"
	"github.com/vormadev/kiln/kit/fsutil"
	"github.com/vormadev/kiln/kit/globutil"
	"github.com/vormadev/kiln/kit/tasks"
	"golang.org/x/sync/errgroup"
)

// Dev runs the "server" alias (clean, initial build, watch) with a
// LiveReload server alongside it, until ctx is cancelled or a step fails.
func (b *Builder) Dev(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if b.reloader == nil && b.cfg.LiveReload.Enabled {
		lr := devserver.NewLiveReload(b.cfg.LiveReload.Port, b.log)
		b.reloader = lr
		g.Go(func() error { return lr.ListenAndServe(gCtx) })
	}
	g.Go(func() error {
		defer cancel()
		return b.Run(gCtx, "server")
	})
	return g.Wait()
}

// watch blocks until the context is cancelled, rebuilding the watch
// targets whose patterns match changed files.
func (b *Builder) watch(tctx *tasks.Ctx) error {
	ctx := tctx.Context()

	w := b.watcher
	if w == nil {
		fw, err := NewFSWatcher(b.cfg.Root, b.cfg.Watch.Exclude, b.log)
		if err != nil {
			return err
		}
		w = fw
	}
	defer w.Close()

	if err := w.AddDir(b.cfg.Root); err != nil {
		return err
	}

	debouncer := NewDebouncer(b.cfg.Watch.Debounce, func(events []fsnotify.Event) {
		b.processEvents(ctx, w, events)
	})
	defer debouncer.Stop()

	names := make([]string, 0, len(b.cfg.Watch.Targets))
	for name := range b.cfg.Watch.Targets {
		names = append(names, name)
	}
	slices.Sort(names)
	b.log.Info("Watching for changes", "root", b.cfg.Root, "targets", strings.Join(names, ","))

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events():
			if !ok {
				return nil
			}
			debouncer.Add(evt)
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			b.log.Error("Watcher error", "error", err)
		}
	}
}

// changeSet is one debounced batch, reduced to what needs rebuilding.
type changeSet struct {
	targets []string
	steps   []string
	paths   []string
}

func (b *Builder) processEvents(ctx context.Context, w Watcher, events []fsnotify.Event) {
	if ctx.Err() != nil {
		return
	}

	byPath := make(map[string]fsnotify.Event, len(events))
	for _, evt := range events {
		if prev, ok := byPath[evt.Name]; ok {
			evt.Op |= prev.Op
		}
		byPath[evt.Name] = evt
	}

	var files, dirs []string
	for name, evt := range byPath {
		rel, err := b.relPath(name)
		if err != nil || rel == "." || strings.HasPrefix(rel, "../") {
			continue
		}
		info, statErr := os.Stat(name)
		switch {
		case statErr == nil && info.IsDir():
			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			if err := w.AddDir(name); err != nil {
				b.log.Warn("Cannot watch new directory", "dir", name, "error", err)
			}
			dirs = append(dirs, rel)
		case statErr != nil && w.Watched(name):
			dirs = append(dirs, rel)
		case permissionOnly(evt):
		default:
			files = append(files, rel)
		}
	}
	w.RemoveStale()

	cs := b.match(files, dirs)
	if len(cs.steps) == 0 {
		return
	}

	b.log.Info("Files changed", "files", len(cs.paths), "targets", strings.Join(cs.targets, ","))
	if err := b.registry.Run(tasks.NewCtx(ctx), cs.steps...); err != nil {
		if ctx.Err() == nil {
			b.log.Error("Rebuild failed", "error", err)
		}
		return
	}
	if b.reloader != nil {
		b.reloader.Reload(b.reloadPaths(cs.paths)...)
	}
}

func (b *Builder) relPath(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}
	return fsutil.Rel(b.cfg.Root, abs)
}

// match maps changed files and directories to watch targets and the
// de-duplicated steps they run, in target name order. A directory counts
// when files below it could match a target. Generated files are never a
// trigger.
func (b *Builder) match(files, dirs []string) changeSet {
	var cs changeSet
	generated := path.Clean(b.cfg.Style.Entry)

	names := make([]string, 0, len(b.cfg.Watch.Targets))
	for name := range b.cfg.Watch.Targets {
		names = append(names, name)
	}
	slices.Sort(names)
	slices.Sort(files)
	slices.Sort(dirs)

	seenPath := make(map[string]bool)
	hitPath := func(rel string) {
		if !seenPath[rel] {
			seenPath[rel] = true
			cs.paths = append(cs.paths, rel)
		}
	}
	for _, name := range names {
		target := b.cfg.Watch.Targets[name]
		hit := false
		for _, rel := range files {
			if rel != generated && globutil.Match(target.Files, rel) {
				hit = true
				hitPath(rel)
			}
		}
		for _, rel := range dirs {
			if globutil.MatchDir(target.Files, rel) {
				hit = true
				hitPath(rel)
			}
		}
		if !hit {
			continue
		}
		cs.targets = append(cs.targets, name)
		for _, step := range b.withNotify(target.Tasks...) {
			if !slices.Contains(cs.steps, step) {
				cs.steps = append(cs.steps, step)
			}
		}
	}
	return cs
}

// reloadPaths swaps Sass sources for the compiled stylesheet so clients
// can refresh CSS without a full page reload.
func (b *Builder) reloadPaths(changed []string) []string {
	var out []string
	for _, p := range changed {
		switch path.Ext(p) {
		case ".scss", ".sass":
			p = b.cfg.Style.Output
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
