// Package tooling wires kiln's build steps into named tasks and aliases and
// runs them once or under the file watcher.
package tooling

import (
	"context"
	"io"
	"log/slog"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/vormadev/kiln/kiln/internal/bundle"
	"github.com/vormadev/kiln/kiln/internal/config"
	"github.com/vormadev/kiln/kiln/internal/devserver"
	"github.com/vormadev/kiln/kiln/internal/pages"
	"github.com/vormadev/kiln/kiln/internal/rev"
	"github.com/vormadev/kiln/kiln/internal/style"
	"github.com/vormadev/kiln/kiln/internal/transform"
	"github.com/vormadev/kiln/kit/colorlog"
	"github.com/vormadev/kiln/kit/tasks"
)

// Reloader tells connected browsers that paths changed.
type Reloader interface {
	Reload(paths ...string)
}

type Options struct {
	Config *config.Config
	Log    *slog.Logger
	// Compiler defaults to Dart Sass.
	Compiler style.Compiler
	// Notifier defaults to a desktop notifier that also logs.
	Notifier devserver.Notifier
	// Reloader defaults to a LiveReload server started by Dev when enabled.
	Reloader Reloader
	// Watcher defaults to an FSWatcher over the project root.
	Watcher Watcher
	// Lister defaults to the real filesystem under the project root.
	Lister pages.Lister
}

type Builder struct {
	cfg      *config.Config
	log      *slog.Logger
	compiler style.Compiler
	notifier devserver.Notifier
	reloader Reloader
	watcher  Watcher
	lister   pages.Lister
	engines  []esbuild.Engine

	registry     *tasks.Registry
	prepare      *tasks.Task[struct{}, bundle.Set]
	concatTarget *tasks.Task[string, int]
	revision     *tasks.Task[struct{}, rev.Summary]
}

func New(opts Options) (*Builder, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = colorlog.New("kiln")
	}

	engines, err := transform.ParseTargets(cfg.Style.Targets)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		cfg:      cfg,
		log:      log,
		compiler: opts.Compiler,
		notifier: opts.Notifier,
		reloader: opts.Reloader,
		watcher:  opts.Watcher,
		lister:   opts.Lister,
		engines:  engines,
		registry: tasks.NewRegistry(log),
	}
	if b.compiler == nil {
		b.compiler = &style.DartSass{Binary: cfg.Style.DartSassBinary}
	}
	if b.notifier == nil {
		b.notifier = devserver.NewDesktopNotifier(log)
	}
	if b.lister == nil {
		b.lister = pages.OSLister{Dir: cfg.Root}
	}
	b.prepare = tasks.NewTask(b.prepareBundles)
	b.concatTarget = tasks.NewTask(b.concatBundle)
	b.revision = tasks.NewTask(b.revisionFiles)

	b.registerTasks()
	if err := b.checkWatchTargets(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Builder) Config() *config.Config {
	return b.cfg
}

func (b *Builder) Registry() *tasks.Registry {
	return b.registry
}

// Run executes names in order in a fresh execution context, so every
// memoized step (page discovery, revisioning) is recomputed.
func (b *Builder) Run(ctx context.Context, names ...string) error {
	return b.registry.Run(tasks.NewCtx(ctx), names...)
}

// Bundles discovers page bundles and returns them merged with the main
// bundle.
func (b *Builder) Bundles(ctx context.Context) (bundle.Set, error) {
	return b.prepare.Run(tasks.NewCtx(ctx), struct{}{})
}

// Close releases the compiler when it holds resources.
func (b *Builder) Close() error {
	if c, ok := b.compiler.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
