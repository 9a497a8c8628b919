package tasks

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrUnknownTask = errors.New("unknown task")

// Func is a named step.
type Func func(ctx *Ctx) error

type entry struct {
	help       string
	fn         Func
	steps      []string
	concurrent bool
}

func (e entry) isAlias() bool { return e.fn == nil }

// Registry is not safe for concurrent registration; register everything
// before calling Run.
type Registry struct {
	log     *slog.Logger
	entries map[string]entry
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{log: log, entries: make(map[string]entry)}
}

func (r *Registry) Register(name, help string, fn Func) {
	r.entries[name] = entry{help: help, fn: fn}
}

// Alias runs steps one after another, stopping at the first failure.
func (r *Registry) Alias(name string, steps ...string) {
	r.entries[name] = entry{help: strings.Join(steps, ", "), steps: steps}
}

// Concurrent runs steps at the same time and waits for all of them.
func (r *Registry) Concurrent(name string, steps ...string) {
	r.entries[name] = entry{help: "concurrent: " + strings.Join(steps, ", "), steps: steps, concurrent: true}
}

func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe returns the help text of a step, or the steps of an alias.
func (r *Registry) Describe(name string) string {
	return r.entries[name].help
}

// Expand flattens names into the leaf steps they would run, in order.
// Concurrent groups are flattened in declaration order.
func (r *Registry) Expand(names ...string) ([]string, error) {
	var out []string
	var walk func(name string, stack []string) error
	walk = func(name string, stack []string) error {
		e, ok := r.entries[name]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownTask, name)
		}
		if slices.Contains(stack, name) {
			return fmt.Errorf("tasks: alias cycle %s -> %s", strings.Join(stack, " -> "), name)
		}
		if !e.isAlias() {
			out = append(out, name)
			return nil
		}
		for _, step := range e.steps {
			if err := walk(step, append(stack, name)); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := walk(name, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Run executes names in order. Leaf errors are wrapped as `task "name": ...`.
func (r *Registry) Run(ctx *Ctx, names ...string) error {
	if _, err := r.Expand(names...); err != nil {
		return err
	}
	for _, name := range names {
		if err := r.run(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) run(ctx *Ctx, name string) error {
	if err := ctx.ctx.Err(); err != nil {
		return err
	}
	e := r.entries[name]

	if !e.isAlias() {
		start := time.Now()
		r.log.Info("START", "task", name)
		if err := e.fn(ctx); err != nil {
			return fmt.Errorf("task %q: %w", name, err)
		}
		r.log.Info("DONE", "task", name, "duration", time.Since(start).Round(time.Millisecond))
		return nil
	}

	if !e.concurrent {
		for _, step := range e.steps {
			if err := r.run(ctx, step); err != nil {
				return err
			}
		}
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx.ctx)
	shared := ctx.withContext(gCtx)
	for _, step := range e.steps {
		g.Go(func() error { return r.run(shared, step) })
	}
	return g.Wait()
}
