// Package tasks runs named build steps.
//
// A Task is a function that runs at most once per execution context (Ctx) and
// input pairing, no matter how many steps ask for its result. A fresh Ctx per
// build invocation therefore recomputes everything exactly once.
//
// A Registry maps names to steps and to aliases, which are ordered lists of
// other names run sequentially (stopping at the first failure) or
// concurrently.
package tasks

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"
)

type Task[I comparable, O any] struct {
	fn func(ctx *Ctx, input I) (O, error)
}

func NewTask[I comparable, O any](fn func(ctx *Ctx, input I) (O, error)) *Task[I, O] {
	if fn == nil {
		return nil
	}
	return &Task[I, O]{fn: fn}
}

func (t *Task[I, O]) Run(ctx *Ctx, input I) (O, error) {
	return runTask(ctx, t, input)
}

func (t *Task[I, O]) Bind(input I, dest *O) BoundTask {
	return &boundTask[O]{
		runner: func(ctx *Ctx) (O, error) { return runTask(ctx, t, input) },
		dest:   dest,
	}
}

type taskKey struct {
	taskPtr uintptr
	input   any
}

type result struct {
	once sync.Once
	data any
	err  error
}

// Ctx is one execution context. Results are shared by every Ctx derived
// from it through RunParallel.
type Ctx struct {
	mu      *sync.Mutex
	results map[taskKey]*result
	ctx     context.Context
}

func NewCtx(parent context.Context) *Ctx {
	if parent == nil {
		parent = context.Background()
	}
	return &Ctx{
		mu:      &sync.Mutex{},
		results: make(map[taskKey]*result, 4),
		ctx:     parent,
	}
}

// Context returns the native context for blocking operations.
func (c *Ctx) Context() context.Context {
	return c.ctx
}

func (c *Ctx) withContext(ctx context.Context) *Ctx {
	return &Ctx{mu: c.mu, results: c.results, ctx: ctx}
}

func (c *Ctx) resultFor(task any, input any) *result {
	key := taskKey{taskPtr: reflect.ValueOf(task).Pointer(), input: input}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[key]
	if !ok {
		r = &result{}
		c.results[key] = r
	}
	return r
}

func runTask[I comparable, O any](c *Ctx, task *Task[I, O], input I) (O, error) {
	var zero O
	if c == nil {
		return zero, errors.New("tasks: nil Ctx")
	}
	if task == nil || task.fn == nil {
		return zero, errors.New("tasks: invalid task")
	}
	if err := c.ctx.Err(); err != nil {
		return zero, err
	}

	r := c.resultFor(task, input)
	r.once.Do(func() {
		r.data, r.err = task.fn(c, input)
	})
	if r.err != nil {
		return zero, r.err
	}
	out, _ := r.data.(O)
	return out, nil
}

type BoundTask interface {
	Run(ctx *Ctx) error
}

type boundTask[O any] struct {
	runner func(ctx *Ctx) (O, error)
	dest   *O
}

func (b *boundTask[O]) Run(ctx *Ctx) error {
	res, err := b.runner(ctx)
	if err != nil {
		return err
	}
	if b.dest != nil {
		*b.dest = res
	}
	return nil
}

// RunParallel runs bound tasks concurrently, cancelling the rest on the
// first failure.
func (c *Ctx) RunParallel(calls ...BoundTask) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	switch len(calls) {
	case 0:
		return nil
	case 1:
		return calls[0].Run(c)
	}
	g, gCtx := errgroup.WithContext(c.ctx)
	shared := c.withContext(gCtx)
	for _, call := range calls {
		g.Go(func() error { return call.Run(shared) })
	}
	return g.Wait()
}
