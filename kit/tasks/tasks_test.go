package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskRunsOncePerCtx(t *testing.T) {
	var calls atomic.Int32
	task := NewTask(func(_ *Ctx, in string) (string, error) {
		calls.Add(1)
		return "got " + in, nil
	})

	ctx := NewCtx(context.Background())
	for range 3 {
		out, err := task.Run(ctx, "x")
		require.NoError(t, err)
		require.Equal(t, "got x", out)
	}
	require.EqualValues(t, 1, calls.Load())

	_, err := task.Run(ctx, "y")
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load(), "different input is a different result")

	_, err = task.Run(NewCtx(context.Background()), "x")
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load(), "a new Ctx recomputes")
}

func TestTaskErrorIsCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	task := NewTask(func(_ *Ctx, _ struct{}) (int, error) {
		calls.Add(1)
		return 0, boom
	})
	ctx := NewCtx(nil)
	_, err := task.Run(ctx, struct{}{})
	require.ErrorIs(t, err, boom)
	_, err = task.Run(ctx, struct{}{})
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 1, calls.Load())
}

func TestTaskCancelledCtx(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()
	task := NewTask(func(_ *Ctx, _ int) (int, error) { return 1, nil })
	_, err := task.Run(NewCtx(parent), 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunParallelBindsResults(t *testing.T) {
	double := NewTask(func(_ *Ctx, n int) (int, error) { return n * 2, nil })
	var a, b int
	ctx := NewCtx(context.Background())
	require.NoError(t, ctx.RunParallel(double.Bind(2, &a), double.Bind(5, &b)))
	require.Equal(t, 4, a)
	require.Equal(t, 10, b)
}

func TestRunParallelSharesResults(t *testing.T) {
	var calls atomic.Int32
	shared := NewTask(func(_ *Ctx, _ struct{}) (int, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return 7, nil
	})
	var x, y int
	ctx := NewCtx(context.Background())
	require.NoError(t, ctx.RunParallel(shared.Bind(struct{}{}, &x), shared.Bind(struct{}{}, &y)))
	require.Equal(t, 7, x)
	require.Equal(t, 7, y)
	require.EqualValues(t, 1, calls.Load())
}

func TestRegistrySequentialStopsAtFirstFailure(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	step := func(name string, err error) Func {
		return func(*Ctx) error {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return err
		}
	}

	r := NewRegistry(nil)
	r.Register("clean", "", step("clean", nil))
	r.Register("concat", "", step("concat", errors.New("missing source")))
	r.Register("copy", "", step("copy", nil))
	r.Alias("js", "concat")
	r.Alias("default", "clean", "js", "copy")

	err := r.Run(NewCtx(context.Background()), "default")
	require.EqualError(t, err, `task "concat": missing source`)
	require.Equal(t, []string{"clean", "concat"}, ran)
}

func TestRegistryConcurrent(t *testing.T) {
	var count atomic.Int32
	r := NewRegistry(nil)
	for _, name := range []string{"js", "style", "copy"} {
		r.Register(name, "", func(*Ctx) error {
			count.Add(1)
			return nil
		})
	}
	r.Concurrent("serve", "js", "style", "copy")

	require.NoError(t, r.Run(NewCtx(context.Background()), "serve"))
	require.EqualValues(t, 3, count.Load())
}

func TestRegistryConcurrentCancelsSiblings(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("fail", "", func(*Ctx) error { return errors.New("bad") })
	r.Register("block", "", func(c *Ctx) error {
		<-c.Context().Done()
		return c.Context().Err()
	})
	r.Concurrent("both", "fail", "block")

	err := r.Run(NewCtx(context.Background()), "both")
	require.EqualError(t, err, `task "fail": bad`)
}

func TestRegistryUnknownAndCycle(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("a", "does a", func(*Ctx) error { return nil })
	r.Alias("loop", "a", "loop2")
	r.Alias("loop2", "loop")
	r.Alias("broken", "a", "nope")

	err := r.Run(NewCtx(context.Background()), "nope")
	require.ErrorIs(t, err, ErrUnknownTask)

	err = r.Run(NewCtx(context.Background()), "broken")
	require.ErrorIs(t, err, ErrUnknownTask)

	_, err = r.Expand("loop")
	require.ErrorContains(t, err, "alias cycle")
}

func TestRegistryExpandAndDescribe(t *testing.T) {
	r := NewRegistry(nil)
	for _, n := range []string{"filerev", "filerev_mapping", "usemin", "clean"} {
		r.Register(n, "help for "+n, func(*Ctx) error { return nil })
	}
	r.Alias("file_v", "filerev", "filerev_mapping", "usemin")
	r.Alias("default", "clean", "file_v")

	steps, err := r.Expand("default")
	require.NoError(t, err)
	require.Equal(t, []string{"clean", "filerev", "filerev_mapping", "usemin"}, steps)
	require.Equal(t, "help for clean", r.Describe("clean"))
	require.Equal(t, "filerev, filerev_mapping, usemin", r.Describe("file_v"))
	require.True(t, r.Has("usemin"))
	require.Equal(t, []string{"clean", "default", "file_v", "filerev", "filerev_mapping", "usemin"}, r.Names())
}
