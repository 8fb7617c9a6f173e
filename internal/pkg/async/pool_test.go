package async_test

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/pkg/async"
)

func TestPoolExecute(t *testing.T) {
	t.Run("runs every task and keys results by name", func(t *testing.T) {
		tasks := make([]async.Task, 10)
		for i := range tasks {
			n := i
			tasks[i] = async.Task{
				Name: fmt.Sprintf("task-%d", n),
				Execute: func() (interface{}, error) {
					return n * 2, nil
				},
			}
		}

		results := async.NewPool(3).Execute(context.Background(), tasks)

		require.Len(t, results, 10)
		for i := 0; i < 10; i++ {
			res := results[fmt.Sprintf("task-%d", i)]
			require.NoError(t, res.Err)
			assert.Equal(t, i*2, res.Data)
		}
	})

	t.Run("a failing task does not block the others", func(t *testing.T) {
		boom := errors.New("boom")
		tasks := []async.Task{
			{Name: "ok-1", Execute: func() (interface{}, error) { return "a", nil }},
			{Name: "bad", Execute: func() (interface{}, error) { return nil, boom }},
			{Name: "ok-2", Execute: func() (interface{}, error) { return "b", nil }},
		}

		results := async.NewPool(2).Execute(context.Background(), tasks)

		require.Len(t, results, 3)
		assert.NoError(t, results["ok-1"].Err)
		assert.NoError(t, results["ok-2"].Err)
		assert.ErrorIs(t, results["bad"].Err, boom)
	})

	t.Run("worker count bounds concurrency", func(t *testing.T) {
		var running, peak int32
		tasks := make([]async.Task, 8)
		for i := range tasks {
			tasks[i] = async.Task{
				Name: fmt.Sprintf("task-%d", i),
				Execute: func() (interface{}, error) {
					n := atomic.AddInt32(&running, 1)
					for {
						p := atomic.LoadInt32(&peak)
						if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
					atomic.AddInt32(&running, -1)
					return nil, nil
				},
			}
		}

		async.NewPool(2).Execute(context.Background(), tasks)

		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	})

	t.Run("cancelled context returns partial results", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		tasks := []async.Task{
			{Name: "never", Execute: func() (interface{}, error) { return nil, nil }},
		}
		results := async.NewPool(1).Execute(ctx, tasks)

		assert.LessOrEqual(t, len(results), 1)
	})

	t.Run("cancellation does not strand in-flight workers", func(t *testing.T) {
		before := runtime.NumGoroutine()

		ctx, cancel := context.WithCancel(context.Background())
		started := make(chan struct{})
		release := make(chan struct{})
		tasks := []async.Task{
			{Name: "late", Execute: func() (interface{}, error) {
				close(started)
				<-release
				return "late", nil
			}},
		}

		done := make(chan map[string]async.Result, 1)
		go func() { done <- async.NewPool(2).Execute(ctx, tasks) }()

		<-started
		cancel()
		results := <-done
		assert.Empty(t, results)

		// the late result still needs a consumer or its worker never exits
		close(release)
		assert.Eventually(t, func() bool {
			return runtime.NumGoroutine() <= before+1
		}, 2*time.Second, 10*time.Millisecond)
	})
}
