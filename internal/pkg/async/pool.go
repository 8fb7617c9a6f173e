// Package async provides a small bounded worker pool for fan-out work such
// as bulk link associations, where each task must finish or fail on its own.
package async

import (
	"context"
	"sync"
)

// Task is one unit of work, identified by Name in the result map.
type Task struct {
	Name    string
	Execute func() (interface{}, error)
}

// Result carries a task's outcome. Err is the task's own failure; tasks never
// affect each other.
type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool runs tasks on a fixed number of workers. A Pool is single use: create
// one, call Execute once.
type Pool struct {
	workerCount int
	tasks       chan Task
	results     chan Result
}

// NewPool creates a pool with the given worker count.
func NewPool(workerCount int) *Pool {
	return &Pool{
		workerCount: workerCount,
		tasks:       make(chan Task),
		results:     make(chan Result),
	}
}

func (p *Pool) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			data, err := task.Execute()
			p.results <- Result{
				Name: task.Name,
				Data: data,
				Err:  err,
			}
		case <-ctx.Done():
			return
		}
	}
}

// Execute runs all tasks and returns their results keyed by task name. When
// the context is cancelled, the partial result map collected so far comes
// back; unexecuted tasks are simply absent from it.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	var wg sync.WaitGroup
	results := make(map[string]Result)

	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg)
	}

	go func() {
		for _, task := range tasks {
			select {
			case p.tasks <- task:
			case <-ctx.Done():
				return
			}
		}
		close(p.tasks)
	}()

	for i := 0; i < len(tasks); i++ {
		select {
		case result := <-p.results:
			results[result.Name] = result
		case <-ctx.Done():
			// workers may still be mid-task; keep consuming their late
			// results so every worker can exit
			go func() {
				wg.Wait()
				close(p.results)
			}()
			go func() {
				for range p.results {
				}
			}()
			return results
		}
	}

	wg.Wait()
	close(p.results)

	return results
}
