// Package workpool runs independent indexed tasks on a fixed number of
// goroutines and returns their results in index order.
package workpool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrWorkerFailure wraps any error or panic raised by a task.
var ErrWorkerFailure = errors.New("worker failure")

// Workers normalises a requested worker count: values below 1 mean one
// worker per CPU, and there are never more workers than tasks.
func Workers(requested, tasks int) int {
	if requested < 1 {
		requested = runtime.NumCPU()
	}
	return max(1, min(requested, tasks))
}

// Map calls fn(i) for every i in [0, n) and returns the results indexed by i.
// With one worker the tasks run in order on the calling goroutine. Once a task
// fails no new tasks are started; the error of the lowest failing index is
// returned wrapped in ErrWorkerFailure.
func Map[T any](n, workers int, fn func(i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	if n == 0 {
		return results, nil
	}

	workers = Workers(workers, n)
	errs := make([]error, n)

	if workers == 1 {
		for i := range n {
			results[i], errs[i] = call(i, fn)
			if errs[i] != nil {
				break
			}
		}
		return results, firstError(errs)
	}

	jobs := make(chan int, n)
	for i := range n {
		jobs <- i
	}
	close(jobs)

	var failed atomic.Bool
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if failed.Load() {
					continue
				}
				results[i], errs[i] = call(i, fn)
				if errs[i] != nil {
					failed.Store(true)
				}
			}
		}()
	}

	wg.Wait()
	return results, firstError(errs)
}

func call[T any](i int, fn func(int) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %d panicked: %v", i, r)
		}
	}()
	return fn(i)
}

func firstError(errs []error) error {
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("%w: task %d: %w", ErrWorkerFailure, i, err)
		}
	}
	return nil
}
