package actions

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// workerPool bounds the number of handler executions in flight so that
// slow, blocking handlers cannot exhaust the runtime. The dispatcher
// still awaits each result; the pool only caps concurrency across
// dispatchers sharing it.
type workerPool struct {
	sem *semaphore.Weighted
}

func newWorkerPool(size int64) *workerPool {
	if size <= 0 {
		size = 1
	}
	return &workerPool{sem: semaphore.NewWeighted(size)}
}

type handlerResult struct {
	value interface{}
	err   error
}

// run executes fn on a pool slot and blocks until it finishes or ctx is
// cancelled. Panics inside fn are recovered and surfaced as errors. If
// ctx ends first, the result is abandoned: the buffered channel lets the
// goroutine finish without leaking.
func (p *workerPool) run(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	resCh := make(chan handlerResult, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				resCh <- handlerResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		value, err := fn()
		resCh <- handlerResult{value: value, err: err}
	}()

	select {
	case res := <-resCh:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
