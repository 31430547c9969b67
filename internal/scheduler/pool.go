package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/model"
)

// execResult crosses the isolation boundary as an immutable message.
type execResult struct {
	result map[string]any
	err    error
}

type job struct {
	ctx     context.Context
	task    model.ScheduledTask
	handler Handler
	result  chan execResult // buffered, capacity 1
}

// pool is a bounded set of workers pulling jobs from a channel. Each job runs
// its handler in a fresh goroutine with no shared state; the worker waits on
// the handler or the job's deadline, so a runaway handler forfeits its result
// but never wedges the worker.
type pool struct {
	jobs chan job
	ctx  context.Context
	log  *zap.Logger
}

func newPool(ctx context.Context, workers int, log *zap.Logger) *pool {
	p := &pool{jobs: make(chan job), ctx: ctx, log: log}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.jobs:
			j.result <- p.execute(j)
		}
	}
}

func (p *pool) execute(j job) execResult {
	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: fmt.Errorf("task panicked: %v", r)}
			}
		}()
		res, err := j.handler(j.ctx, j.task)
		done <- execResult{result: res, err: err}
	}()

	select {
	case m := <-done:
		return m
	case <-j.ctx.Done():
		// The handler goroutine is abandoned; its eventual send lands in the
		// buffered channel and is dropped.
		return execResult{err: j.ctx.Err()}
	}
}

// submit dispatches the task and blocks until its result message arrives or
// the job context ends.
func (p *pool) submit(ctx context.Context, task model.ScheduledTask, handler Handler) execResult {
	j := job{ctx: ctx, task: task, handler: handler, result: make(chan execResult, 1)}
	select {
	case p.jobs <- j:
		return <-j.result
	case <-ctx.Done():
		return execResult{err: ctx.Err()}
	}
}
