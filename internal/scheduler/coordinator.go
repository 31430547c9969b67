// Package scheduler runs named units of background work on a schedule or on
// demand, isolates their execution behind a bounded worker pool, enforces a
// per-run deadline, and reports every outcome through the event hub.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/eventbus"
	"github.com/growlab/growcore/internal/metrics"
	"github.com/growlab/growcore/internal/model"
	"github.com/growlab/growcore/pkg/ring"
)

var (
	// ErrUnknownTask is returned for operations on an unregistered task ID.
	ErrUnknownTask = errors.New("scheduler: unknown task")
	// ErrNotRunning is returned by RunNow before Start or after Stop.
	ErrNotRunning = errors.New("scheduler: coordinator not running")
)

const (
	// DefaultTimeout bounds every task execution.
	DefaultTimeout = 5 * time.Minute
	// DefaultWorkers bounds concurrent executions.
	DefaultWorkers = 4
	// DefaultHistoryCapacity bounds the retained outcome history.
	DefaultHistoryCapacity = 1000

	// durableIntervalThreshold: tasks at or above this interval are flagged
	// for the platform's durable scheduler instead of in-process timers.
	durableIntervalThreshold = 15 * time.Minute
)

// Handler executes one task kind. It runs inside an isolated execution
// context and must respect ctx's deadline; it communicates only through its
// arguments and return values.
type Handler func(ctx context.Context, task model.ScheduledTask) (map[string]any, error)

// Enricher supplements a task's payload at trigger time. It runs on the
// coordinator's control path, not inside the isolated execution, so it may
// take read-only snapshots of caller-side state; the merged payload crosses
// the isolation boundary as part of the immutable task message.
type Enricher func(task model.ScheduledTask) map[string]any

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithEnricher(fn Enricher) Option {
	return func(c *Coordinator) { c.enrich = fn }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithHistoryCapacity(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.history = ring.New[model.TaskOutcome](n)
		}
	}
}

type taskEntry struct {
	task    model.ScheduledTask
	state   model.TaskState
	durable bool
	timer   *time.Timer // nil unless scheduled
}

// Coordinator owns the task registry and outcome history; both are mutated
// only on its control path (public API calls and its own timer callbacks).
type Coordinator struct {
	bus      eventbus.Bus
	log      *zap.Logger
	timeout  time.Duration
	workers  int
	handlers map[model.TaskKind]Handler
	enrich   Enricher

	mu      sync.Mutex
	tasks   map[string]*taskEntry
	history *ring.Buffer[model.TaskOutcome]
	pool    *pool
	runCtx  context.Context
	cancel  context.CancelFunc
	running bool
}

func New(bus eventbus.Bus, log *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		bus:      bus,
		log:      log,
		timeout:  DefaultTimeout,
		workers:  DefaultWorkers,
		handlers: defaultHandlers(),
		tasks:    make(map[string]*taskEntry),
		history:  ring.New[model.TaskOutcome](DefaultHistoryCapacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterHandler overrides the handler for one task kind.
func (c *Coordinator) RegisterHandler(kind model.TaskKind, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = h
}

// RegisterTask adds a task to the registry; if the coordinator is running and
// the task is enabled, its trigger is scheduled immediately.
func (c *Coordinator) RegisterTask(task model.ScheduledTask) error {
	if task.ID == "" {
		return errors.New("scheduler: task id required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tasks[task.ID]; exists {
		return fmt.Errorf("scheduler: task %q already registered", task.ID)
	}
	entry := &taskEntry{task: task, state: model.TaskStateRegistered, durable: usesDurableScheduler(task)}
	c.tasks[task.ID] = entry

	if c.running && task.Enabled {
		c.scheduleLocked(entry)
	}
	c.log.Info("task registered",
		zap.String("task", task.ID),
		zap.String("kind", string(task.Kind)),
		zap.Duration("interval", task.Interval),
		zap.Bool("durable", entry.durable))
	return nil
}

// UpdateTask replaces a task's definition, cancelling and re-arming its
// trigger deterministically.
func (c *Coordinator) UpdateTask(task model.ScheduledTask) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tasks[task.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, task.ID)
	}
	c.unscheduleLocked(entry)
	entry.task = task
	entry.state = model.TaskStateRegistered
	entry.durable = usesDurableScheduler(task)

	if c.running && task.Enabled {
		c.scheduleLocked(entry)
	}
	return nil
}

// RemoveTask cancels the task's trigger and drops it from the registry.
func (c *Coordinator) RemoveTask(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	c.unscheduleLocked(entry)
	delete(c.tasks, id)
	c.log.Info("task removed", zap.String("task", id))
	return nil
}

// Task returns a task's definition and current lifecycle state.
func (c *Coordinator) Task(id string) (model.ScheduledTask, model.TaskState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tasks[id]
	if !ok {
		return model.ScheduledTask{}, "", fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return entry.task, entry.state, nil
}

// History returns up to limit most recent outcomes, newest first.
func (c *Coordinator) History(limit int) []model.TaskOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 || limit > c.history.Len() {
		limit = c.history.Len()
	}
	out := make([]model.TaskOutcome, 0, limit)
	for i := c.history.Len() - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, c.history.At(i))
	}
	return out
}

// Start allocates the worker pool and arms triggers for all enabled tasks.
// Idempotent.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.runCtx = ctx
	c.cancel = cancel
	c.pool = newPool(ctx, c.workers, c.log)
	c.running = true

	for _, entry := range c.tasks {
		if entry.task.Enabled {
			c.scheduleLocked(entry)
		}
	}
	c.log.Info("coordinator started",
		zap.Int("tasks", len(c.tasks)),
		zap.Int("workers", c.workers),
		zap.Duration("timeout", c.timeout))
	return nil
}

// Stop cancels all triggers and terminates outstanding executions with
// best-effort cancellation. Safe while executions are in flight. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	c.cancel()
	for _, entry := range c.tasks {
		c.unscheduleLocked(entry)
	}
	c.log.Info("coordinator stopped")
}

// RunNow executes the task immediately, out of band of its schedule, and
// returns its outcome.
func (c *Coordinator) RunNow(id string) (model.TaskOutcome, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return model.TaskOutcome{}, ErrNotRunning
	}
	entry, ok := c.tasks[id]
	if !ok {
		c.mu.Unlock()
		return model.TaskOutcome{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	task := entry.task
	c.mu.Unlock()

	return c.run(task), nil
}

// usesDurableScheduler is the policy deciding which tasks belong on the
// platform's durable scheduler rather than an in-process timer.
func usesDurableScheduler(task model.ScheduledTask) bool {
	if task.Interval >= durableIntervalThreshold {
		return true
	}
	switch task.Kind {
	case model.TaskBackup, model.TaskCleanup:
		return true
	}
	return false
}

// scheduleLocked arms the task's one-shot trigger for its next run. Caller
// holds c.mu.
func (c *Coordinator) scheduleLocked(entry *taskEntry) {
	delay := time.Until(entry.task.ScheduledAt)
	if delay < 0 {
		delay = 0
	}
	id := entry.task.ID
	entry.state = model.TaskStateScheduled
	entry.timer = time.AfterFunc(delay, func() { c.runScheduled(id) })
}

// unscheduleLocked cancels the task's trigger. Caller holds c.mu.
func (c *Coordinator) unscheduleLocked(entry *taskEntry) {
	if entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}
	if entry.state == model.TaskStateScheduled {
		entry.state = model.TaskStateRegistered
	}
}

// runScheduled is the timer callback: execute, then re-arm (recurring) or
// drop (one-shot) the task.
func (c *Coordinator) runScheduled(id string) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	entry, ok := c.tasks[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	task := entry.task
	c.mu.Unlock()

	c.run(task)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok = c.tasks[id]
	if !ok || !c.running {
		return
	}
	if !task.Recurring || task.Interval <= 0 {
		// One-shot tasks leave the registry after their single run.
		delete(c.tasks, id)
		return
	}
	if !entry.task.Enabled {
		entry.state = model.TaskStateRegistered
		return
	}
	entry.state = model.TaskStateScheduled
	if entry.timer != nil {
		entry.timer.Reset(entry.task.Interval)
	} else {
		entry.timer = time.AfterFunc(entry.task.Interval, func() { c.runScheduled(id) })
	}
}

// run dispatches one execution into the pool, records the outcome and
// publishes the completion event.
func (c *Coordinator) run(task model.ScheduledTask) model.TaskOutcome {
	if c.enrich != nil {
		if extra := c.enrich(task); len(extra) > 0 {
			data := make(map[string]any, len(task.Data)+len(extra))
			for k, v := range task.Data {
				data[k] = v
			}
			for k, v := range extra {
				data[k] = v
			}
			task.Data = data
		}
	}

	c.mu.Lock()
	handler, hasHandler := c.handlers[task.Kind]
	pool := c.pool
	runCtx := c.runCtx
	wasScheduled := false
	if entry, ok := c.tasks[task.ID]; ok {
		wasScheduled = entry.state == model.TaskStateScheduled
		entry.state = model.TaskStateRunning
	}
	c.mu.Unlock()

	start := time.Now()
	var res execResult
	if !hasHandler {
		res = execResult{err: fmt.Errorf("no handler for task kind %q", task.Kind)}
	} else if pool == nil {
		res = execResult{err: ErrNotRunning}
	} else {
		// Parented to the lifecycle context, so Stop cancels executions in
		// flight instead of leaving them to run out the deadline.
		ctx, cancel := context.WithTimeout(runCtx, c.timeout)
		res = pool.submit(ctx, task, handler)
		cancel()
	}
	elapsed := time.Since(start)

	outcome := model.TaskOutcome{
		TaskID:      task.ID,
		Kind:        task.Kind,
		Success:     res.err == nil,
		Result:      res.result,
		CompletedAt: time.Now().UTC(),
	}
	state := model.TaskStateSucceeded
	status := "success"
	if res.err != nil {
		state = model.TaskStateFailed
		status = "failure"
		outcome.ErrorMessage = res.err.Error()
		if errors.Is(res.err, context.DeadlineExceeded) {
			state = model.TaskStateTimedOut
			status = "timeout"
			outcome.ErrorMessage = fmt.Sprintf("timeout after %s", c.timeout)
		}
	}

	c.mu.Lock()
	if entry, ok := c.tasks[task.ID]; ok {
		entry.state = state
		// An out-of-band run must not mask a still-armed trigger.
		if wasScheduled && entry.timer != nil {
			entry.state = model.TaskStateScheduled
		}
	}
	c.history.Push(outcome)
	c.mu.Unlock()

	metrics.TaskRuns.WithLabelValues(string(task.Kind), status).Inc()
	metrics.TaskDuration.WithLabelValues(string(task.Kind)).Observe(elapsed.Seconds())

	if res.err != nil {
		c.log.Warn("task run failed",
			zap.String("task", task.ID),
			zap.String("kind", string(task.Kind)),
			zap.String("status", status),
			zap.Error(res.err))
	} else {
		c.log.Debug("task run completed",
			zap.String("task", task.ID),
			zap.Duration("elapsed", elapsed))
	}

	c.bus.Publish(model.NewGeneric(model.EventTaskCompleted, map[string]any{
		"task_id":       outcome.TaskID,
		"kind":          string(outcome.Kind),
		"success":       outcome.Success,
		"error_message": outcome.ErrorMessage,
		"result":        outcome.Result,
		"completed_at":  outcome.CompletedAt,
	}))
	return outcome
}
