package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/eventbus"
	"github.com/growlab/growcore/internal/model"
)

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(1000, zap.NewNop())
	c := New(bus, zap.NewNop(), opts...)
	t.Cleanup(c.Stop)
	return c, bus
}

func TestRunNowReturnsHandlerResult(t *testing.T) {
	c, _ := newTestCoordinator(t)
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:   "proc-1",
		Kind: model.TaskProcessing,
		Data: map[string]any{"samples": []any{1.0, 2.0, 3.0, 4.0}},
	}))

	outcome, err := c.RunNow("proc-1")
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, "proc-1", outcome.TaskID)
	require.Equal(t, model.TaskProcessing, outcome.Kind)
	require.Equal(t, 4, outcome.Result["count"])
	require.InDelta(t, 2.5, outcome.Result["mean"].(float64), 1e-9)
	require.False(t, outcome.CompletedAt.IsZero())
}

func TestRunNowRequiresRunningCoordinator(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.RunNow("anything")
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestRunNowUnknownTask(t *testing.T) {
	c, _ := newTestCoordinator(t)
	require.NoError(t, c.Start())

	_, err := c.RunNow("missing")
	require.ErrorIs(t, err, ErrUnknownTask)
}

func TestFailingHandlerProducesFailedOutcomeAndStaysScheduled(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.RegisterHandler(model.TaskMonitoring, func(context.Context, model.ScheduledTask) (map[string]any, error) {
		return nil, errors.New("probe offline")
	})
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:          "mon-1",
		Kind:        model.TaskMonitoring,
		ScheduledAt: time.Now(),
		Interval:    20 * time.Millisecond,
		Recurring:   true,
		Enabled:     true,
	}))

	require.Eventually(t, func() bool {
		return len(c.History(0)) >= 2
	}, time.Second, 5*time.Millisecond)

	for _, o := range c.History(0) {
		require.False(t, o.Success)
		require.Contains(t, o.ErrorMessage, "probe offline")
	}

	_, state, err := c.Task("mon-1")
	require.NoError(t, err)
	require.Contains(t, []model.TaskState{model.TaskStateScheduled, model.TaskStateRunning, model.TaskStateFailed}, state)
}

func TestHandlerThatNeverReturnsTimesOut(t *testing.T) {
	c, _ := newTestCoordinator(t, WithTimeout(50*time.Millisecond))
	c.RegisterHandler(model.TaskAnalysis, func(ctx context.Context, _ model.ScheduledTask) (map[string]any, error) {
		<-ctx.Done() // simulate a hung handler bounded only by the deadline
		select {}
	})
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:   "hang-1",
		Kind: model.TaskAnalysis,
	}))

	start := time.Now()
	outcome, err := c.RunNow("hang-1")
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Contains(t, outcome.ErrorMessage, "timeout")
	require.Less(t, time.Since(start), time.Second)
}

func TestPanickingHandlerIsReportedAsFailure(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.RegisterHandler(model.TaskBackup, func(context.Context, model.ScheduledTask) (map[string]any, error) {
		panic("disk gone")
	})
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{ID: "bak-1", Kind: model.TaskBackup}))

	outcome, err := c.RunNow("bak-1")
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Contains(t, outcome.ErrorMessage, "disk gone")
}

func TestTaskCompletedEventPublished(t *testing.T) {
	c, bus := newTestCoordinator(t)
	require.NoError(t, c.Start())

	var mu sync.Mutex
	var completed []model.Event
	bus.Subscribe(&eventbus.Filter{Type: model.EventTaskCompleted}, func(e model.Event) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, e)
	})

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:   "proc-1",
		Kind: model.TaskProcessing,
		Data: map[string]any{"samples": []any{2.0, 4.0}},
	}))
	_, err := c.RunNow("proc-1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, completed, 1)
	g := completed[0].(model.Generic)
	require.Equal(t, "proc-1", g.Metadata["task_id"])
	require.Equal(t, true, g.Metadata["success"])
}

func TestRecurringTaskKeepsFiring(t *testing.T) {
	c, _ := newTestCoordinator(t)
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:          "mon-1",
		Kind:        model.TaskMonitoring,
		ScheduledAt: time.Now(),
		Interval:    15 * time.Millisecond,
		Recurring:   true,
		Enabled:     true,
	}))

	require.Eventually(t, func() bool {
		return len(c.History(0)) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestOneShotTaskIsRemovedAfterRun(t *testing.T) {
	c, _ := newTestCoordinator(t)
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:          "once-1",
		Kind:        model.TaskBackup,
		ScheduledAt: time.Now(),
		Enabled:     true,
	}))

	require.Eventually(t, func() bool {
		_, _, err := c.Task("once-1")
		return errors.Is(err, ErrUnknownTask)
	}, time.Second, 5*time.Millisecond)

	require.Len(t, c.History(0), 1)
	require.True(t, c.History(0)[0].Success)
}

func TestStopCancelsScheduledRuns(t *testing.T) {
	c, _ := newTestCoordinator(t)
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:          "mon-1",
		Kind:        model.TaskMonitoring,
		ScheduledAt: time.Now().Add(30 * time.Millisecond),
		Interval:    30 * time.Millisecond,
		Recurring:   true,
		Enabled:     true,
	}))

	c.Stop()
	time.Sleep(80 * time.Millisecond)
	require.Empty(t, c.History(0))
}

func TestDurableSchedulerPolicy(t *testing.T) {
	require.True(t, usesDurableScheduler(model.ScheduledTask{Kind: model.TaskBackup}))
	require.True(t, usesDurableScheduler(model.ScheduledTask{Kind: model.TaskCleanup}))
	require.True(t, usesDurableScheduler(model.ScheduledTask{Kind: model.TaskMonitoring, Interval: 15 * time.Minute}))
	require.False(t, usesDurableScheduler(model.ScheduledTask{Kind: model.TaskMonitoring, Interval: 5 * time.Minute}))
	require.False(t, usesDurableScheduler(model.ScheduledTask{Kind: model.TaskProcessing, Interval: time.Minute}))
}

func TestHistoryBounded(t *testing.T) {
	c, _ := newTestCoordinator(t, WithHistoryCapacity(5))
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:   "proc-1",
		Kind: model.TaskProcessing,
		Data: map[string]any{"samples": []any{1.0, 2.0}},
	}))

	for i := 0; i < 12; i++ {
		_, err := c.RunNow("proc-1")
		require.NoError(t, err)
	}
	require.Len(t, c.History(0), 5)
}

func TestUpdateTaskReschedules(t *testing.T) {
	c, _ := newTestCoordinator(t)
	require.NoError(t, c.Start())

	task := model.ScheduledTask{
		ID:          "mon-1",
		Kind:        model.TaskMonitoring,
		ScheduledAt: time.Now().Add(time.Hour),
		Interval:    time.Hour,
		Recurring:   true,
		Enabled:     true,
	}
	require.NoError(t, c.RegisterTask(task))

	task.ScheduledAt = time.Now()
	task.Interval = 15 * time.Millisecond
	require.NoError(t, c.UpdateTask(task))

	require.Eventually(t, func() bool {
		return len(c.History(0)) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestStopCancelsInFlightExecution(t *testing.T) {
	c, _ := newTestCoordinator(t)
	started := make(chan struct{})
	c.RegisterHandler(model.TaskMonitoring, func(ctx context.Context, _ model.ScheduledTask) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, c.Start())
	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:   "mon-1",
		Kind: model.TaskMonitoring,
	}))

	done := make(chan model.TaskOutcome, 1)
	go func() {
		outcome, err := c.RunNow("mon-1")
		require.NoError(t, err)
		done <- outcome
	}()
	<-started
	c.Stop()

	select {
	case outcome := <-done:
		require.False(t, outcome.Success)
		require.Contains(t, outcome.ErrorMessage, "canceled")
	case <-time.After(time.Second):
		t.Fatal("in-flight run not released by Stop")
	}
}

func TestRunNowKeepsScheduledStateWhenTriggerPending(t *testing.T) {
	c, _ := newTestCoordinator(t)
	require.NoError(t, c.Start())
	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:          "mon-1",
		Kind:        model.TaskMonitoring,
		ScheduledAt: time.Now().Add(time.Hour),
		Interval:    time.Hour,
		Recurring:   true,
		Enabled:     true,
	}))

	_, err := c.RunNow("mon-1")
	require.NoError(t, err)

	_, state, err := c.Task("mon-1")
	require.NoError(t, err)
	require.Equal(t, model.TaskStateScheduled, state)
}

func TestEnricherSupplementsPayloadWithoutMutatingTask(t *testing.T) {
	c, _ := newTestCoordinator(t, WithEnricher(func(task model.ScheduledTask) map[string]any {
		if task.Kind == model.TaskProcessing {
			return map[string]any{"samples": []any{10.0, 20.0}}
		}
		return nil
	}))
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:   "proc-1",
		Kind: model.TaskProcessing,
	}))

	outcome, err := c.RunNow("proc-1")
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.InDelta(t, 15.0, outcome.Result["mean"].(float64), 1e-9)

	// The registered task's own payload stays untouched.
	task, _, err := c.Task("proc-1")
	require.NoError(t, err)
	require.Nil(t, task.Data)
}

func TestRegisterDuplicateTaskFails(t *testing.T) {
	c, _ := newTestCoordinator(t)

	require.NoError(t, c.RegisterTask(model.ScheduledTask{ID: "t1", Kind: model.TaskMonitoring}))
	require.Error(t, c.RegisterTask(model.ScheduledTask{ID: "t1", Kind: model.TaskMonitoring}))
	require.Error(t, c.RegisterTask(model.ScheduledTask{Kind: model.TaskMonitoring}))
}

func TestRemoveTaskCancelsTrigger(t *testing.T) {
	c, _ := newTestCoordinator(t)
	require.NoError(t, c.Start())

	require.NoError(t, c.RegisterTask(model.ScheduledTask{
		ID:          "mon-1",
		Kind:        model.TaskMonitoring,
		ScheduledAt: time.Now().Add(30 * time.Millisecond),
		Recurring:   true,
		Interval:    30 * time.Millisecond,
		Enabled:     true,
	}))
	require.NoError(t, c.RemoveTask("mon-1"))

	time.Sleep(80 * time.Millisecond)
	require.Empty(t, c.History(0))
	require.ErrorIs(t, c.RemoveTask("mon-1"), ErrUnknownTask)
}
