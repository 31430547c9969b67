package model

import "time"

// TaskKind selects the handler that runs a scheduled task.
type TaskKind string

const (
	TaskMonitoring      TaskKind = "monitoring"
	TaskProcessing      TaskKind = "processing"
	TaskAutomationCheck TaskKind = "automation_check"
	TaskCleanup         TaskKind = "cleanup"
	TaskBackup          TaskKind = "backup"
	TaskAnalysis        TaskKind = "analysis"
)

// TaskState tracks where a task sits in its lifecycle:
// Registered -> Scheduled -> Running -> {Succeeded|Failed|TimedOut} ->
// Scheduled (recurring) | Removed.
type TaskState string

const (
	TaskStateRegistered TaskState = "registered"
	TaskStateScheduled  TaskState = "scheduled"
	TaskStateRunning    TaskState = "running"
	TaskStateSucceeded  TaskState = "succeeded"
	TaskStateFailed     TaskState = "failed"
	TaskStateTimedOut   TaskState = "timed_out"
)

// ScheduledTask describes one named unit of background work.
type ScheduledTask struct {
	ID          string         `json:"id"`
	Kind        TaskKind       `json:"kind"`
	Data        map[string]any `json:"data,omitempty"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	Interval    time.Duration  `json:"interval"` // zero = one-shot
	Recurring   bool           `json:"recurring"`
	Enabled     bool           `json:"enabled"`
}

// TaskOutcome is the immutable record of one task execution.
type TaskOutcome struct {
	TaskID       string         `json:"task_id"`
	Kind         TaskKind       `json:"kind"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
	CompletedAt  time.Time      `json:"completed_at"`
}
