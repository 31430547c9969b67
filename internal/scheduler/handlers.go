package scheduler

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/growlab/growcore/internal/model"
)

// defaultHandlers maps every built-in task kind to its worker. Handlers are
// pure functions of the task payload; everything else they need is attached
// to the payload by the caller at trigger time.
func defaultHandlers() map[model.TaskKind]Handler {
	return map[model.TaskKind]Handler{
		model.TaskMonitoring:      runMonitoring,
		model.TaskProcessing:      runProcessing,
		model.TaskAutomationCheck: runAutomationCheck,
		model.TaskCleanup:         runCleanup,
		model.TaskBackup:          runBackup,
		model.TaskAnalysis:        runAnalysis,
	}
}

// runMonitoring sweeps the device snapshot in the payload and reports how
// many devices were checked and which ones are disabled.
func runMonitoring(_ context.Context, task model.ScheduledTask) (map[string]any, error) {
	devices, _ := task.Data["devices"].([]any)
	var disabled []string
	for _, d := range devices {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if enabled, ok := m["enabled"].(bool); ok && !enabled {
			if id, ok := m["id"].(string); ok {
				disabled = append(disabled, id)
			}
		}
	}
	return map[string]any{
		"status":          "ok",
		"devices_checked": len(devices),
		"disabled":        disabled,
	}, nil
}

// runProcessing aggregates the numeric samples in the payload.
func runProcessing(_ context.Context, task model.ScheduledTask) (map[string]any, error) {
	samples := numericSamples(task.Data["samples"])
	if len(samples) == 0 {
		return nil, errors.New("processing: no samples in payload")
	}
	min, max, sum := samples[0], samples[0], 0.0
	for _, v := range samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return map[string]any{
		"count": len(samples),
		"min":   min,
		"max":   max,
		"mean":  sum / float64(len(samples)),
	}, nil
}

// runAutomationCheck evaluates the rule set in the payload against the sample
// values it carries. A rule is a map with "metric", "value" and "max" keys.
func runAutomationCheck(_ context.Context, task model.ScheduledTask) (map[string]any, error) {
	rules, _ := task.Data["rules"].([]any)
	var triggered []string
	for _, r := range rules {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		value, okV := asFloat(m["value"])
		max, okM := asFloat(m["max"])
		if !okV || !okM {
			continue
		}
		if value > max {
			if metric, ok := m["metric"].(string); ok {
				triggered = append(triggered, metric)
			}
		}
	}
	return map[string]any{
		"rules_evaluated": len(rules),
		"triggered":       triggered,
	}, nil
}

// runCleanup prunes payload entries older than the retention window.
func runCleanup(_ context.Context, task model.ScheduledTask) (map[string]any, error) {
	retentionHours, ok := asFloat(task.Data["retention_hours"])
	if !ok || retentionHours <= 0 {
		retentionHours = 72
	}
	cutoff := time.Now().Add(-time.Duration(retentionHours * float64(time.Hour)))

	entries, _ := task.Data["entries"].([]any)
	pruned := 0
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		ts, ok := entryTime(m["timestamp"])
		if ok && ts.Before(cutoff) {
			pruned++
		}
	}
	return map[string]any{
		"retention_hours": retentionHours,
		"scanned":         len(entries),
		"pruned":          pruned,
	}, nil
}

// runBackup snapshots the payload entries under a fresh snapshot ID.
func runBackup(_ context.Context, task model.ScheduledTask) (map[string]any, error) {
	entries, _ := task.Data["entries"].([]any)
	return map[string]any{
		"snapshot_id": uuid.NewString(),
		"entries":     len(entries),
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// runAnalysis fits a least-squares line through the payload samples and
// reports the trend.
func runAnalysis(_ context.Context, task model.ScheduledTask) (map[string]any, error) {
	samples := numericSamples(task.Data["samples"])
	if len(samples) < 2 {
		return nil, errors.New("analysis: need at least two samples")
	}

	n := float64(len(samples))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range samples {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)

	trend := "stable"
	switch {
	case slope > 0.01:
		trend = "rising"
	case slope < -0.01:
		trend = "falling"
	}
	return map[string]any{
		"count": len(samples),
		"slope": slope,
		"trend": trend,
	}, nil
}

// asFloat coerces the numeric types a JSON payload can carry.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func numericSamples(v any) []float64 {
	raw, _ := v.([]any)
	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		if f, ok := asFloat(s); ok && !math.IsNaN(f) {
			out = append(out, f)
		}
	}
	return out
}

func entryTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
