package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/growlab/growcore/internal/model"
)

func TestRunProcessingAggregates(t *testing.T) {
	out, err := runProcessing(context.Background(), model.ScheduledTask{
		Kind: model.TaskProcessing,
		Data: map[string]any{"samples": []any{3.0, 1.0, 2.0, 6}},
	})
	require.NoError(t, err)
	require.Equal(t, 4, out["count"])
	require.Equal(t, 1.0, out["min"])
	require.Equal(t, 6.0, out["max"])
	require.InDelta(t, 3.0, out["mean"].(float64), 1e-9)
}

func TestRunProcessingRejectsEmptyPayload(t *testing.T) {
	_, err := runProcessing(context.Background(), model.ScheduledTask{Kind: model.TaskProcessing})
	require.Error(t, err)
}

func TestRunAnalysisTrend(t *testing.T) {
	out, err := runAnalysis(context.Background(), model.ScheduledTask{
		Kind: model.TaskAnalysis,
		Data: map[string]any{"samples": []any{1.0, 2.0, 3.0, 4.0}},
	})
	require.NoError(t, err)
	require.Equal(t, "rising", out["trend"])
	require.InDelta(t, 1.0, out["slope"].(float64), 1e-9)

	out, err = runAnalysis(context.Background(), model.ScheduledTask{
		Kind: model.TaskAnalysis,
		Data: map[string]any{"samples": []any{5.0, 5.0, 5.0}},
	})
	require.NoError(t, err)
	require.Equal(t, "stable", out["trend"])
}

func TestRunAutomationCheckTriggersRules(t *testing.T) {
	out, err := runAutomationCheck(context.Background(), model.ScheduledTask{
		Kind: model.TaskAutomationCheck,
		Data: map[string]any{"rules": []any{
			map[string]any{"metric": "temperature", "value": 31.0, "max": 30.0},
			map[string]any{"metric": "humidity", "value": 55.0, "max": 70.0},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, out["rules_evaluated"])
	require.Equal(t, []string{"temperature"}, out["triggered"])
}

func TestRunCleanupPrunesOldEntries(t *testing.T) {
	old := time.Now().Add(-100 * time.Hour).Format(time.RFC3339)
	fresh := time.Now().Format(time.RFC3339)

	out, err := runCleanup(context.Background(), model.ScheduledTask{
		Kind: model.TaskCleanup,
		Data: map[string]any{
			"retention_hours": 72,
			"entries": []any{
				map[string]any{"timestamp": old},
				map[string]any{"timestamp": fresh},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, out["scanned"])
	require.Equal(t, 1, out["pruned"])
}

func TestRunMonitoringCountsDisabledDevices(t *testing.T) {
	out, err := runMonitoring(context.Background(), model.ScheduledTask{
		Kind: model.TaskMonitoring,
		Data: map[string]any{"devices": []any{
			map[string]any{"id": "d1", "enabled": true},
			map[string]any{"id": "d2", "enabled": false},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, out["devices_checked"])
	require.Equal(t, []string{"d2"}, out["disabled"])
}
