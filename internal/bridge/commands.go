package bridge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/model"
	"github.com/growlab/growcore/pkg/dedup"
)

// CommandTopic is where collaborators publish commands, QoS1.
const CommandTopic = "growcore/commands"

// Command is the inbound control message shape.
type Command struct {
	Type            string  `json:"type"`
	RoomID          string  `json:"room_id,omitempty"`
	TempDelta       float64 `json:"temp_delta,omitempty"`
	HumidityDelta   float64 `json:"humidity_delta,omitempty"`
	DurationSeconds int     `json:"duration_seconds,omitempty"`
	TaskID          string  `json:"task_id,omitempty"`
}

// AnomalyInjector is the simulator surface commands need.
type AnomalyInjector interface {
	InjectAnomaly(roomID string, tempDelta, humidityDelta float64, duration time.Duration)
}

// TaskRunner is the coordinator surface commands need.
type TaskRunner interface {
	RunNow(id string) (model.TaskOutcome, error)
}

// CommandHandler parses and applies commands. Payload-hash dedup absorbs
// QoS1 redeliveries, which carry byte-identical payloads.
type CommandHandler struct {
	injector AnomalyInjector
	runner   TaskRunner
	deduper  *dedup.Deduper
	log      *zap.Logger
}

func NewCommandHandler(injector AnomalyInjector, runner TaskRunner, log *zap.Logger) *CommandHandler {
	return &CommandHandler{
		injector: injector,
		runner:   runner,
		deduper:  dedup.New(2*time.Minute, 10000),
		log:      log,
	}
}

// Handle processes one raw command payload. It satisfies broker.Handler.
func (h *CommandHandler) Handle(_ string, payload []byte) error {
	sum := sha256.Sum256(payload)
	if !h.deduper.ShouldProcess(hex.EncodeToString(sum[:])) {
		return nil // QoS1 redelivery
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("invalid command payload: %w", err)
	}

	switch cmd.Type {
	case "inject_anomaly":
		if cmd.RoomID == "" {
			return fmt.Errorf("inject_anomaly: room_id required")
		}
		duration := time.Duration(cmd.DurationSeconds) * time.Second
		if duration <= 0 {
			duration = time.Hour
		}
		h.injector.InjectAnomaly(cmd.RoomID, cmd.TempDelta, cmd.HumidityDelta, duration)
		h.log.Info("anomaly command applied",
			zap.String("room", cmd.RoomID),
			zap.Duration("duration", duration))
		return nil

	case "run_task":
		if cmd.TaskID == "" {
			return fmt.Errorf("run_task: task_id required")
		}
		outcome, err := h.runner.RunNow(cmd.TaskID)
		if err != nil {
			return fmt.Errorf("run_task %s: %w", cmd.TaskID, err)
		}
		h.log.Info("task command completed",
			zap.String("task", cmd.TaskID),
			zap.Bool("success", outcome.Success))
		return nil

	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}
