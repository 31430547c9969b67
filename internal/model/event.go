package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType tags one variant of the event union. Generic events carry
// free-form types (e.g. "task_completed") outside this list.
type EventType string

const (
	EventSensorReading    EventType = "sensor_reading"
	EventSensorAlert      EventType = "sensor_alert"
	EventAutomationResult EventType = "automation_result"
	EventNotification     EventType = "notification"
	EventTaskCompleted    EventType = "task_completed"
)

// Severity of a sensor alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Event is the closed union broadcast through the hub. Every variant embeds
// Header and is immutable once published. Device and Room return "" for
// variants without that dimension, so filters can treat them uniformly.
type Event interface {
	ID() string
	Type() EventType
	Timestamp() time.Time
	Device() string
	Room() string
}

// Header carries the fields shared by every event variant.
type Header struct {
	EventID string    `json:"id"`
	Kind    EventType `json:"type"`
	At      time.Time `json:"timestamp"`
}

func NewHeader(kind EventType) Header {
	return Header{EventID: uuid.NewString(), Kind: kind, At: time.Now().UTC()}
}

func (h Header) ID() string           { return h.EventID }
func (h Header) Type() EventType      { return h.Kind }
func (h Header) Timestamp() time.Time { return h.At }
func (h Header) Device() string       { return "" }
func (h Header) Room() string         { return "" }

// SensorReading is one snapshot of a device's metric values.
type SensorReading struct {
	Header
	DeviceID string             `json:"device_id"`
	RoomID   string             `json:"room_id"`
	Metrics  map[string]float64 `json:"metrics"`
	Metadata map[string]any     `json:"metadata,omitempty"`
}

func NewSensorReading(deviceID, roomID string, metrics map[string]float64, metadata map[string]any) SensorReading {
	return SensorReading{
		Header:   NewHeader(EventSensorReading),
		DeviceID: deviceID,
		RoomID:   roomID,
		Metrics:  metrics,
		Metadata: metadata,
	}
}

func (e SensorReading) Device() string { return e.DeviceID }
func (e SensorReading) Room() string   { return e.RoomID }

// SensorAlert reports a metric breaching its configured threshold band.
type SensorAlert struct {
	Header
	DeviceID       string   `json:"device_id"`
	RoomID         string   `json:"room_id"`
	AlertType      string   `json:"alert_type"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

func NewSensorAlert(deviceID, roomID, alertType string, severity Severity, message, recommendation string) SensorAlert {
	return SensorAlert{
		Header:         NewHeader(EventSensorAlert),
		DeviceID:       deviceID,
		RoomID:         roomID,
		AlertType:      alertType,
		Severity:       severity,
		Message:        message,
		Recommendation: recommendation,
	}
}

func (e SensorAlert) Device() string { return e.DeviceID }
func (e SensorAlert) Room() string   { return e.RoomID }

// AutomationResult reports the outcome of one automation action in a room.
type AutomationResult struct {
	Header
	AutomationID string `json:"automation_id"`
	RoomID       string `json:"room_id"`
	Action       string `json:"action"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

func NewAutomationResult(automationID, roomID, action string, success bool, errMsg string) AutomationResult {
	return AutomationResult{
		Header:       NewHeader(EventAutomationResult),
		AutomationID: automationID,
		RoomID:       roomID,
		Action:       action,
		Success:      success,
		Error:        errMsg,
	}
}

func (e AutomationResult) Room() string { return e.RoomID }

// Notification is a user-facing message routed through the hub.
type Notification struct {
	Header
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Channel string         `json:"channel,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

func NewNotification(title, body, channel string, payload map[string]any) Notification {
	return Notification{
		Header:  NewHeader(EventNotification),
		Title:   title,
		Body:    body,
		Channel: channel,
		Payload: payload,
	}
}

// Generic carries events whose type is not modelled as a dedicated variant,
// e.g. task_completed. The metadata map holds the type-specific fields.
type Generic struct {
	Header
	Metadata map[string]any `json:"metadata,omitempty"`
}

func NewGeneric(kind EventType, metadata map[string]any) Generic {
	return Generic{Header: NewHeader(kind), Metadata: metadata}
}
