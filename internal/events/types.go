package events

import "github.com/camprobe/camprobe/internal/api/models"

// Event type constants for kelindar/event.
const (
	TypeDeviceAdded uint32 = iota + 1
	TypeDeviceRemoved
	TypeProbeCompleted
	TypeProbeFailed
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceAddedEvent is published when a capture device appears, before its
// probe has finished.
type DeviceAddedEvent struct {
	models.DeviceInfo
	Action    string `json:"action" example:"added" doc:"Action type"`
	Timestamp string `json:"timestamp" example:"2025-06-01T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceAddedEvent.
func (e DeviceAddedEvent) Type() uint32 { return TypeDeviceAdded }

// DeviceRemovedEvent is published when a capture device disappears.
type DeviceRemovedEvent struct {
	UUID       string `json:"uuid" example:"398f9fdc-3739-5ab8-a7ae-b03af21427a3" doc:"Stable device identifier"`
	DeviceNode string `json:"device_node" example:"/dev/video0" doc:"Device node path"`
	Action     string `json:"action" example:"removed" doc:"Action type"`
	Timestamp  string `json:"timestamp" example:"2025-06-01T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceRemovedEvent.
func (e DeviceRemovedEvent) Type() uint32 { return TypeDeviceRemoved }

// ProbeCompletedEvent is published when a capability probe succeeds.
type ProbeCompletedEvent struct {
	models.DeviceInfo
	DurationMs int64  `json:"duration_ms" example:"412" doc:"Probe duration in milliseconds"`
	Timestamp  string `json:"timestamp" example:"2025-06-01T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProbeCompletedEvent.
func (e ProbeCompletedEvent) Type() uint32 { return TypeProbeCompleted }

// ProbeFailedEvent is published when a capability probe fails.
type ProbeFailedEvent struct {
	UUID       string `json:"uuid" example:"398f9fdc-3739-5ab8-a7ae-b03af21427a3" doc:"Stable device identifier"`
	DeviceNode string `json:"device_node" example:"/dev/video0" doc:"Device node path"`
	Code       string `json:"code" example:"UNSUPPORTED_CAPS" doc:"Failure code"`
	Error      string `json:"error" example:"Device capabilities not supported" doc:"Failure detail"`
	DurationMs int64  `json:"duration_ms" example:"10004" doc:"Probe duration in milliseconds"`
	Timestamp  string `json:"timestamp" example:"2025-06-01T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProbeFailedEvent.
func (e ProbeFailedEvent) Type() uint32 { return TypeProbeFailed }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-06-01T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
