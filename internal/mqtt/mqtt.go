// Package mqtt publishes flow readings, dry-run faults and lifecycle events,
// with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/flow-pump/internal/flow"
)

// Topics are the MQTT topics under a common prefix.
type Topics struct {
	Flow   string
	Fault  string
	System string
}

// NewTopics derives the topic set from prefix, e.g. "garden/pump".
func NewTopics(prefix string) Topics {
	return Topics{
		Flow:   prefix + "/flow",
		Fault:  prefix + "/fault",
		System: prefix + "/system",
	}
}

// Publisher publishes controller output to MQTT.
type Publisher interface {
	// PublishReading sends one flow sample. Returns error if publishing
	// fails (should not crash the process).
	PublishReading(r flow.Reading) error

	// PublishFault sends a dry-run state change.
	PublishFault(r flow.Reading) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "ENABLED", "DISABLED"
	Reason     string // e.g., "SIGTERM", "HTTP" (optional)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// FlowPayload is the MQTT payload for a reading.
type FlowPayload struct {
	Flow FlowInner `json:"flow"`
}

// FlowInner contains the reading details.
type FlowInner struct {
	Timestamp           string  `json:"timestamp"`
	RateLPM             float64 `json:"rate_lpm"`
	Pulses              uint32  `json:"pulses"`
	Delta               uint32  `json:"delta"`
	Dry                 bool    `json:"dry"`
	ErrorCode           uint8   `json:"error_code"`
	SecondsSinceEnabled uint32  `json:"seconds_since_enabled"`
}

// FormatReading creates the JSON payload for a reading.
func FormatReading(r flow.Reading) ([]byte, error) {
	return json.Marshal(FlowPayload{
		Flow: FlowInner{
			Timestamp:           r.Timestamp.UTC().Format(time.RFC3339),
			RateLPM:             r.RateLPM,
			Pulses:              r.Pulses,
			Delta:               r.Delta,
			Dry:                 r.IsDry,
			ErrorCode:           r.ErrorCode(),
			SecondsSinceEnabled: r.SecondsSinceEnabled,
		},
	})
}

// FaultPayload is the MQTT payload for a dry-run state change.
type FaultPayload struct {
	Fault FaultInner `json:"fault"`
}

// FaultInner contains the fault details.
type FaultInner struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	RateLPM   float64 `json:"rate_lpm"`
}

// FormatFault creates the JSON payload for the fault carried by r.
func FormatFault(r flow.Reading) ([]byte, error) {
	return json.Marshal(FaultPayload{
		Fault: FaultInner{
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(r.Fault),
			RateLPM:   r.RateLPM,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
