// Package mqtt publishes tick telemetry with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/wdt-ticker/internal/logic"
)

// Topic is the MQTT topic for observed ticks.
const Topic = "wdt-ticker/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "wdt-ticker/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a tick event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, reset, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "RESET", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "watchdog" (shutdown and reset only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Tick TickPayload `json:"tick"`
}

// TickPayload contains the tick details.
type TickPayload struct {
	Timestamp string `json:"timestamp"`
	Seq       uint64 `json:"seq"`
	Level     string `json:"level"`
	Fired     uint64 `json:"fired"`
	Coalesced uint64 `json:"coalesced"`
}

// FormatPayload creates the JSON payload for a tick event.
func FormatPayload(event logic.Event) ([]byte, error) {
	var coalesced uint64
	if event.Fired > event.Seq {
		coalesced = event.Fired - event.Seq
	}
	payload := Payload{
		Tick: TickPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Seq:       event.Seq,
			Level:     string(event.Level),
			Fired:     event.Fired,
			Coalesced: coalesced,
		},
	}
	return json.Marshal(payload)
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

// NopPublisher discards everything. It stands in when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(logic.Event) error       { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
