package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Level          string       `json:"level"`
	LoopState      string       `json:"loop_state"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	Boots          int          `json:"boots"`
	Resets         int          `json:"resets"`
	LastResetCause string       `json:"last_reset_cause,omitempty"`
	Watchdog       WatchdogJSON `json:"watchdog"`
	Ticks          TicksJSON    `json:"ticks"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Config         ConfigJSON   `json:"config"`
}

// WatchdogJSON is the JSON representation of the watchdog configuration.
type WatchdogJSON struct {
	Mode      string `json:"mode"`
	TimeoutMs int64  `json:"timeout_ms"`
}

// TicksJSON is the JSON representation of tick counters.
type TicksJSON struct {
	Fired     uint64 `json:"fired"`
	Observed  uint64 `json:"observed"`
	Coalesced uint64 `json:"coalesced"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	GPIOChip    string `json:"gpio_chip,omitempty"`
	GPIOLine    int    `json:"gpio_line"`
	BootCause   string `json:"boot_cause"`
	WSBroker    string `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	level := string(snap.Level)
	if level == "" {
		level = "UNKNOWN"
	}
	state := string(snap.LoopState)
	if state == "" {
		state = "UNKNOWN"
	}

	return StatusInner{
		Level:          level,
		LoopState:      state,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		Boots:          snap.Boots,
		Resets:         snap.Resets,
		LastResetCause: snap.LastResetCause,
		Watchdog: WatchdogJSON{
			Mode:      snap.Watchdog.Mode,
			TimeoutMs: snap.Watchdog.TimeoutMs,
		},
		Ticks: TicksJSON{
			Fired:     snap.Fired,
			Observed:  snap.Observed,
			Coalesced: snap.Coalesced(),
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			GPIOChip:    snap.Config.GPIOChip,
			GPIOLine:    snap.Config.GPIOLine,
			BootCause:   snap.Config.BootCause,
			WSBroker:    snap.Config.WSBroker,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
