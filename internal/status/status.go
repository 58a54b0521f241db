// Package status provides a thread-safe status tracker for the wdt-ticker daemon.
// It is read by HTTP handlers, the metrics collector and MQTT snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/wdt-ticker/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	GPIOChip    string
	GPIOLine    int
	BootCause   string
	WSBroker    string // websocket broker URL for the live page (empty = disabled)
}

// Watchdog is the decoded watchdog configuration.
type Watchdog struct {
	Mode      string
	TimeoutMs int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Level          logic.Level
	LoopState      logic.LoopState
	Fired          uint64
	Observed       uint64
	Boots          int
	Resets         int
	LastResetCause string
	Watchdog       Watchdog
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Coalesced returns the number of handler runs that were never observed as a
// separate tick.
func (s Snapshot) Coalesced() uint64 {
	if s.Fired < s.Observed {
		return 0
	}
	return s.Fired - s.Observed
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
// now supplies Snapshot.Now.
func NewTracker(startTime time.Time, cfg Config, now func() time.Time) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: now,
	}
}

// Update sets the tick state and counters.
// Called from the loop on every observed tick and heartbeat.
func (t *Tracker) Update(level logic.Level, state logic.LoopState, fired, observed uint64) {
	t.mu.Lock()
	t.snap.Level = level
	t.snap.LoopState = state
	t.snap.Fired = fired
	t.snap.Observed = observed
	t.mu.Unlock()
}

// RecordBoot records a completed boot.
func (t *Tracker) RecordBoot(boot int, cause string, wd Watchdog) {
	t.mu.Lock()
	t.snap.Boots = boot
	t.snap.LastResetCause = cause
	t.snap.Watchdog = wd
	if boot > 1 {
		t.snap.Resets = boot - 1
	}
	t.snap.Level = logic.LevelLow
	t.snap.LoopState = logic.AwaitingTick
	t.snap.Fired = 0
	t.snap.Observed = 0
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
