package logic

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is the main control loop. It sleeps in power-down until the handler
// has flagged a tick, consumes the flag, and sleeps again.
type Loop struct {
	state   *State
	handler *Handler
	sleep   Sleeper
	now     func() time.Time
	onTick  func(Event)

	current  atomic.Value // LoopState
	observed atomic.Uint64

	mu            sync.Mutex // guards startTime and lastHeartbeat
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewLoop creates a loop over the shared state. The handler is consulted only
// for its invocation count.
func NewLoop(state *State, handler *Handler, sleep Sleeper, now func() time.Time) *Loop {
	start := now()
	l := &Loop{
		state:         state,
		handler:       handler,
		sleep:         sleep,
		now:           now,
		startTime:     start,
		lastHeartbeat: start,
	}
	l.current.Store(AwaitingTick)
	return l
}

// OnTick registers fn to receive an Event for every observed tick. It runs on
// the loop, before the loop goes back to sleep, so it should be short.
func (l *Loop) OnTick(fn func(Event)) {
	l.onTick = fn
}

// Prepare selects power-down and enables sleep. Call it once after
// interrupts have been enabled and before Run.
func (l *Loop) Prepare() {
	l.sleep.ArmPowerDown()
	l.sleep.SleepEnable()
	l.current.Store(AwaitingTick)
}

// Step runs one iteration and reports whether it observed a tick. The
// returned error comes from the sleeper.
func (l *Loop) Step(ctx context.Context) (bool, error) {
	if !l.state.TestAndClear() {
		// Nothing to do; still go back to sleep rather than spin.
		return false, l.sleepMode(ctx)
	}

	l.current.Store(ProcessingTick)
	seq := l.observed.Add(1)
	if l.onTick != nil {
		l.onTick(Event{
			Timestamp: l.now(),
			Seq:       seq,
			Level:     l.state.Level(),
			Fired:     l.handler.Fired(),
		})
	}

	l.sleep.SleepDisable()
	l.sleep.ArmPowerDown()
	l.current.Store(AwaitingTick)
	return true, l.sleepMode(ctx)
}

// Run repeats Step until the sleeper returns an error, for example because
// ctx ended. On the chip it never returns.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if _, err := l.Step(ctx); err != nil {
			return err
		}
	}
}

// sleepMode is avr-libc's sleep_mode(): enable, sleep, disable.
func (l *Loop) sleepMode(ctx context.Context) error {
	l.sleep.SleepEnable()
	err := l.sleep.SleepCPU(ctx)
	l.sleep.SleepDisable()
	return err
}

// State returns the current scheduling state.
func (l *Loop) State() LoopState {
	return l.current.Load().(LoopState)
}

// Observed returns the number of observed ticks.
func (l *Loop) Observed() uint64 {
	return l.observed.Load()
}

// Restart zeroes the observation count and restarts uptime at now, as after
// a device reset. The heartbeat schedule is left alone so that a device
// stuck in resets still reports. Must not be called concurrently with Step.
func (l *Loop) Restart() {
	start := l.now()
	l.observed.Store(0)
	l.mu.Lock()
	l.startTime = start
	l.mu.Unlock()
	l.current.Store(AwaitingTick)
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled). Safe to call from any goroutine.
func (l *Loop) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastHeartbeat) < interval {
		return nil
	}

	l.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(l.startTime),
		Fired:     l.handler.Fired(),
		Observed:  l.observed.Load(),
	}
}
