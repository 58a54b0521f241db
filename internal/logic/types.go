// Package logic contains the tick state machine shared by the firmware and the
// host simulator: the watchdog interrupt handler and the sleep loop.
// This package has NO hardware or host dependencies. Time is injected.
package logic

import (
	"context"
	"time"
)

// Level is the logical level of the output signal.
type Level string

const (
	LevelLow  Level = "LOW"
	LevelHigh Level = "HIGH"
)

func levelOf(high bool) Level {
	if high {
		return LevelHigh
	}
	return LevelLow
}

// LoopState is the sleep loop's scheduling state.
type LoopState string

const (
	AwaitingTick   LoopState = "AWAITING_TICK"
	ProcessingTick LoopState = "PROCESSING_TICK"
)

// Event is emitted once for every iteration that observes the tick flag.
type Event struct {
	Timestamp time.Time
	// Seq counts observations, starting at 1.
	Seq uint64
	// Level is the output level at observation time.
	Level Level
	// Fired is the number of handler invocations so far. Fired-Seq is the
	// number of ticks that coalesced into earlier observations.
	Fired uint64
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Fired     uint64
	Observed  uint64
}

// Output drives the physical signal line. It must not block.
type Output interface {
	Set(high bool)
}

// SleepGate arms or disarms the sleep instruction.
type SleepGate interface {
	SleepEnable()
	SleepDisable()
}

// Sleeper is the full sleep control used by the loop.
type Sleeper interface {
	SleepGate
	// ArmPowerDown selects the lowest-power sleep mode.
	ArmPowerDown()
	// SleepCPU executes the sleep instruction. It blocks until an interrupt
	// has been handled, unless sleep is disabled.
	SleepCPU(ctx context.Context) error
}
