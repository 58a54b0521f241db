package logic

import "sync/atomic"

// Handler is the watchdog interrupt handler.
type Handler struct {
	state *State
	out   Output
	gate  SleepGate
	fired atomic.Uint64
}

// NewHandler returns a handler that toggles out and flags state.
func NewHandler(state *State, out Output, gate SleepGate) *Handler {
	return &Handler{state: state, out: out, gate: gate}
}

// Fire runs once per watchdog timeout. It cannot fail and does not block.
//
// The sleep disable/enable bracket has no effect on wake-up, since taking the
// interrupt already left sleep. It is kept to mark that the body must not
// sleep.
func (h *Handler) Fire() {
	h.gate.SleepDisable()

	h.out.Set(h.state.toggle())
	h.state.setTick()
	h.fired.Add(1)

	h.gate.SleepEnable()
}

// Fired returns how many times the handler has run.
func (h *Handler) Fired() uint64 {
	return h.fired.Load()
}

// ResetCount zeroes the invocation counter.
func (h *Handler) ResetCount() {
	h.fired.Store(0)
}
