package logic

import "sync/atomic"

// State is the memory shared between the interrupt handler and the loop.
// Only the handler sets the tick flag and flips the level; only the loop
// clears the flag.
type State struct {
	tick  atomic.Bool
	level atomic.Bool
}

// setTick records that a tick occurred. Repeated ticks coalesce.
func (s *State) setTick() {
	s.tick.Store(true)
}

// toggle flips the level and returns the new value.
func (s *State) toggle() bool {
	for {
		old := s.level.Load()
		if s.level.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// TestAndClear clears the tick flag and reports whether it was set.
func (s *State) TestAndClear() bool {
	return s.tick.Swap(false)
}

// TickPending reports whether the tick flag is set, without clearing it.
func (s *State) TickPending() bool {
	return s.tick.Load()
}

// High reports the output level.
func (s *State) High() bool {
	return s.level.Load()
}

// Level reports the output level.
func (s *State) Level() Level {
	return levelOf(s.level.Load())
}

// Reset returns both bits to their boot values, as a device reset clears RAM.
func (s *State) Reset() {
	s.tick.Store(false)
	s.level.Store(false)
}
