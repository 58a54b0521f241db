package avr

import (
	"context"
	"strings"
)

// Bus reads and writes I/O registers.
type Bus interface {
	Load(r Reg) uint8
	Store(r Reg, v uint8)
}

// TimedStorer is implemented by buses that can perform an unlock write and the
// following protected write back to back, with no call overhead in between.
// Real hardware needs this to meet the four-cycle window.
type TimedStorer interface {
	StoreTimed(r Reg, unlock, v uint8)
}

// CPU executes the sleep instruction. Sleep returns once the core is running
// again.
type CPU interface {
	Sleep(ctx context.Context) error
}

// Cause is a set of MCUSR reset flags.
type Cause uint8

// Has reports whether every flag in f is set.
func (c Cause) Has(f uint8) bool {
	return uint8(c)&f == f && f != 0
}

// String returns the flag names joined with '+', or "none".
func (c Cause) String() string {
	var names []string
	if c.Has(PORF) {
		names = append(names, "power-on")
	}
	if c.Has(EXTRF) {
		names = append(names, "external")
	}
	if c.Has(BORF) {
		names = append(names, "brown-out")
	}
	if c.Has(WDRF) {
		names = append(names, "watchdog")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// ParseCause maps a single reset cause name to its MCUSR flag.
// Returns false if the name is unknown.
func ParseCause(name string) (Cause, bool) {
	switch name {
	case "power-on":
		return Cause(PORF), true
	case "external":
		return Cause(EXTRF), true
	case "brown-out":
		return Cause(BORF), true
	case "watchdog":
		return Cause(WDRF), true
	}
	return 0, false
}
