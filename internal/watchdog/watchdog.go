// Package watchdog configures the ATmega328P watchdog as a periodic interrupt
// source instead of a reset source.
//
// Every function here touches protected WDTCSR bits and must run with global
// interrupts disabled: an interrupt between the unlock write and the
// configuration write pushes the second write out of the change window, and
// hardware silently ignores it.
package watchdog

import (
	"time"

	"github.com/sweeney/wdt-ticker/internal/avr"
)

// Period is the prescaler used for ticks: 64K oscillator cycles, about half a
// second.
const Period = Prescale64K

// Initialize makes the watchdog fire an interrupt every Period, never a reset.
// It first recovers from a watchdog reset left over from a previous run.
func Initialize(bus avr.Bus) {
	CheckReset(bus)
	Setup(bus)
}

// CheckReset clears a latched watchdog reset flag and then stops the
// watchdog. While WDRF is latched WDE cannot be cleared, so the device would
// keep resetting with the default 16 ms timeout. Reports whether the flag was
// set.
func CheckReset(bus avr.Bus) bool {
	mcusr := bus.Load(avr.MCUSR)
	if mcusr&avr.WDRF == 0 {
		return false
	}
	// Writing one leaves the other reset flags untouched.
	bus.Store(avr.MCUSR, mcusr&^avr.WDRF)
	timedStore(bus, 0)
	return true
}

// Setup selects interrupt mode (WDIE set, WDE clear) with the Period timeout.
func Setup(bus avr.Bus) {
	timedStore(bus, avr.WDIE|Period.Bits())
}

// timedStore performs the unlock write followed by v.
func timedStore(bus avr.Bus, v uint8) {
	const unlock = avr.WDCE | avr.WDE
	if ts, ok := bus.(avr.TimedStorer); ok {
		ts.StoreTimed(avr.WDTCSR, unlock, v)
		return
	}
	bus.Store(avr.WDTCSR, bus.Load(avr.WDTCSR)|unlock)
	bus.Store(avr.WDTCSR, v)
}

// Mode is the watchdog operating mode selected by WDE and WDIE.
type Mode int

const (
	Stopped Mode = iota
	InterruptMode
	ResetMode
	InterruptAndResetMode
)

func (m Mode) String() string {
	switch m {
	case Stopped:
		return "stopped"
	case InterruptMode:
		return "interrupt"
	case ResetMode:
		return "reset"
	case InterruptAndResetMode:
		return "interrupt+reset"
	}
	return "unknown"
}

// Status is a decoded view of the watchdog registers.
type Status struct {
	Mode      Mode
	Prescaler Prescaler
	Timeout   time.Duration
	// ResetLatched is MCUSR.WDRF.
	ResetLatched bool
}

// Running reports whether timeouts have any effect.
func (s Status) Running() bool {
	return s.Mode != Stopped
}

// Read decodes the watchdog state from the bus.
func Read(bus avr.Bus) Status {
	return Decode(bus.Load(avr.WDTCSR), bus.Load(avr.MCUSR))
}

// Decode builds a Status from raw WDTCSR and MCUSR values.
func Decode(wdtcsr, mcusr uint8) Status {
	var m Mode
	wde := wdtcsr&avr.WDE != 0
	wdie := wdtcsr&avr.WDIE != 0
	switch {
	case wde && wdie:
		m = InterruptAndResetMode
	case wde:
		m = ResetMode
	case wdie:
		m = InterruptMode
	}
	p := PrescalerFromBits(wdtcsr)
	return Status{
		Mode:         m,
		Prescaler:    p,
		Timeout:      p.Timeout(),
		ResetLatched: mcusr&avr.WDRF != 0,
	}
}
