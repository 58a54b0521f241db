package watchdog

import (
	"time"

	"github.com/sweeney/wdt-ticker/internal/avr"
)

// OscillatorHz is the nominal frequency of the watchdog oscillator. The real
// oscillator drifts with voltage and temperature, so timeouts are approximate.
const OscillatorHz = 128000

// Prescaler is the WDP3..0 value.
type Prescaler uint8

const (
	Prescale2K Prescaler = iota
	Prescale4K
	Prescale8K
	Prescale16K
	Prescale32K
	Prescale64K
	Prescale128K
	Prescale256K
	Prescale512K
	Prescale1024K
)

// Valid reports whether p is a defined prescaler. Values above 9 are
// reserved.
func (p Prescaler) Valid() bool {
	return p <= Prescale1024K
}

// Cycles returns the number of oscillator cycles per timeout, or 0 for a
// reserved value.
func (p Prescaler) Cycles() uint32 {
	if !p.Valid() {
		return 0
	}
	return 2048 << p
}

// Timeout returns the nominal time between expiries.
func (p Prescaler) Timeout() time.Duration {
	return time.Duration(p.Cycles()) * time.Second / OscillatorHz
}

// Bits returns the WDTCSR encoding. WDP3 sits apart from WDP2..0.
func (p Prescaler) Bits() uint8 {
	v := uint8(p) & 0x07
	if p&0x08 != 0 {
		v |= avr.WDP3
	}
	return v
}

// PrescalerFromBits extracts the prescaler from a WDTCSR value.
func PrescalerFromBits(wdtcsr uint8) Prescaler {
	p := Prescaler(wdtcsr & (avr.WDP0 | avr.WDP1 | avr.WDP2))
	if wdtcsr&avr.WDP3 != 0 {
		p |= 0x08
	}
	return p
}
