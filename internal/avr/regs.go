// Package avr describes the ATmega328P register contract used by the ticker.
// Register addresses are data-space addresses, so the same constants work for
// memory-mapped access on the chip and for the simulated Device on a host.
package avr

// Reg is the data-space address of an I/O register.
type Reg uint8

// Registers touched by the ticker and its startup collaborators.
const (
	EIMSK  Reg = 0x3D
	DDRB   Reg = 0x24
	PORTB  Reg = 0x25
	TCCR0A Reg = 0x44
	TCCR0B Reg = 0x45
	TCNT0  Reg = 0x46
	OCR0A  Reg = 0x47
	SMCR   Reg = 0x53
	MCUSR  Reg = 0x54
	MCUCR  Reg = 0x55
	SREG   Reg = 0x5F
	WDTCSR Reg = 0x60
	PRR    Reg = 0x64
	EICRA  Reg = 0x69
	TIMSK0 Reg = 0x6E
)

// MCUSR reset flags. A flag is cleared by writing zero to it.
const (
	PORF  uint8 = 1 << 0
	EXTRF uint8 = 1 << 1
	BORF  uint8 = 1 << 2
	WDRF  uint8 = 1 << 3
)

// WDTCSR bits.
const (
	WDP0 uint8 = 1 << 0
	WDP1 uint8 = 1 << 1
	WDP2 uint8 = 1 << 2
	WDE  uint8 = 1 << 3
	WDCE uint8 = 1 << 4
	WDP3 uint8 = 1 << 5
	WDIE uint8 = 1 << 6
	WDIF uint8 = 1 << 7

	// WDPMask covers the four prescaler bits, which are not contiguous.
	WDPMask = WDP0 | WDP1 | WDP2 | WDP3
)

// SMCR bits.
const (
	SE  uint8 = 1 << 0
	SM0 uint8 = 1 << 1
	SM1 uint8 = 1 << 2
	SM2 uint8 = 1 << 3

	SleepModeMask = SM0 | SM1 | SM2

	SleepModeIdle      uint8 = 0
	SleepModePowerDown uint8 = SM1
)

// SREG global interrupt enable.
const SREGI uint8 = 1 << 7

// PB1 is the output line toggled on every tick.
const PB1 uint8 = 1 << 1

// ChangeWindow is the number of cycles after a WDCE|WDE write during which
// protected watchdog bits may be changed.
const ChangeWindow = 4
