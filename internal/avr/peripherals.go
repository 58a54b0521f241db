package avr

// InitIO makes all of port B outputs, driven low.
func InitIO(bus Bus) {
	bus.Store(DDRB, 0xFF)
	bus.Store(PORTB, 0x00)
}

// InitTimer0 configures timer 0 for CTC at prescale 1024. Nothing consumes
// it and its compare interrupt stays masked. It also stops in power-down.
func InitTimer0(bus Bus) {
	bus.Store(TCCR0B, 0x00) // stop
	bus.Store(TCNT0, 0x00)
	bus.Store(TCCR0A, 0x02) // CTC
	bus.Store(OCR0A, 0xFF)
	bus.Store(TIMSK0, 0x00)
	bus.Store(TCCR0B, 0x05) // clk/1024
}

// DisableExternal clears the external interrupt and power reduction
// registers to their disabled defaults.
func DisableExternal(bus Bus) {
	bus.Store(MCUCR, 0x00)
	bus.Store(EICRA, 0x00)
	bus.Store(EIMSK, 0x00)
	bus.Store(PRR, 0x00)
}
