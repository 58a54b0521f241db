package avr

// Pin is one bit of a PORT register.
type Pin struct {
	bus  Bus
	port Reg
	mask uint8
}

// NewPin returns the pin selected by mask on port.
func NewPin(bus Bus, port Reg, mask uint8) Pin {
	return Pin{bus: bus, port: port, mask: mask}
}

// Set drives the pin high or low.
func (p Pin) Set(high bool) {
	v := p.bus.Load(p.port)
	if high {
		v |= p.mask
	} else {
		v &^= p.mask
	}
	p.bus.Store(p.port, v)
}

// Toggle flips the pin.
func (p Pin) Toggle() {
	p.bus.Store(p.port, p.bus.Load(p.port)^p.mask)
}

// High reports the current output latch value.
func (p Pin) High() bool {
	return p.bus.Load(p.port)&p.mask != 0
}
