//go:build tinygo && avr

// This file is built only for the real chip.
package avr

import (
	"context"
	chip "device/avr"
	"runtime/volatile"
	"unsafe"
)

// MMIO accesses registers through their data-space addresses.
type MMIO struct{}

func reg8(r Reg) *volatile.Register8 {
	return (*volatile.Register8)(unsafe.Pointer(uintptr(r)))
}

// Load implements Bus.
func (MMIO) Load(r Reg) uint8 { return reg8(r).Get() }

// Store implements Bus.
func (MMIO) Store(r Reg, v uint8) { reg8(r).Set(v) }

// StoreTimed implements TimedStorer. The two stores compile to back-to-back
// sts instructions, well inside the change window.
func (MMIO) StoreTimed(r Reg, unlock, v uint8) {
	p := reg8(r)
	p.Set(p.Get() | unlock)
	p.Set(v)
}

// Core is the AVR core itself.
type Core struct{}

// Sleep implements CPU by executing the sleep instruction.
func (Core) Sleep(ctx context.Context) error {
	chip.Asm("sleep")
	return nil
}

// Cli clears the global interrupt enable.
func (Core) Cli() { chip.Asm("cli") }

// Sei sets the global interrupt enable.
func (Core) Sei() { chip.Asm("sei") }
