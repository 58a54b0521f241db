package avr

import (
	"context"
	"errors"
	"sync"
)

// ErrReset is returned by Device.Sleep when the device reset while the core
// was asleep (or before it got there).
var ErrReset = errors.New("avr: device reset")

// Outcome describes what a watchdog timeout did.
type Outcome int

const (
	// Stopped means neither WDE nor WDIE was set; nothing happened.
	Stopped Outcome = iota
	// Interrupt means the watchdog vector ran.
	Interrupt
	// Pending means WDIF was latched but interrupts were globally disabled.
	Pending
	// InterruptThenArmReset means the vector ran in interrupt-and-reset mode.
	// Hardware cleared WDIE, so the next timeout resets the device.
	InterruptThenArmReset
	// Reset means the device restarted.
	Reset
)

func (o Outcome) String() string {
	switch o {
	case Stopped:
		return "stopped"
	case Interrupt:
		return "interrupt"
	case Pending:
		return "pending"
	case InterruptThenArmReset:
		return "interrupt-then-arm-reset"
	case Reset:
		return "reset"
	}
	return "unknown"
}

// Device is a simulated ATmega328P reduced to what the ticker touches: a
// register file, the watchdog timed sequence, the reset-cause register,
// global interrupt enable and sleep.
//
// Every Load and Store costs one cycle. Device implements Bus and CPU.
type Device struct {
	mu     sync.Mutex
	regs   [256]uint8
	iflag  bool
	cycle  uint64
	window uint64 // last cycle of the open WDCE window, 0 when closed
	isr    func()
	resets int

	// isrMu serialises vector execution between Expire and Sei.
	isrMu sync.Mutex

	wake  chan struct{}
	reset chan struct{}
}

// NewDevice returns a device fresh from a power-on reset.
func NewDevice() *Device {
	d := &Device{
		wake:  make(chan struct{}, 1),
		reset: make(chan struct{}, 1),
	}
	d.PowerOn(Cause(PORF))
	return d
}

// PowerOn restarts the device with the given reset cause latched in MCUSR.
// It does not count as a reset for ResetCount.
func (d *Device) PowerOn(cause Cause) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked(uint8(cause))
	drain(d.reset)
}

// AckReset discards a pending reset notification. Boot code calls it first:
// the boot it starts is the response to that reset, so a Sleep after the
// boot must not report it again.
func (d *Device) AckReset() {
	d.mu.Lock()
	drain(d.reset)
	d.mu.Unlock()
}

// HandleWatchdog installs fn as the watchdog interrupt vector.
func (d *Device) HandleWatchdog(fn func()) {
	d.mu.Lock()
	d.isr = fn
	d.mu.Unlock()
}

// Load implements Bus.
func (d *Device) Load(r Reg) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cycle++
	switch r {
	case SREG:
		if d.iflag {
			return d.regs[SREG] | SREGI
		}
		return d.regs[SREG] &^ SREGI
	case WDTCSR:
		v := d.regs[WDTCSR]
		if d.windowOpen() {
			v |= WDCE
		}
		return v
	}
	return d.regs[r]
}

// Store implements Bus.
func (d *Device) Store(r Reg, v uint8) {
	d.mu.Lock()
	d.cycle++
	deliver := false
	switch r {
	case MCUSR:
		// Flags are cleared by writing zero; writing one has no effect.
		d.regs[MCUSR] &= v
		d.forceWDE()
	case WDTCSR:
		d.storeWDTCSR(v)
	case SREG:
		d.regs[SREG] = v &^ SREGI
		deliver = d.setIFlag(v&SREGI != 0)
	default:
		d.regs[r] = v
	}
	if deliver {
		d.dispatchLocked(d.regs[WDTCSR]&WDE != 0)
		return
	}
	d.mu.Unlock()
}

// Peek returns a register without using a bus cycle. It models hardware
// that observes the register directly, such as the watchdog oscillator.
func (d *Device) Peek(r Reg) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[r]
}

// Cycle returns the number of bus cycles used so far.
func (d *Device) Cycle() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycle
}

// ResetCount returns how many times the device reset itself since creation.
func (d *Device) ResetCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// InterruptsEnabled reports SREG.I.
func (d *Device) InterruptsEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.iflag
}

// Cli clears the global interrupt enable.
func (d *Device) Cli() {
	d.mu.Lock()
	d.cycle++
	d.iflag = false
	d.mu.Unlock()
}

// Sei sets the global interrupt enable and delivers a latched watchdog
// interrupt, if any.
func (d *Device) Sei() {
	d.mu.Lock()
	d.cycle++
	if d.setIFlag(true) {
		d.dispatchLocked(d.regs[WDTCSR]&WDE != 0)
		return
	}
	d.mu.Unlock()
}

// Expire models one watchdog timeout.
func (d *Device) Expire() Outcome {
	d.mu.Lock()
	csr := d.regs[WDTCSR]
	wde := csr&WDE != 0
	wdie := csr&WDIE != 0

	switch {
	case !wde && !wdie:
		d.mu.Unlock()
		return Stopped
	case wde && !wdie, wde && csr&WDIF != 0:
		// Reset mode, or the previous interrupt in interrupt-and-reset mode
		// was never serviced.
		d.resetLocked(WDRF)
		d.mu.Unlock()
		return Reset
	}

	d.regs[WDTCSR] |= WDIF
	if !d.iflag {
		d.mu.Unlock()
		return Pending
	}
	if d.isr == nil {
		// An unhandled vector jumps to the reset vector without latching a
		// cause.
		d.resetLocked(0)
		d.mu.Unlock()
		return Reset
	}
	d.dispatchLocked(wde)
	if wde {
		return InterruptThenArmReset
	}
	return Interrupt
}

// Sleep implements CPU. With SMCR.SE clear it returns at once. Otherwise it
// blocks until the watchdog vector has run, the device resets, or ctx ends.
func (d *Device) Sleep(ctx context.Context) error {
	if d.Load(SMCR)&SE == 0 {
		return nil
	}
	select {
	case <-d.reset:
		return ErrReset
	case <-d.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// storeWDTCSR applies the watchdog change-enable rules. Called with mu held.
func (d *Device) storeWDTCSR(v uint8) {
	next := d.regs[WDTCSR]

	// WDIF is cleared by writing one to it.
	if v&WDIF != 0 {
		next &^= WDIF
	}
	next = next&^WDIE | v&WDIE

	if d.windowOpen() {
		next = next&^(WDE|WDPMask) | v&(WDE|WDPMask)
		d.window = 0
	} else {
		// Outside the window WDE can be set but never cleared.
		next |= v & WDE
	}
	if v&(WDCE|WDE) == WDCE|WDE {
		d.window = d.cycle + ChangeWindow
	}

	d.regs[WDTCSR] = next
	d.forceWDE()
}

func (d *Device) windowOpen() bool {
	return d.window != 0 && d.cycle <= d.window
}

// forceWDE keeps WDE set while WDRF is latched.
func (d *Device) forceWDE() {
	if d.regs[MCUSR]&WDRF != 0 {
		d.regs[WDTCSR] |= WDE
	}
}

// setIFlag sets SREG.I and reports whether a latched watchdog interrupt is
// now deliverable.
func (d *Device) setIFlag(on bool) bool {
	was := d.iflag
	d.iflag = on
	csr := d.regs[WDTCSR]
	return on && !was && d.isr != nil && csr&WDIF != 0 && csr&WDIE != 0
}

// dispatchLocked runs the watchdog vector. It is entered with mu held and
// returns with mu released. The core wakes only after the vector returns.
// A reset while the vector runs leaves the fresh device alone: I stays clear
// and no wake-up is posted.
func (d *Device) dispatchLocked(wde bool) {
	d.regs[WDTCSR] &^= WDIF
	if wde {
		d.regs[WDTCSR] &^= WDIE
	}
	isr := d.isr
	gen := d.resets
	d.iflag = false
	d.mu.Unlock()

	d.isrMu.Lock()
	isr()
	d.isrMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.resets != gen {
		return
	}
	d.iflag = true
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// resetLocked restarts the device. Called with mu held.
func (d *Device) resetLocked(cause uint8) {
	d.clearLocked(d.regs[MCUSR] | cause)
	d.resets++
	select {
	case d.reset <- struct{}{}:
	default:
	}
}

func (d *Device) clearLocked(mcusr uint8) {
	d.regs = [256]uint8{}
	d.regs[MCUSR] = mcusr
	d.forceWDE()
	d.iflag = false
	d.window = 0
	drain(d.wake)
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
