// Package board wires the tick core to a simulated ATmega328P: boot
// sequence, watchdog vector, output fan-out and recovery from device resets.
package board

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/sweeney/wdt-ticker/internal/avr"
	"github.com/sweeney/wdt-ticker/internal/gpio"
	"github.com/sweeney/wdt-ticker/internal/logic"
	"github.com/sweeney/wdt-ticker/internal/watchdog"
)

// BootReport describes one pass through the boot sequence.
type BootReport struct {
	// Boot counts boots, starting at 1.
	Boot int
	// Cause is MCUSR as found at boot, before the watchdog check.
	Cause avr.Cause
	// Before and After are the watchdog state around Initialize.
	Before watchdog.Status
	After  watchdog.Status
}

// Board is one simulated device running the ticker.
type Board struct {
	dev     *avr.Device
	sleep   *avr.SleepControl
	state   *logic.State
	handler *logic.Handler
	loop    *logic.Loop
	out     *output
	log     *zap.SugaredLogger

	boots  atomic.Int64
	resets atomic.Int64

	onBoot func(BootReport)
}

// New builds a board on dev. The output level is mirrored to mirror when it
// is not nil.
func New(dev *avr.Device, mirror gpio.Writer, clk clock.Clock, log *zap.SugaredLogger) *Board {
	b := &Board{
		dev:   dev,
		sleep: avr.NewSleepControl(dev, dev),
		state: &logic.State{},
		log:   log,
	}
	b.out = &output{
		pin:    avr.NewPin(dev, avr.PORTB, avr.PB1),
		mirror: mirror,
		log:    log,
	}
	b.handler = logic.NewHandler(b.state, b.out, b.sleep)
	b.loop = logic.NewLoop(b.state, b.handler, b.sleep, clk.Now)
	dev.HandleWatchdog(b.handler.Fire)
	return b
}

// OnTick registers fn to receive every observed tick.
func (b *Board) OnTick(fn func(logic.Event)) {
	b.loop.OnTick(fn)
}

// OnBoot registers fn to receive a report after every boot.
func (b *Board) OnBoot(fn func(BootReport)) {
	b.onBoot = fn
}

// Boot runs the startup sequence: RAM and I/O to defaults, peripherals
// parked, then the watchdog configured with interrupts disabled.
func (b *Board) Boot() BootReport {
	b.dev.AckReset()
	b.state.Reset()
	b.handler.ResetCount()
	b.loop.Restart()

	cause := avr.Cause(b.dev.Load(avr.MCUSR))

	avr.InitIO(b.dev)
	b.out.mirrorLevel(false)
	avr.InitTimer0(b.dev)
	avr.DisableExternal(b.dev)

	b.dev.Cli()
	before := watchdog.Read(b.dev)
	watchdog.Initialize(b.dev)
	after := watchdog.Read(b.dev)
	b.dev.Sei()

	b.loop.Prepare()

	r := BootReport{
		Boot:   int(b.boots.Add(1)),
		Cause:  cause,
		Before: before,
		After:  after,
	}
	b.log.Infow("booted",
		"boot", r.Boot,
		"cause", r.Cause.String(),
		"watchdog_before", r.Before.Mode.String(),
		"watchdog", r.After.Mode.String(),
		"timeout", r.After.Timeout,
	)
	if b.onBoot != nil {
		b.onBoot(r)
	}
	return r
}

// Run boots and runs the sleep loop until ctx ends. A device reset restarts
// the boot sequence.
func (b *Board) Run(ctx context.Context) error {
	for {
		b.Boot()
		err := b.loop.Run(ctx)
		if errors.Is(err, avr.ErrReset) {
			n := b.resets.Add(1)
			b.log.Warnw("device reset", "resets", n, "mcusr", avr.Cause(b.dev.Peek(avr.MCUSR)).String())
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}

// Device returns the simulated device.
func (b *Board) Device() *avr.Device {
	return b.dev
}

// State returns the shared tick state.
func (b *Board) State() *logic.State {
	return b.state
}

// Loop returns the sleep loop.
func (b *Board) Loop() *logic.Loop {
	return b.loop
}

// Handler returns the watchdog interrupt handler.
func (b *Board) Handler() *logic.Handler {
	return b.handler
}

// Boots returns the number of completed boots.
func (b *Board) Boots() int {
	return int(b.boots.Load())
}

// Resets returns the number of device resets observed by Run.
func (b *Board) Resets() int {
	return int(b.resets.Load())
}

// Watchdog returns the current watchdog state without using bus cycles.
func (b *Board) Watchdog() watchdog.Status {
	return watchdog.Decode(b.dev.Peek(avr.WDTCSR), b.dev.Peek(avr.MCUSR))
}
