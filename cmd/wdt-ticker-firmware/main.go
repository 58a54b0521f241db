//go:build tinygo && avr

// Command wdt-ticker-firmware toggles PB1 every watchdog period and sleeps
// in power-down in between.
//
//	tinygo flash -target=arduino ./cmd/wdt-ticker-firmware
package main

import (
	"context"
	chip "device/avr"
	"runtime/interrupt"
	"time"

	"github.com/sweeney/wdt-ticker/internal/avr"
	"github.com/sweeney/wdt-ticker/internal/logic"
	"github.com/sweeney/wdt-ticker/internal/watchdog"
)

var (
	bus     avr.MMIO
	core    avr.Core
	state   logic.State
	handler *logic.Handler
)

func main() {
	sleep := avr.NewSleepControl(bus, core)
	handler = logic.NewHandler(&state, avr.NewPin(bus, avr.PORTB, avr.PB1), sleep)

	avr.InitIO(bus)
	avr.InitTimer0(bus)
	avr.DisableExternal(bus)

	interrupt.New(chip.IRQ_WDT, func(interrupt.Interrupt) {
		handler.Fire()
	})

	core.Cli()
	watchdog.Initialize(bus)
	core.Sei()

	loop := logic.NewLoop(&state, handler, sleep, func() time.Time { return time.Time{} })
	loop.Prepare()
	loop.Run(context.Background())
}
