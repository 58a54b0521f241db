package board

import (
	"context"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/sweeney/wdt-ticker/internal/avr"
	"github.com/sweeney/wdt-ticker/internal/watchdog"
)

// IdlePeriod is how often the oscillator looks again while the watchdog is
// stopped. It matches the shortest hardware timeout.
const IdlePeriod = 16 * time.Millisecond

// Oscillator is the watchdog's free-running clock. It expires the device's
// watchdog every configured timeout.
type Oscillator struct {
	dev *avr.Device
	clk clock.Clock
	log *zap.SugaredLogger

	// OnExpire, if set, is called after each timeout with its outcome.
	OnExpire func(avr.Outcome)
}

// NewOscillator returns an oscillator for dev paced by clk.
func NewOscillator(dev *avr.Device, clk clock.Clock, log *zap.SugaredLogger) *Oscillator {
	return &Oscillator{dev: dev, clk: clk, log: log}
}

// Run expires the watchdog until ctx ends. The timeout is re-read after
// every expiry, so a reconfiguration takes effect on the next period.
func (o *Oscillator) Run(ctx context.Context) error {
	for {
		st := watchdog.Decode(o.dev.Peek(avr.WDTCSR), o.dev.Peek(avr.MCUSR))
		d := st.Timeout
		if !st.Running() || d <= 0 {
			d = IdlePeriod
		}

		t := o.clk.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}

		out := o.dev.Expire()
		switch out {
		case avr.Reset:
			o.log.Warnw("watchdog reset", "mode", st.Mode.String())
		case avr.Pending:
			o.log.Debugw("watchdog interrupt pending")
		}
		if o.OnExpire != nil {
			o.OnExpire(out)
		}
	}
}
