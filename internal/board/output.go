package board

import (
	"go.uber.org/zap"

	"github.com/sweeney/wdt-ticker/internal/avr"
	"github.com/sweeney/wdt-ticker/internal/gpio"
)

// output drives PB1 and mirrors the level to an optional host GPIO line.
// Mirror failures are logged; the interrupt handler never sees them.
type output struct {
	pin    avr.Pin
	mirror gpio.Writer
	log    *zap.SugaredLogger
}

func (o *output) Set(high bool) {
	o.pin.Set(high)
	o.mirrorLevel(high)
}

func (o *output) mirrorLevel(high bool) {
	if o.mirror == nil {
		return
	}
	if err := o.mirror.Set(high); err != nil {
		o.log.Warnw("gpio mirror write failed", "high", high, "error", err)
	}
}
