package board

import (
	"context"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/wdt-ticker/internal/avr"
	"github.com/sweeney/wdt-ticker/internal/gpio"
	"github.com/sweeney/wdt-ticker/internal/logic"
	"github.com/sweeney/wdt-ticker/internal/watchdog"
)

func newTestBoard(t *testing.T) (*Board, *gpio.FakeWriter) {
	t.Helper()
	mirror := gpio.NewFakeWriter()
	clk := clock.NewFake()
	clk.Set(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	return New(avr.NewDevice(), mirror, clk, zaptest.NewLogger(t).Sugar()), mirror
}

func portHigh(b *Board) bool {
	return b.Device().Peek(avr.PORTB)&avr.PB1 != 0
}

func TestBootFromPowerOn(t *testing.T) {
	b, mirror := newTestBoard(t)

	r := b.Boot()

	require.Equal(t, 1, r.Boot)
	require.True(t, r.Cause.Has(avr.PORF))
	require.Equal(t, watchdog.Stopped, r.Before.Mode)
	require.Equal(t, watchdog.InterruptMode, r.After.Mode)
	require.Equal(t, watchdog.Period, r.After.Prescaler)
	require.True(t, b.Device().InterruptsEnabled())
	require.Equal(t, uint8(0xFF), b.Device().Peek(avr.DDRB))
	require.False(t, portHigh(b))
	require.Equal(t, avr.SleepModePowerDown|avr.SE, b.Device().Peek(avr.SMCR))

	last, ok := mirror.Last()
	require.True(t, ok)
	require.False(t, last, "mirror driven low at boot")
}

// Output starts low, one expiry drives it high, the loop observes the flag
// once and goes back to sleep with the output still high.
func TestSingleTick(t *testing.T) {
	b, mirror := newTestBoard(t)
	var events []logic.Event
	b.OnTick(func(e logic.Event) { events = append(events, e) })
	b.Boot()
	require.False(t, portHigh(b))

	require.Equal(t, avr.Interrupt, b.Device().Expire())
	require.True(t, portHigh(b))
	require.True(t, b.State().TickPending())

	observed, err := b.Loop().Step(context.Background())
	require.NoError(t, err)
	require.True(t, observed)
	require.False(t, b.State().TickPending())
	require.Len(t, events, 1)
	require.Equal(t, logic.LevelHigh, events[0].Level)

	require.True(t, portHigh(b), "output holds until the next tick")
	require.Equal(t, logic.AwaitingTick, b.Loop().State())
	last, _ := mirror.Last()
	require.True(t, last)
}

// Boot after a watchdog reset: the flag is cleared, the watchdog ends up in
// interrupt mode, and the next expiry interrupts instead of resetting.
func TestBootAfterWatchdogReset(t *testing.T) {
	b, _ := newTestBoard(t)
	b.Device().PowerOn(avr.Cause(avr.WDRF))

	r := b.Boot()

	require.True(t, r.Cause.Has(avr.WDRF))
	require.Equal(t, watchdog.ResetMode, r.Before.Mode)
	require.Equal(t, watchdog.InterruptMode, r.After.Mode)
	require.Zero(t, b.Device().Peek(avr.MCUSR)&avr.WDRF)

	require.Equal(t, avr.Interrupt, b.Device().Expire())
	require.Zero(t, b.Device().ResetCount())
	require.Equal(t, uint64(1), b.Handler().Fired())
}

func TestThousandTicksReturnToLow(t *testing.T) {
	b, mirror := newTestBoard(t)
	b.Boot()

	for i := 0; i < 1000; i++ {
		require.Equal(t, avr.Interrupt, b.Device().Expire())
	}

	require.Equal(t, logic.LevelLow, b.State().Level())
	require.False(t, portHigh(b))
	require.Equal(t, uint64(1000), b.Handler().Fired())
	require.Equal(t, 1001, mirror.Count(), "boot write plus one per tick")
	require.True(t, b.State().TickPending(), "unobserved ticks coalesce into one flag")
}

func TestBootTwiceKeepsConfiguration(t *testing.T) {
	b, _ := newTestBoard(t)

	first := b.Boot()
	second := b.Boot()

	require.Equal(t, first.After, second.After)
	require.Equal(t, 2, b.Boots())
}

func TestMirrorErrorDoesNotReachHandler(t *testing.T) {
	b, mirror := newTestBoard(t)
	b.Boot()
	mirror.SetError = context.DeadlineExceeded

	require.Equal(t, avr.Interrupt, b.Device().Expire())
	require.True(t, portHigh(b))
	require.True(t, b.State().TickPending())
}

func TestRunUntilCanceled(t *testing.T) {
	b, _ := newTestBoard(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return b.Boots() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		b.Device().Expire()
		return b.Loop().Observed() >= 5
	}, 5*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRecoversFromReset(t *testing.T) {
	b, _ := newTestBoard(t)
	var boots []BootReport
	bootCh := make(chan BootReport, 4)
	b.OnBoot(func(r BootReport) { bootCh <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	boots = append(boots, <-bootCh)

	// A stray write sets WDE, which can be done without the unlock.
	dev := b.Device()
	dev.Store(avr.WDTCSR, dev.Load(avr.WDTCSR)|avr.WDE)
	require.Equal(t, avr.InterruptThenArmReset, dev.Expire())
	require.Equal(t, avr.Reset, dev.Expire())

	select {
	case r := <-bootCh:
		boots = append(boots, r)
	case <-time.After(5 * time.Second):
		t.Fatal("board did not reboot")
	}

	require.Equal(t, 2, boots[1].Boot)
	require.True(t, boots[1].Cause.Has(avr.WDRF))
	require.Equal(t, watchdog.InterruptMode, boots[1].After.Mode)
	require.Equal(t, 1, b.Resets())
	require.Equal(t, watchdog.InterruptMode, b.Watchdog().Mode)

	cancel()
	require.NoError(t, <-done)
}

func TestRunIgnoresResetsBeforeBoot(t *testing.T) {
	b, _ := newTestBoard(t)
	dev := b.Device()
	dev.PowerOn(avr.Cause(avr.WDRF))

	// The watchdog fires twice in reset mode before the boot code runs.
	require.Equal(t, avr.Reset, dev.Expire())
	require.Equal(t, avr.Reset, dev.Expire())

	bootCh := make(chan BootReport, 4)
	b.OnBoot(func(r BootReport) { bootCh <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	first := <-bootCh
	require.True(t, first.Cause.Has(avr.WDRF))
	require.Equal(t, watchdog.InterruptMode, first.After.Mode)

	require.Eventually(t, func() bool {
		dev.Expire()
		return b.Loop().Observed() >= 3
	}, 5*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 1, b.Boots())
	require.Zero(t, b.Resets())
	require.Len(t, bootCh, 0, "no second boot")
}
