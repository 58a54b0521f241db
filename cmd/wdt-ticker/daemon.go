package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/wdt-ticker/internal/board"
	"github.com/sweeney/wdt-ticker/internal/logic"
	"github.com/sweeney/wdt-ticker/internal/mqtt"
	"github.com/sweeney/wdt-ticker/internal/status"
	"github.com/sweeney/wdt-ticker/internal/web"
)

// heartbeatPoll is how often the heartbeat interval is checked.
const heartbeatPoll = time.Second

// daemon connects the simulated board to its observers.
type daemon struct {
	board     *board.Board
	osc       *board.Oscillator
	pub       mqtt.Publisher
	conn      mqtt.ConnectionStatus // nil when MQTT is disabled
	tracker   *status.Tracker
	srv       *web.Server // nil when HTTP is disabled
	heartbeat time.Duration
	clk       clock.Clock
	log       *zap.SugaredLogger
}

// run drives the board, its oscillator and the HTTP server until a signal
// arrives or one of them fails. A signal is reported as a SHUTDOWN event
// after everything has stopped.
func (d *daemon) run(ctx context.Context, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.board.OnBoot(d.onBoot)
	d.board.OnTick(d.onTick)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.board.Run(gctx) })
	g.Go(func() error { return d.osc.Run(gctx) })
	g.Go(func() error { return d.runHeartbeat(gctx) })

	if d.srv != nil {
		g.Go(func() error {
			if err := d.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return d.srv.Shutdown(context.Background())
		})
	}

	var reason string
	g.Go(func() error {
		select {
		case s := <-sig:
			reason = signalName(s)
			d.log.Infow("shutting down", "signal", reason)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	err := g.Wait()
	if reason != "" {
		d.publishSystem("SHUTDOWN", reason, true)
	}
	return err
}

func (d *daemon) onBoot(r board.BootReport) {
	d.tracker.RecordBoot(r.Boot, r.Cause.String(), status.Watchdog{
		Mode:      r.After.Mode.String(),
		TimeoutMs: r.After.Timeout.Milliseconds(),
	})

	event := "STARTUP"
	if r.Boot > 1 {
		event = "RESET"
	}
	d.publishSystem(event, r.Cause.String(), true)
}

func (d *daemon) onTick(ev logic.Event) {
	// The loop is back to awaiting a tick as soon as this returns.
	d.tracker.Update(ev.Level, logic.AwaitingTick, ev.Fired, ev.Seq)
	d.log.Debugw("tick", "seq", ev.Seq, "level", ev.Level, "fired", ev.Fired)

	if err := d.pub.Publish(ev); err != nil {
		d.log.Warnw("publish error", "error", err)
	}
}

// runHeartbeat checks the heartbeat interval on its own timer, so heartbeats
// continue while the watchdog is stopped or the device keeps resetting.
func (d *daemon) runHeartbeat(ctx context.Context) error {
	if d.heartbeat <= 0 {
		return nil
	}
	for {
		t := d.clk.NewTimer(heartbeatPoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}

		hb := d.board.Loop().CheckHeartbeat(d.clk.Now(), d.heartbeat)
		if hb == nil {
			continue
		}
		d.log.Infow("heartbeat",
			"uptime", hb.Uptime,
			"fired", hb.Fired,
			"observed", hb.Observed,
			"resets", d.board.Resets(),
		)
		d.publishSystem("HEARTBEAT", "", false)
	}
}

func (d *daemon) publishSystem(event, reason string, retained bool) {
	if d.conn != nil {
		d.tracker.SetMQTTConnected(d.conn.IsConnected())
	}
	snap := d.tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.pub.PublishSystem(se); err != nil {
		d.log.Warnw("failed to publish system event", "event", event, "error", err)
		return
	}
	d.log.Infow("published system event", "event", event, "reason", reason)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
