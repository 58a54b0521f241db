package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/wdt-ticker/internal/avr"
	"github.com/sweeney/wdt-ticker/internal/board"
	"github.com/sweeney/wdt-ticker/internal/gpio"
	"github.com/sweeney/wdt-ticker/internal/mqtt"
	"github.com/sweeney/wdt-ticker/internal/status"
	"github.com/sweeney/wdt-ticker/internal/watchdog"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr: got %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.Broker != "" {
		t.Errorf("Broker: got %q, want empty", cfg.Broker)
	}
	if cfg.Heartbeat != 15*time.Minute {
		t.Errorf("Heartbeat: got %v, want 15m", cfg.Heartbeat)
	}
	if cfg.GPIOLine != gpio.DefaultLine {
		t.Errorf("GPIOLine: got %d, want %d", cfg.GPIOLine, gpio.DefaultLine)
	}
	if cfg.BootCause != "power-on" {
		t.Errorf("BootCause: got %q, want power-on", cfg.BootCause)
	}
	if cfg.WSBroker != "" {
		t.Errorf("WSBroker without a broker: got %q, want empty", cfg.WSBroker)
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	cfg, err := parseFlags([]string{
		"--broker", "tcp://10.0.0.2:1883",
		"--heartbeat", "30s",
		"--gpio-chip", "gpiochip1",
		"--gpio-line", "17",
		"--boot-cause", "watchdog",
		"--http", "",
		"--log-level", "debug",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.Broker != "tcp://10.0.0.2:1883" || cfg.Heartbeat != 30*time.Second {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.GPIOChip != "gpiochip1" || cfg.GPIOLine != 17 {
		t.Errorf("unexpected gpio: %s:%d", cfg.GPIOChip, cfg.GPIOLine)
	}
	if cfg.HTTPAddr != "" {
		t.Errorf("HTTPAddr: got %q, want empty", cfg.HTTPAddr)
	}
	if cfg.BootCause != "watchdog" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.WSBroker != "ws://10.0.0.2:9001" {
		t.Errorf("WSBroker: got %q, want ws://10.0.0.2:9001", cfg.WSBroker)
	}
}

func TestResolveWSBroker(t *testing.T) {
	tests := []struct {
		ws, broker, want string
	}{
		{"=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"=broker", "", ""},
		{"off", "tcp://192.168.1.200:1883", ""},
		{"wss://mqtt.example.com/ws", "tcp://192.168.1.200:1883", "wss://mqtt.example.com/ws"},
	}
	for _, tt := range tests {
		got, err := resolveWSBroker(tt.ws, tt.broker)
		if err != nil {
			t.Errorf("resolveWSBroker(%q, %q): %v", tt.ws, tt.broker, err)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveWSBroker(%q, %q): got %q, want %q", tt.ws, tt.broker, got, tt.want)
		}
	}

	if _, err := resolveWSBroker("=broker", "tcp://[::1"); err == nil {
		t.Error("expected error for unparseable broker")
	}
}

func TestParseFlagsRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown boot cause", []string{"--boot-cause", "lightning"}},
		{"negative heartbeat", []string{"--heartbeat", "-1s"}},
		{"unknown flag", []string{"--poll", "100ms"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPrintConfig(t *testing.T) {
	cfg, err := parseFlags([]string{"--gpio-line", "4", "--heartbeat", "1m"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	var buf bytes.Buffer
	if err := printConfig(&buf, cfg); err != nil {
		t.Fatalf("printConfig: %v", err)
	}

	var got status.Config
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got.GPIOLine != 4 || got.HeartbeatMs != 60000 {
		t.Errorf("unexpected printed config: %+v", got)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug"); err != nil {
		t.Errorf("debug: %v", err)
	}
	if _, err := newLogger("chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

// --- daemon tests ---

// advance moves clk forward until ctx ends, letting timers fire.
func advance(ctx context.Context, clk clock.FakeClock) {
	for ctx.Err() == nil {
		clk.Add(board.IdlePeriod)
		time.Sleep(50 * time.Microsecond)
	}
}

func newTestDaemon(t *testing.T, heartbeat time.Duration) (*daemon, *mqtt.FakePublisher, *gpio.FakeWriter) {
	t.Helper()
	clk := clock.NewFake()
	clk.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t).Sugar()

	dev := avr.NewDevice()
	mirror := gpio.NewFakeWriter()
	pub := mqtt.NewFakePublisher()
	pub.Connected = true

	d := &daemon{
		board:     board.New(dev, mirror, clk, log),
		osc:       board.NewOscillator(dev, clk, log),
		pub:       pub,
		conn:      pub,
		tracker:   status.NewTracker(clk.Now(), status.Config{HeartbeatMs: heartbeat.Milliseconds()}, clk.Now),
		heartbeat: heartbeat,
		clk:       clk,
		log:       log,
	}
	return d, pub, mirror
}

// runUntil runs the daemon until cond holds, then delivers sig and waits
// for it to stop.
func runUntil(t *testing.T, d *daemon, sig os.Signal, cond func() bool) error {
	t.Helper()
	sigCh := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- d.run(context.Background(), sigCh) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go advance(ctx, d.clk.(clock.FakeClock))

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
	sigCh <- sig

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
		return nil
	}
}

func hasEvent(pub *mqtt.FakePublisher, name string) bool {
	for _, n := range pub.SystemEventNames() {
		if n == name {
			return true
		}
	}
	return false
}

func TestDaemonStartupTicksShutdown(t *testing.T) {
	d, pub, mirror := newTestDaemon(t, 0)

	err := runUntil(t, d, syscall.SIGTERM, func() bool { return pub.EventCount() >= 5 })
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	names := pub.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "SHUTDOWN" {
		t.Fatalf("system events: got %v, want [STARTUP SHUTDOWN]", names)
	}
	startup := pub.SystemEvents[0]
	if startup.Reason != "power-on" || !startup.Retained {
		t.Errorf("STARTUP: got reason %q retained %v", startup.Reason, startup.Retained)
	}
	shutdown := pub.SystemEvents[1]
	if shutdown.Reason != "SIGTERM" || !shutdown.Retained {
		t.Errorf("SHUTDOWN: got reason %q retained %v", shutdown.Reason, shutdown.Retained)
	}

	for i, ev := range pub.Events {
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d: got seq %d", i, ev.Seq)
		}
		if ev.Fired < ev.Seq {
			t.Errorf("event %d: fired %d below seq %d", i, ev.Fired, ev.Seq)
		}
	}
	if mirror.Count() == 0 {
		t.Error("expected the GPIO mirror to be driven")
	}

	snap := d.tracker.Snapshot()
	if snap.Boots != 1 || snap.Observed < 5 {
		t.Errorf("tracker: boots=%d observed=%d", snap.Boots, snap.Observed)
	}
	if snap.Watchdog.Mode != watchdog.InterruptMode.String() || snap.Watchdog.TimeoutMs != 512 {
		t.Errorf("tracker watchdog: %+v", snap.Watchdog)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTT connected in tracker")
	}
}

func TestDaemonShutdownSIGINT(t *testing.T) {
	d, pub, _ := newTestDaemon(t, 0)

	if err := runUntil(t, d, syscall.SIGINT, func() bool { return pub.EventCount() >= 1 }); err != nil {
		t.Fatalf("run: %v", err)
	}
	last := pub.SystemEvents[len(pub.SystemEvents)-1]
	if last.Event != "SHUTDOWN" || last.Reason != "SIGINT" {
		t.Errorf("last system event: got %s/%s, want SHUTDOWN/SIGINT", last.Event, last.Reason)
	}

	var payload status.StatusJSON
	if err := json.Unmarshal(last.RawPayload, &payload); err != nil {
		t.Fatalf("SHUTDOWN payload: %v", err)
	}
	if payload.Status.Event != "SHUTDOWN" || payload.Status.Reason != "SIGINT" {
		t.Errorf("payload: got %+v", payload.Status)
	}
}

func TestDaemonHeartbeat(t *testing.T) {
	d, pub, _ := newTestDaemon(t, 2*time.Second)

	err := runUntil(t, d, syscall.SIGTERM, func() bool { return hasEvent(pub, "HEARTBEAT") })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, se := range pub.SystemEvents {
		if se.Event == "HEARTBEAT" && se.Retained {
			t.Error("HEARTBEAT should not be retained")
		}
	}
}

func TestDaemonPublishErrorKeepsRunning(t *testing.T) {
	d, pub, _ := newTestDaemon(t, 0)
	pub.PublishError = errors.New("broker unavailable")

	err := runUntil(t, d, syscall.SIGTERM, func() bool { return d.tracker.Snapshot().Observed >= 3 })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if pub.EventCount() != 0 {
		t.Errorf("expected no recorded ticks, got %d", pub.EventCount())
	}
	if !hasEvent(pub, "SHUTDOWN") {
		t.Error("expected SHUTDOWN despite publish errors")
	}
}

func TestOnBootAfterResetPublishesReset(t *testing.T) {
	d, pub, _ := newTestDaemon(t, 0)

	d.onBoot(board.BootReport{
		Boot:  2,
		Cause: avr.Cause(avr.PORF | avr.WDRF),
		After: watchdog.Status{Mode: watchdog.InterruptMode, Timeout: 512 * time.Millisecond},
	})

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	se := pub.SystemEvents[0]
	if se.Event != "RESET" || se.Reason != "power-on+watchdog" {
		t.Errorf("got %s/%s, want RESET/power-on+watchdog", se.Event, se.Reason)
	}
	snap := d.tracker.Snapshot()
	if snap.Resets != 1 || snap.LastResetCause != "power-on+watchdog" {
		t.Errorf("tracker: resets=%d cause=%q", snap.Resets, snap.LastResetCause)
	}
}

func TestHeartbeatWithoutTicks(t *testing.T) {
	// The board never boots, so the watchdog never fires.
	d, pub, _ := newTestDaemon(t, 3*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.runHeartbeat(ctx) }()
	go advance(ctx, d.clk.(clock.FakeClock))

	deadline := time.Now().Add(5 * time.Second)
	for !hasEvent(pub, "HEARTBEAT") {
		if time.Now().After(deadline) {
			t.Fatal("no heartbeat without ticks")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("runHeartbeat: %v", err)
	}
	if pub.EventCount() != 0 {
		t.Errorf("expected no ticks, got %d", pub.EventCount())
	}
}

func TestHeartbeatDisabled(t *testing.T) {
	d, _, _ := newTestDaemon(t, 0)
	if err := d.runHeartbeat(context.Background()); err != nil {
		t.Errorf("runHeartbeat: %v", err)
	}
}
