// Command wdt-ticker runs the watchdog ticker against a simulated ATmega328P,
// mirrors the output line to GPIO and publishes ticks to MQTT.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmhodges/clock"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sweeney/wdt-ticker/internal/avr"
	"github.com/sweeney/wdt-ticker/internal/board"
	"github.com/sweeney/wdt-ticker/internal/gpio"
	"github.com/sweeney/wdt-ticker/internal/metric"
	"github.com/sweeney/wdt-ticker/internal/mqtt"
	"github.com/sweeney/wdt-ticker/internal/status"
	"github.com/sweeney/wdt-ticker/internal/web"
)

type config struct {
	HTTPAddr    string
	Broker      string
	Heartbeat   time.Duration
	GPIOChip    string
	GPIOLine    int
	BootCause   string
	WSBroker    string
	LogLevel    string
	PrintConfig bool
}

func parseFlags(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("wdt-ticker", flag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "http", ":8080", "HTTP status address (empty to disable)")
	fs.StringVar(&cfg.Broker, "broker", "", "MQTT broker address (empty to disable)")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	fs.StringVar(&cfg.GPIOChip, "gpio-chip", gpio.DefaultChip, "GPIO chip for the mirrored output line")
	fs.IntVar(&cfg.GPIOLine, "gpio-line", gpio.DefaultLine, "GPIO line offset to mirror PB1 onto (-1 to disable)")
	fs.StringVar(&cfg.BootCause, "boot-cause", "power-on", "Reset cause latched at first boot (power-on, external, brown-out, watchdog)")
	fs.StringVar(&cfg.WSBroker, "ws-broker", "=broker", `MQTT websocket URL for the live page ("=broker" derives from --broker, "off" disables)`)
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.PrintConfig, "print-config", false, "Print the effective configuration and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if _, ok := avr.ParseCause(cfg.BootCause); !ok {
		return cfg, fmt.Errorf("unknown boot cause %q", cfg.BootCause)
	}
	if cfg.Heartbeat < 0 {
		return cfg, fmt.Errorf("heartbeat must not be negative")
	}
	ws, err := resolveWSBroker(cfg.WSBroker, cfg.Broker)
	if err != nil {
		return cfg, err
	}
	cfg.WSBroker = ws
	return cfg, nil
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or no
// broker at all disables the live page.
func resolveWSBroker(ws, broker string) (string, error) {
	if ws == "off" {
		return "", nil
	}
	if ws != "=broker" {
		return ws, nil
	}
	if broker == "" {
		return "", nil
	}
	u, err := url.Parse(broker)
	if err != nil {
		return "", fmt.Errorf("ws-broker: cannot parse --broker %q: %w", broker, err)
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String(), nil
}

func (c config) status() status.Config {
	return status.Config{
		HeartbeatMs: c.Heartbeat.Milliseconds(),
		Broker:      c.Broker,
		HTTPAddr:    c.HTTPAddr,
		GPIOChip:    c.GPIOChip,
		GPIOLine:    c.GPIOLine,
		BootCause:   c.BootCause,
		WSBroker:    c.WSBroker,
	}
}

func printConfig(w io.Writer, c config) error {
	data, err := json.MarshalIndent(c.status(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), lvl)
	return zap.New(core).Sugar(), nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "wdt-ticker: %v\n", err)
		os.Exit(2)
	}
	if cfg.PrintConfig {
		if err := printConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "wdt-ticker: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wdt-ticker: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatalw("fatal", "error", err)
	}
}

func run(cfg config, log *zap.SugaredLogger) error {
	clk := clock.New()

	// Initialize GPIO mirror
	var mirror gpio.Writer
	if cfg.GPIOLine >= 0 {
		w, err := gpio.NewRealWriter(cfg.GPIOChip, cfg.GPIOLine)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer w.Close()
		mirror = w
	}

	// Initialize MQTT
	var (
		publisher mqtt.Publisher = mqtt.NopPublisher{}
		conn      mqtt.ConnectionStatus
	)
	if cfg.Broker != "" {
		p := mqtt.NewRealPublisher(cfg.Broker, log.Named("mqtt"))
		defer p.Close()
		publisher, conn = p, p
	}

	tracker := status.NewTracker(clk.Now(), cfg.status(), clk.Now)

	cause, _ := avr.ParseCause(cfg.BootCause)
	dev := avr.NewDevice()
	dev.PowerOn(cause)

	d := &daemon{
		board:     board.New(dev, mirror, clk, log.Named("board")),
		osc:       board.NewOscillator(dev, clk, log.Named("oscillator")),
		pub:       publisher,
		conn:      conn,
		tracker:   tracker,
		heartbeat: cfg.Heartbeat,
		clk:       clk,
		log:       log,
	}
	if cfg.HTTPAddr != "" {
		d.srv = web.New(cfg.HTTPAddr, tracker, metric.New(tracker).Handler())
		log.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	log.Infow("started",
		"broker", cfg.Broker,
		"heartbeat", cfg.Heartbeat,
		"gpio_line", cfg.GPIOLine,
		"boot_cause", cfg.BootCause,
		"ws_broker", cfg.WSBroker,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return d.run(context.Background(), sigCh)
}
