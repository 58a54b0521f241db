// Package metric exports the ticker's counters in Prometheus format.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/wdt-ticker/internal/logic"
	"github.com/sweeney/wdt-ticker/internal/status"
)

const namespace = "wdt_ticker"

// Source supplies snapshots to the collectors.
type Source interface {
	Snapshot() status.Snapshot
}

// Registry owns a private Prometheus registry fed from a Source.
type Registry struct {
	reg *prometheus.Registry
}

// New registers the ticker collectors against src.
func New(src Source) *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interrupts_total",
			Help:      "Watchdog interrupt handler runs since the last boot.",
		}, func() float64 { return float64(src.Snapshot().Fired) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_observed_total",
			Help:      "Ticks observed by the sleep loop since the last boot.",
		}, func() float64 { return float64(src.Snapshot().Observed) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ticks_coalesced",
			Help:      "Handler runs that were folded into an earlier tick.",
		}, func() float64 { return float64(src.Snapshot().Coalesced()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boots_total",
			Help:      "Boots of the simulated device, including the first.",
		}, func() float64 { return float64(src.Snapshot().Boots) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Device resets observed by the daemon.",
		}, func() float64 { return float64(src.Snapshot().Resets) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_level",
			Help:      "Current output line level (1 high, 0 low).",
		}, func() float64 {
			if src.Snapshot().Level == logic.LevelHigh {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watchdog_timeout_seconds",
			Help:      "Configured watchdog timeout.",
		}, func() float64 { return float64(src.Snapshot().Watchdog.TimeoutMs) / 1000 }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "Whether the MQTT publisher is connected.",
		}, func() float64 {
			if src.Snapshot().MQTTConnected {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the daemon started.",
		}, func() float64 { return src.Snapshot().Uptime().Seconds() }),
	)
	return &Registry{reg: reg}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
