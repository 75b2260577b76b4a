// Package metrics holds the Prometheus collectors of the listing watcher:
//
//	listing_orders_total{side,result}  orders sent to the exchange (ok|failed)
//	listing_price_polls_total{result}  ticker lookups (ok|zero|error)
//	listing_timers_fired_total{phase}  lifecycle timers dispatched
//	listing_timers_pending             timers currently registered
//	listing_samples_total{result}      hourly history samples (ok|failed)
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultZero   = "zero"
	ResultError  = "error"
)

type Metrics struct {
	Orders        *prometheus.CounterVec
	PricePolls    *prometheus.CounterVec
	TimersFired   *prometheus.CounterVec
	TimersPending prometheus.Gauge
	Samples       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg gets a private registry,
// which keeps tests independent of each other.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_orders_total",
				Help: "Orders sent to the exchange",
			},
			[]string{"side", "result"},
		),
		PricePolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_price_polls_total",
				Help: "Ticker price lookups",
			},
			[]string{"result"},
		),
		TimersFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_timers_fired_total",
				Help: "Lifecycle timers dispatched",
			},
			[]string{"phase"},
		),
		TimersPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "listing_timers_pending",
				Help: "Lifecycle timers currently registered",
			},
		),
		Samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_samples_total",
				Help: "Hourly history samples",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.Orders, m.PricePolls, m.TimersFired, m.TimersPending, m.Samples)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
