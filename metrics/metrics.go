package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poller
	PollerCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "poller",
		Name:      "cycles_total",
		Help:      "Total poll cycles by outcome (advanced, idle, failed)",
	}, []string{"result"})

	PollerCursorHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokenwatch",
		Subsystem: "poller",
		Name:      "cursor_height",
		Help:      "Last fully handled block",
	})

	PollerCycleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tokenwatch",
		Subsystem: "poller",
		Name:      "cycle_duration_seconds",
		Help:      "Poll cycle duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	PollerTransfers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "poller",
		Name:      "transfers_total",
		Help:      "Total transfer events decoded",
	})

	// Notify
	NotifySent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Total notifications delivered",
	}, []string{"direction"})

	NotifyFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "notify",
		Name:      "failed_total",
		Help:      "Total notifications that could not be delivered",
	}, []string{"direction"})

	// RPC
	RPCErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "rpc",
		Name:      "errors_total",
		Help:      "Total node RPC failures by method",
	}, []string{"method"})

	// Registry
	RegistryWatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokenwatch",
		Subsystem: "registry",
		Name:      "watches",
		Help:      "Number of subscribers with a watched address",
	})
)
