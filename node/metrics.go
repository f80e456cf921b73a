package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "technostore"

// Metrics groups the node's prometheus collectors. Each node owns its own
// registry.
type Metrics struct {
	registry *prometheus.Registry

	txs         *prometheus.CounterVec
	txDuration  prometheus.Histogram
	height      prometheus.Gauge
	inventory   *prometheus.GaugeVec
	purchases   prometheus.Counter
	refunds     prometheus.Counter
	failures    *prometheus.CounterVec
	subscribers prometheus.Gauge
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Submitted transactions by method and outcome (success, reverted, rejected).",
		}, []string{"method", "status"}),
		txDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Time to execute and persist a transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "block_height",
			Help:      "Current ledger height.",
		}),
		inventory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "product_quantity",
			Help:      "Units in stock per product.",
		}, []string{"product"}),
		purchases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Committed purchases.",
		}),
		refunds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Committed refunds.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_failures_total",
			Help:      "Failed purchase and refund calls by error code.",
		}, []string{"call", "code"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Open event subscriptions.",
		}),
	}

	m.registry.MustRegister(
		m.txs,
		m.txDuration,
		m.height,
		m.inventory,
		m.purchases,
		m.refunds,
		m.failures,
		m.subscribers,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the collectors are registered in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
