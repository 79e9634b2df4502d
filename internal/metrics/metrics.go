// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledger"

type Collectors struct {
	// Transfers counts finished transfers by outcome kind.
	Transfers        *prometheus.CounterVec
	TransferDuration prometheus.Histogram
	// TransferRetries counts store attempts beyond the first.
	TransferRetries prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		Transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfers processed, partitioned by outcome.",
		}, []string{"outcome"}),
		TransferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Time spent processing a transfer, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		TransferRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_retries_total",
			Help:      "Store attempts repeated after a conflict or unavailable store.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		}, []string{"method", "route", "status"}),
	}
}
