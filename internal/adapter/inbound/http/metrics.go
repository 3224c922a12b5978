package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rpcbridge/rpcbridge/internal/bridge"
)

// Metrics holds all Prometheus metrics for the bridge.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	PendingCalls     prometheus.GaugeFunc
	DroppedResponses prometheus.CounterFunc
}

// NewMetrics creates and registers all metrics with the given registry.
// The pending-call gauge and dropped-response counter read straight from
// the transport's registry.
func NewMetrics(reg prometheus.Registerer, transport *bridge.Transport) *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rpcbridge",
				Name:      "requests_total",
				Help:      "Total number of RPC calls processed",
			},
			[]string{"method", "status"}, // method=POST, status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rpcbridge",
				Name:      "request_duration_seconds",
				Help:      "Call duration in seconds",
				Buckets:   prometheus.DefBuckets, // 5ms to 10s
			},
			[]string{"method"},
		),
		PendingCalls: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "rpcbridge",
				Name:      "pending_calls",
				Help:      "Number of request-bearing calls awaiting responses",
			},
			func() float64 { return float64(transport.PendingCalls()) },
		),
		DroppedResponses: prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: "rpcbridge",
				Name:      "dropped_responses_total",
				Help:      "Total responses dropped because no pending batch claimed their identifier",
			},
			func() float64 { return float64(transport.DroppedResponses()) },
		),
	}
	reg.MustRegister(m.PendingCalls, m.DroppedResponses)
	return m
}
