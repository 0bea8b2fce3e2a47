package landnumber

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("easymap-backend/services/landnumber")

const (
	failureInvalidQuery = "invalid_query"
	failureUpstream     = "upstream"
	failureInternal     = "internal"
)

type metrics struct {
	requestsTotal     prometheus.Counter
	requestDurationMs prometheus.Histogram
	emptyResultsTotal prometheus.Counter
	failuresTotal     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) metrics {
	m := metrics{
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "landnumber_requests_total",
			Help: "Total number of /landnumber requests",
		}),
		requestDurationMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "landnumber_request_duration_ms",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
		}),
		emptyResultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "landnumber_empty_results_total",
			Help: "Total number of responses without a land number",
		}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landnumber_failures_total",
			Help: "Total failed requests by kind",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.requestsTotal,
		m.requestDurationMs,
		m.emptyResultsTotal,
		m.failuresTotal,
	)
	return m
}
