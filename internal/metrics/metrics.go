// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nr01desk"

// Registry is the registry served by Handler. Collectors defined here
// register themselves on it.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route", "status_code"})

	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status_code"})

	ActiveRequests = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_requests",
		Help:      "Number of HTTP requests in flight.",
	})

	DBQueryDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Duration of database queries in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
	}, []string{"operation"})

	Errors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Total number of errors by source and severity.",
	}, []string{"type", "severity"})

	InvitesCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invites_created_total",
		Help:      "Questionnaire invites created.",
	})

	ResponsesSubmitted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "responses_submitted_total",
		Help:      "Questionnaires submitted by respondents.",
	})

	EmailsSent = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Outgoing emails by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordError counts one error. severity is "error" or "warning".
func RecordError(kind, severity string) {
	Errors.WithLabelValues(kind, severity).Inc()
}

// RegisterPool exposes connection pool gauges for pool. Registering a second
// pool is a no-op.
func RegisterPool(pool *pgxpool.Pool) error {
	gauge := func(name, help string, value func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(pool.Stat()) })
	}

	for _, c := range []prometheus.Collector{
		gauge("total_conns", "Connections currently open.", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("acquired_conns", "Connections checked out of the pool.", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("idle_conns", "Idle connections.", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
	} {
		if err := Registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}
