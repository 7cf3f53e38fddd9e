package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SagaMetrics counts order outcomes and times individual saga steps.
type SagaMetrics struct {
	Orders   *prometheus.CounterVec
	StepMS   *prometheus.HistogramVec
	Released prometheus.Counter
}

func NewSagaMetrics(service string) *SagaMetrics {
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "orders_total",
		Help:      "Orders by terminal outcome.",
	}, []string{"outcome"})
	stepMS := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "saga_step_duration_ms",
		Help:      "Saga step latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"step"})
	released := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "compensating_releases_total",
		Help:      "Reservations released as saga compensation.",
	})

	prometheus.MustRegister(orders, stepMS, released)
	return &SagaMetrics{Orders: orders, StepMS: stepMS, Released: released}
}

// ObserveStep records one step's wall-clock duration.
func (m *SagaMetrics) ObserveStep(step string, start time.Time) {
	m.StepMS.WithLabelValues(step).Observe(float64(time.Since(start).Milliseconds()))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
