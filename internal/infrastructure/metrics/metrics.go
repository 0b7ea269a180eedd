package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/tock-booker/internal/application/booking"
	"github.com/example/tock-booker/internal/domain/reservation"
)

const namespace = "tockbook"

// Metrics is the booking Observer backed by a private Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	stepAttempts *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	slotsChecked prometheus.Histogram
	daysChecked  prometheus.Counter
}

var _ booking.Observer = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Booking runs by final state and failure kind.",
		}, []string{"state", "kind"}),
		stepAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_attempts_total",
			Help:      "Transition attempts by target state and result.",
		}, []string{"state", "result"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent in one transition attempt.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"state"}),
		slotsChecked: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "day_slots",
			Help:      "Time slots listed per inspected day.",
			Buckets:   prometheus.LinearBuckets(0, 4, 8),
		}),
		daysChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_inspected_total",
			Help:      "Calendar days opened while searching for a slot.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs, m.stepAttempts, m.stepDuration, m.slotsChecked, m.daysChecked,
	)
	return m
}

func (m *Metrics) StepAttempted(state booking.State, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = string(reservation.KindOf(err))
	}
	m.stepAttempts.WithLabelValues(string(state), result).Inc()
	m.stepDuration.WithLabelValues(string(state)).Observe(d.Seconds())
}

func (m *Metrics) DayInspected(slots int) {
	m.daysChecked.Inc()
	m.slotsChecked.Observe(float64(slots))
}

func (m *Metrics) RunFinished(state booking.State, kind reservation.Kind) {
	m.runs.WithLabelValues(string(state), string(kind)).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
