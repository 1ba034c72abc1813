package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "allocator"

	// EngineLabel names the allocation engine that produced an observation.
	EngineLabel = "engine"
	// StatusLabel is the solver status of a solve.
	StatusLabel = "status"
)

// Recorder receives observations from the allocation engines.
type Recorder interface {
	// ObserveSolve records one solver invocation and the size of its model.
	ObserveSolve(engine, status string, duration time.Duration, variables, constraints int)
	// ObserveCompletion records the completion percentage of one project.
	ObserveCompletion(engine string, percent float64)
	// SetTotalSlack records the total capacity violation of the last feasibility solve.
	SetTotalSlack(slack float64)
}

// NopRecorder discards every observation.
type NopRecorder struct{}

func (NopRecorder) ObserveSolve(string, string, time.Duration, int, int) {}

func (NopRecorder) ObserveCompletion(string, float64) {}

func (NopRecorder) SetTotalSlack(float64) {}

// PrometheusRecorder exports engine observations as Prometheus metrics.
type PrometheusRecorder struct {
	solveDuration *prometheus.HistogramVec
	solveTotal    *prometheus.CounterVec
	variables     *prometheus.GaugeVec
	constraints   *prometheus.GaugeVec
	completion    *prometheus.HistogramVec
	slack         prometheus.Gauge
}

// NewPrometheusRecorder creates the allocator collectors and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		return nil, fmt.Errorf("registerer cannot be nil")
	}
	r := &PrometheusRecorder{
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Time spent in the solving engine.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{EngineLabel}),
		solveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solve_total",
			Help:      "Number of solves by engine and solver status.",
		}, []string{EngineLabel, StatusLabel}),
		variables: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_variables",
			Help:      "Number of variables in the last model built by the engine.",
		}, []string{EngineLabel}),
		constraints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_constraints",
			Help:      "Number of constraints in the last model built by the engine.",
		}, []string{EngineLabel}),
		completion: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "project_completion_percent",
			Help:      "Distribution of project completion percentages.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}, []string{EngineLabel}),
		slack: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_slack_total",
			Help:      "Total capacity violation of the last feasibility solve.",
		}),
	}
	for _, c := range []prometheus.Collector{
		r.solveDuration, r.solveTotal, r.variables, r.constraints, r.completion, r.slack,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register allocator metrics: %w", err)
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveSolve(engine, status string, duration time.Duration, variables, constraints int) {
	r.solveDuration.WithLabelValues(engine).Observe(duration.Seconds())
	r.solveTotal.WithLabelValues(engine, status).Inc()
	r.variables.WithLabelValues(engine).Set(float64(variables))
	r.constraints.WithLabelValues(engine).Set(float64(constraints))
}

func (r *PrometheusRecorder) ObserveCompletion(engine string, percent float64) {
	r.completion.WithLabelValues(engine).Observe(percent)
}

func (r *PrometheusRecorder) SetTotalSlack(slack float64) {
	r.slack.Set(slack)
}

// OrNop returns r, or a NopRecorder when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return NopRecorder{}
	}
	return r
}
