// Package telemetry attaches Prometheus metrics and OpenTelemetry tracing
// to the scheduler and retry executor through their existing
// collaborator seams (scheduler.NotifyFunc, retry.Observer). Neither
// package imports telemetry; telemetry imports them.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/johnhkchen/dfcoder/internal/retry"
	"github.com/johnhkchen/dfcoder/internal/scheduler"
)

// Collector registers and updates the Prometheus gauges/counters that
// mirror scheduler.Metrics.
type Collector struct {
	queueLength    prometheus.Gauge
	utilization    *prometheus.GaugeVec
	bottleneck     *prometheus.GaugeVec
	tasksProcessed prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	tasksRetried   prometheus.Counter
	successRate    prometheus.Gauge
	throughput     prometheus.Gauge
}

// NewCollector creates and registers the workshop metric set on reg. Pass
// prometheus.NewRegistry() for test isolation, or prometheus.DefaultRegisterer
// in production.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "workshopd", Name: "queue_length", Help: "Tasks waiting to be assigned.",
		}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "workshopd", Name: "role_utilization", Help: "Fraction of capacity in use per role.",
		}, []string{"role"}),
		bottleneck: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "workshopd", Name: "bottleneck_role", Help: "1 for the role currently limiting throughput, 0 otherwise.",
		}, []string{"role"}),
		tasksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workshopd", Name: "tasks_processed_total", Help: "Tasks that finished (completed or failed).",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workshopd", Name: "tasks_completed_total", Help: "Tasks completed successfully.",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workshopd", Name: "tasks_failed_total", Help: "Tasks that failed.",
		}),
		tasksRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workshopd", Name: "tasks_retried_total", Help: "Retry attempts across all tasks.",
		}),
		successRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "workshopd", Name: "success_rate", Help: "Completed / processed, workshop-wide.",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "workshopd", Name: "throughput", Help: "Tasks processed per hour since the scheduler started.",
		}),
	}
	reg.MustRegister(c.queueLength, c.utilization, c.bottleneck, c.tasksProcessed,
		c.tasksCompleted, c.tasksFailed, c.tasksRetried, c.successRate, c.throughput)
	return c
}

// Observe snapshots a scheduler status into the registered gauges. Call it
// from a periodic ticker, not from a scheduler.NotifyFunc: the scheduler runs
// its NotifyFunc while holding its lock, so calling Status() there blocks
// forever. It is safe to call with the same snapshot repeatedly since gauges
// simply overwrite.
func (c *Collector) Observe(snap scheduler.StatusSnapshot) {
	c.queueLength.Set(float64(snap.Metrics.QueueLength))
	c.successRate.Set(snap.Metrics.SuccessRate)
	c.throughput.Set(snap.Metrics.Throughput)

	c.utilization.Reset()
	for role, cap := range snap.Capacity {
		active := snap.Active[role]
		if cap > 0 {
			c.utilization.WithLabelValues(string(role)).Set(float64(active) / float64(cap))
		}
	}

	c.bottleneck.Reset()
	if snap.Metrics.BottleneckRole != "" {
		c.bottleneck.WithLabelValues(string(snap.Metrics.BottleneckRole)).Set(1)
	}
}

// NotifyFunc adapts Collector into a scheduler.NotifyFunc that bumps the
// processed/completed/failed counters off scheduler mutation events. It
// never reads scheduler state directly; the counters are derived purely
// from which EventKind fired. The tasks_retried_total counter is registered
// but nothing in this package increments it.
func (c *Collector) NotifyFunc() scheduler.NotifyFunc {
	return func(kind scheduler.EventKind, _ any) {
		switch kind {
		case scheduler.EventTaskCompleted:
			c.tasksProcessed.Inc()
			c.tasksCompleted.Inc()
		case scheduler.EventTaskFailed:
			c.tasksProcessed.Inc()
			c.tasksFailed.Inc()
		}
	}
}

var tracer = otel.Tracer("github.com/johnhkchen/dfcoder/internal/telemetry")

// TracingObserver implements retry.Observer, recording one span per retry
// attempt, adaptation, and terminal outcome. It holds no per-call state, so
// a single instance installed via Scheduler.SetRetryPolicy is safe across
// concurrent execute_with_retry calls.
type TracingObserver struct{}

var _ retry.Observer = (*TracingObserver)(nil)

// NewTracingObserver creates the shared observer the daemon installs on the
// scheduler's retry executor.
func NewTracingObserver() *TracingObserver {
	return &TracingObserver{}
}

// OnAttempt implements retry.Observer by recording a span per attempt.
func (o *TracingObserver) OnAttempt(attempt int, class retry.ErrorClass, success bool) {
	_, span := tracer.Start(context.Background(), "retry.attempt", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.String("error_class", string(class)),
		attribute.Bool("success", success),
	))
	span.End()
}

// OnAdapt implements retry.Observer by recording the pattern that triggered
// a backoff adaptation.
func (o *TracingObserver) OnAdapt(pattern []retry.ErrorClass) {
	classes := make([]string, len(pattern))
	for i, c := range pattern {
		classes[i] = string(c)
	}
	_, span := tracer.Start(context.Background(), "retry.adapt", trace.WithAttributes(
		attribute.StringSlice("pattern", classes),
	))
	span.End()
}

// OnOutcome implements retry.Observer by recording the final result.
func (o *TracingObserver) OnOutcome(result retry.AttemptResult, err error) {
	_, span := tracer.Start(context.Background(), "retry.outcome", trace.WithAttributes(
		attribute.Int("attempts", result.AttemptNumber),
		attribute.Bool("succeeded", err == nil),
	))
	span.End()
}
