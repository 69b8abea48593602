package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Utilization gauges, one per tracked resource dimension.
	CPUUsedPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stoplight_cpu_used_percent",
			Help: "Current CPU utilization as a percent of host capacity",
		},
	)

	RAMUsedPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stoplight_ram_used_percent",
			Help: "Current RAM utilization as a percent of host capacity",
		},
	)

	GPUUsedPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stoplight_gpu_used_percent",
			Help: "Current GPU utilization as a percent of host capacity",
		},
	)

	VRAMUsedPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stoplight_vram_used_percent",
			Help: "Current VRAM utilization as a percent of host capacity",
		},
	)

	PendingJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stoplight_pending_jobs",
			Help: "Number of jobs currently in the pending queue",
		},
	)

	RunningJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stoplight_running_jobs",
			Help: "Number of jobs currently running",
		},
	)

	JobsQueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stoplight_jobs_queued_total",
			Help: "Total number of jobs successfully added to the pending queue",
		},
	)

	JobsAdmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stoplight_jobs_admitted_total",
			Help: "Total number of jobs admitted to run",
		},
	)

	JobsReapedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stoplight_jobs_reaped_total",
			Help: "Total number of jobs reaped by terminal state",
		},
		[]string{"state"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stoplight_tick_duration_seconds",
			Help:    "Time taken by one Manager.Update tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	AddJobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stoplight_add_job_duration_seconds",
			Help:    "Time taken to decode and enqueue a submitted job",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stoplight_http_requests_total",
			Help: "Total number of control-plane HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(CPUUsedPercent)
	prometheus.MustRegister(RAMUsedPercent)
	prometheus.MustRegister(GPUUsedPercent)
	prometheus.MustRegister(VRAMUsedPercent)
	prometheus.MustRegister(PendingJobs)
	prometheus.MustRegister(RunningJobs)
	prometheus.MustRegister(JobsQueuedTotal)
	prometheus.MustRegister(JobsAdmittedTotal)
	prometheus.MustRegister(JobsReapedTotal)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(AddJobDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
