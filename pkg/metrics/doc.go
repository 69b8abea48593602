/*
Package metrics provides Prometheus metrics for Stoplight.

Four gauges track the Manager's utilization vector (stoplight_cpu_used_percent,
_ram_, _gpu_, _vram_used_percent), two gauges track queue depth
(stoplight_pending_jobs, stoplight_running_jobs), and a handful of counters
and histograms cover admission throughput and tick latency. Every metric is
registered at package init and served over HTTP by Handler, a thin
promhttp.Handler wrapper.

	log.Init(...)
	http.Handle("/metrics", metrics.Handler())

Manager.Update updates the gauges directly at the end of every tick; there
is no separate polling collector, since the Manager is already the
authoritative, single-threaded owner of the state being measured.

HealthHandler, ReadyHandler, and LivenessHandler back stoplightd's
/health, /ready, and /live routes. stoplightd registers three components —
scheduler, mailbox, cmdqueue — at startup and flips scheduler healthy
after its first successful tick; GetReadiness treats all three as
critical, so /ready reports not_ready until the scheduler has ticked at
least once.
*/
package metrics
