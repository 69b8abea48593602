/*
Package controlplane is the HTTP surface between the stoplight CLI and
the scheduler. It never imports pkg/manager: submissions cross the
process boundary via pkg/cmdqueue and status reads come from
pkg/mailbox, the same split the original daemon made between its Flask
process and its scheduler process.

Routes:

	POST /add_job   form field job_dir  -> {"status":"okay"} or {"status":"error","details":"..."}
	GET  /status                        -> {"status":"okay","running":[...],"pending":[...]}
	GET  /metrics                       -> Prometheus exposition format
	GET  /health, /ready, /live          -> pkg/metrics health-check envelopes

/add_job decodes and validates job.yaml inline, before touching the queue:
a malformed manifest is reported back to the caller as {"status":"error"}
in the same request, and nothing is appended to the command queue. Only a
job that decodes cleanly crosses the process boundary.
*/
package controlplane
