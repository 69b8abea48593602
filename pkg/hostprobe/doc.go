// Package hostprobe measures Capacity once, at daemon startup. A failure
// here is fatal to the daemon (see cmd/stoplightd) — an admission loop
// that doesn't know the host's ceiling can't make correct decisions, so
// there is no degraded-mode fallback.
package hostprobe
