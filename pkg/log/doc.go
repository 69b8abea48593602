/*
Package log provides structured logging for Stoplight using zerolog.

The log package wraps zerolog to give every component a JSON-structured
logger, a configurable level, and a handful of helpers for the common
patterns the daemon and control plane need. All logs include timestamps.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│  Global Logger (zerolog.Logger, set by log.Init)          │
	│        │                                                  │
	│  Configuration: Level, JSONOutput, Output (io.Writer)     │
	│        │                                                  │
	│  Component loggers: WithComponent("manager")              │
	│                      WithJobID("3fa9c1")                  │
	│        │                                                  │
	│  JSON:    {"level":"info","component":"manager",...}      │
	│  Console: 10:30AM INF admitted job component=manager      │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	mgrLog := log.WithComponent("manager")
	mgrLog.Info().Str("job_id", id).Msg("admitted job")

	jobLog := log.WithJobID(id)
	jobLog.Warn().Msg("job exited non-zero")

cmd/stoplightd's `run` command passes an io.MultiWriter(os.Stdout, file) as
Config.Output so every line reaches both the terminal and stoplightd.log —
Config needed no change to support this, since Output is already a plain
io.Writer.

# Levels

Debug is for per-tick admission tracing; Info is the production default;
Warn covers recoverable per-job problems (a failed job, an unknown
manifest key); Error is reserved for failures the operator should
investigate; Fatal is used only at startup, when the host probe fails
(a mailbox or queue file that can't be opened is returned as an error
from `stoplightd run` instead).
*/
package log
