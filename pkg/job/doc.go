/*
Package job is the in-memory entity the Manager schedules: a decoded
manifest, its normalized resource request, and — once admitted — a
running jobrunner.Runner and its output files.

A Job's state only ever moves forward: Pending -> Running -> one of
Completed, Failed, Terminated. Start moves it to Running and Terminate
to Terminated; Poll is the only place that moves a Running job to
Completed or Failed, and it is always non-blocking — a job that's still
running is simply left alone until the next tick.
*/
package job
