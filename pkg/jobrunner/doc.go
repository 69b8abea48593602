// Package jobrunner is the only place that shells out to a container
// runtime binary. Everything else in Stoplight reasons about a Runner
// purely through IsFinished/ExitFailed/DrainOutput/Terminate, never the
// underlying process.
package jobrunner
