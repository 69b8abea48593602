// Package cmdqueue carries commands from the control-plane process to
// the scheduler process. AddJob is the only Kind produced today; CancelJob
// and Shutdown exist as reserved variants for a control-plane operation
// that doesn't exist yet.
package cmdqueue
