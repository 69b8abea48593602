// Package types defines the shared data structures used throughout
// Stoplight: the resource vectors the Manager reasons about and the
// status record it publishes to the control plane.
package types

// JobState is the lifecycle state of a Job, owned exclusively by the
// Manager. A Job never returns from a terminal state.
type JobState string

const (
	JobPending    JobState = "pending"
	JobRunning    JobState = "running"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobTerminated JobState = "terminated"
	JobDiscarded  JobState = "discarded"
)

// Terminal reports whether a state can never transition further.
func (s JobState) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobTerminated, JobDiscarded:
		return true
	default:
		return false
	}
}

// Capacity is the host's resource ceiling, measured once at startup by
// pkg/hostprobe and never mutated afterward.
type Capacity struct {
	CPUCores int
	TotalRAM int64
	// TotalVRAM is the single tracked GPU's memory, in bytes. GPUCount is
	// always 1: Stoplight does not reason about multi-GPU topology.
	TotalVRAM int64
	GPUCount  int
}

// ResourceVector is a four-dimensional percentage vector. It is used both
// for a job's normalized request and for the Manager's running utilization
// total; the two share a representation because they're added and
// subtracted from one another on every tick.
type ResourceVector struct {
	CPU  float64
	RAM  float64
	GPU  float64
	VRAM float64
}

// Normalize converts a raw per-job resource ask into a percent-of-capacity
// vector. CPU is a percent of one core, divided by the core count; GPU is
// already a percent of the single GPU and is used as is; RAM and VRAM are
// raw byte counts divided by host totals and scaled to percent.
func Normalize(cpu int, ram int64, gpu int, vram int64, capacity Capacity) ResourceVector {
	v := ResourceVector{
		CPU: float64(cpu) / float64(capacity.CPUCores),
		GPU: float64(gpu),
	}
	if capacity.TotalRAM > 0 {
		v.RAM = float64(ram) / float64(capacity.TotalRAM) * 100
	}
	if capacity.TotalVRAM > 0 {
		v.VRAM = float64(vram) / float64(capacity.TotalVRAM) * 100
	}
	return v
}

// Add returns the component-wise sum of v and other.
func (v ResourceVector) Add(other ResourceVector) ResourceVector {
	return ResourceVector{
		CPU:  v.CPU + other.CPU,
		RAM:  v.RAM + other.RAM,
		GPU:  v.GPU + other.GPU,
		VRAM: v.VRAM + other.VRAM,
	}
}

// Sub returns the component-wise difference v - other.
func (v ResourceVector) Sub(other ResourceVector) ResourceVector {
	return ResourceVector{
		CPU:  v.CPU - other.CPU,
		RAM:  v.RAM - other.RAM,
		GPU:  v.GPU - other.GPU,
		VRAM: v.VRAM - other.VRAM,
	}
}

// Headroom returns 100 minus each component of v — how much of each
// dimension remains before the host is saturated.
func (v ResourceVector) Headroom() ResourceVector {
	return ResourceVector{
		CPU:  100 - v.CPU,
		RAM:  100 - v.RAM,
		GPU:  100 - v.GPU,
		VRAM: 100 - v.VRAM,
	}
}

// FitsUnder reports whether every component of v is at most the
// corresponding component of headroom. A request is admissible exactly
// when it fits under the Manager's current headroom.
func (v ResourceVector) FitsUnder(headroom ResourceVector) bool {
	return v.CPU <= headroom.CPU && v.RAM <= headroom.RAM &&
		v.GPU <= headroom.GPU && v.VRAM <= headroom.VRAM
}

// StatusEntry is the minimal identity the control plane reports for a job:
// enough to display, nothing more.
type StatusEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StatusSnapshot is what the Manager publishes into the mailbox after
// every tick and what the control plane serves from GET /status.
type StatusSnapshot struct {
	Running []StatusEntry `json:"running"`
	Pending []StatusEntry `json:"pending"`
}
