// Package manager is Stoplight's scheduling core: the pending queue, the
// running set, the utilization vector, and the tick algorithm that
// admits jobs under a four-dimensional fit constraint.
//
// Manager owns no network or process boundary of its own — it is driven
// by cmd/stoplightd's 5-second ticker loop.
package manager

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/stoplight/pkg/job"
	"github.com/cuemby/stoplight/pkg/jobrunner"
	"github.com/cuemby/stoplight/pkg/log"
	"github.com/cuemby/stoplight/pkg/metrics"
	"github.com/cuemby/stoplight/pkg/types"
)

// Manager holds the pending and running job sets and decides admissions
// on every tick. It is safe for concurrent use: AddJob may be called from
// an HTTP handler goroutine while Update runs on the scheduler's own
// goroutine (when both live in the same binary), or — in the two-process
// topology — AddJob is called only via cmdqueue.Queue.Drain from within
// the same goroutine that calls Update.
type Manager struct {
	mu sync.Mutex

	capacity types.Capacity
	runtime  jobrunner.Runtime

	pending     *list.List // of *job.Job, FIFO order, oldest at Front
	pendingElem map[*job.Job]*list.Element
	running     map[*job.Job]struct{}
	candidate   *list.List             // of *job.Job, admission-candidate fast path
	started     map[*job.Job]struct{} // already-started marker set

	used types.ResourceVector
}

// New constructs a Manager for the given host Capacity.
func New(capacity types.Capacity, runtime jobrunner.Runtime) *Manager {
	return &Manager{
		capacity:    capacity,
		runtime:     runtime,
		pending:     list.New(),
		pendingElem: make(map[*job.Job]*list.Element),
		running:     make(map[*job.Job]struct{}),
		candidate:   list.New(),
		started:     make(map[*job.Job]struct{}),
	}
}

// AddJob decodes jobDir and appends it to both the pending queue and the
// admission-candidate list. O(1), never blocks, never attempts admission
// itself — that happens on the next Update.
func (m *Manager) AddJob(jobDir string) error {
	j, warnings, err := job.New(jobDir, m.capacity)
	if err != nil {
		log.WithComponent("manager").Error().Err(err).Str("job_dir", jobDir).Msg("failed to add job")
		return fmt.Errorf("adding job from %s: %w", jobDir, err)
	}
	for _, w := range warnings {
		log.WithComponent("manager").Warn().Str("job_dir", jobDir).Msg(w)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pendingElem[j] = m.pending.PushBack(j)
	m.candidate.PushBack(j)

	log.WithComponent("manager").Info().Str("job_id", j.ID).Str("name", j.Record.Name).Msg("queued job")
	metrics.JobsQueuedTotal.Inc()

	return nil
}

// Update runs one scheduling tick: reap finished jobs, choose the
// candidate source, admit what fits, flush the candidate list, and drain
// output from every running job. It never blocks.
func (m *Manager) Update() {
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	anyFinished := m.reapLocked()
	m.admitLocked(anyFinished)
	m.candidate.Init() // flush unconditionally, every tick
	m.drainRunningLocked()
	m.publishMetricsLocked()
}

// reapLocked walks the running set, moves finished jobs to a terminal
// state, releases their output handles, and subtracts their normalized
// vector from utilization. It reports whether anything finished this
// tick — the signal that decides the candidate source for admission.
func (m *Manager) reapLocked() bool {
	finished := false

	for j := range m.running {
		if !j.State.Terminal() {
			j.Poll()
		}
		if j.State.Terminal() {
			delete(m.running, j)
			m.used = m.used.Sub(j.Request)
			finished = true

			log.WithComponent("manager").Info().Str("job_id", j.ID).Str("state", string(j.State)).Msg("reaped job")
			metrics.JobsReapedTotal.WithLabelValues(string(j.State)).Inc()
		}
	}

	return finished
}

// admitLocked walks either the full pending queue (a job finished this
// tick, so previously rejected jobs may now fit) or just the
// admission-candidate list (nothing finished, so only newly submitted
// jobs can possibly be runnable) — the key optimization that keeps
// steady-state admission O(new submissions) instead of O(pending).
func (m *Manager) admitLocked(anyFinished bool) {
	if anyFinished {
		m.walkPendingLocked()
	} else {
		m.walkCandidateLocked()
	}
}

// walkPendingLocked implements strict FIFO admission over the full
// pending queue: the walk stops the instant the oldest not-yet-admitted
// job doesn't fit, even if a smaller job further back would, so that a
// stream of small jobs cannot starve a large one.
func (m *Manager) walkPendingLocked() {
	headroom := m.used.Headroom()

	for e := m.pending.Front(); e != nil; {
		next := e.Next()
		j := e.Value.(*job.Job)

		if _, skip := m.started[j]; skip {
			// Defensive: admitCandidate already removes j from pending
			// immediately, so this branch should never actually fire in
			// practice. It exists because the marker set is part of the
			// documented admission contract and must not silently
			// double-admit if that ever changes.
			delete(m.started, j)
			m.removePendingLocked(j)
			e = next
			continue
		}

		if !j.Request.FitsUnder(headroom) {
			// Strict FIFO: the head of the remaining queue doesn't fit,
			// so stop rather than skip ahead to a smaller job behind it.
			return
		}

		m.admit(j, e)
		headroom = m.used.Headroom()
		e = next
	}
}

// walkCandidateLocked is the fast path used when nothing finished this
// tick: only jobs added since the last tick can possibly be admissible,
// since utilization could only have grown.
func (m *Manager) walkCandidateLocked() {
	headroom := m.used.Headroom()

	for e := m.candidate.Front(); e != nil; e = e.Next() {
		j := e.Value.(*job.Job)

		if j.Request.FitsUnder(headroom) {
			m.admitCandidate(j)
			headroom = m.used.Headroom()
		} else {
			// Strict FIFO applies to the candidate walk too: stop at the
			// first rejection rather than admitting a later, smaller
			// candidate ahead of an earlier one that doesn't yet fit.
			return
		}
	}
}

// admit starts j, removes it from the pending queue at element e, and
// folds its request into utilization.
func (m *Manager) admit(j *job.Job, e *list.Element) {
	m.startJob(j)
	m.pending.Remove(e)
	delete(m.pendingElem, j)
}

// admitCandidate starts j and removes it from the pending queue in O(1)
// via its tracked element, then records it in the already-started marker
// set as a defensive guard against double-admission if a future
// finish-driven walk somehow reaches it before that removal is visible.
func (m *Manager) admitCandidate(j *job.Job) {
	m.startJob(j)
	m.removePendingLocked(j)
	m.started[j] = struct{}{}
}

func (m *Manager) removePendingLocked(j *job.Job) {
	if e, ok := m.pendingElem[j]; ok {
		m.pending.Remove(e)
		delete(m.pendingElem, j)
	}
}

func (m *Manager) startJob(j *job.Job) {
	if err := j.Start(m.runtime); err != nil {
		log.WithComponent("manager").Error().Err(err).Str("job_id", j.ID).Msg("failed to start job")
		j.State = types.JobFailed
		j.LastError = err
		metrics.JobsReapedTotal.WithLabelValues(string(types.JobFailed)).Inc()
		return
	}

	m.running[j] = struct{}{}
	m.used = m.used.Add(j.Request)
	metrics.JobsAdmittedTotal.Inc()
}

func (m *Manager) drainRunningLocked() {
	for j := range m.running {
		j.DrainOutput()
	}
}

func (m *Manager) publishMetricsLocked() {
	metrics.CPUUsedPercent.Set(m.used.CPU)
	metrics.RAMUsedPercent.Set(m.used.RAM)
	metrics.GPUUsedPercent.Set(m.used.GPU)
	metrics.VRAMUsedPercent.Set(m.used.VRAM)
	metrics.PendingJobs.Set(float64(m.pending.Len()))
	metrics.RunningJobs.Set(float64(len(m.running)))
}

// Status returns the current running/pending composition for publication
// into the mailbox.
func (m *Manager) Status() types.StatusSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := types.StatusSnapshot{
		Running: make([]types.StatusEntry, 0, len(m.running)),
		Pending: make([]types.StatusEntry, 0, m.pending.Len()),
	}

	for j := range m.running {
		snapshot.Running = append(snapshot.Running, j.StatusEntry())
	}
	for e := m.pending.Front(); e != nil; e = e.Next() {
		snapshot.Pending = append(snapshot.Pending, e.Value.(*job.Job).StatusEntry())
	}

	return snapshot
}
