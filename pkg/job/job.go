// Package job ties a decoded manifest, a directory on disk, and a running
// jobrunner.Runner together into the single entity the Manager schedules.
// It owns the job's output files and its lifecycle state; it does not
// decide whether a job fits on the host — that's pkg/manager.
package job

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cuemby/stoplight/pkg/jobrunner"
	"github.com/cuemby/stoplight/pkg/log"
	"github.com/cuemby/stoplight/pkg/manifest"
	"github.com/cuemby/stoplight/pkg/types"
)

const (
	entrypoint  = "run_job.sh"
	outFileName = "job.out"
	errFileName = "job.err"
)

// Job is one submission's full in-memory state across its lifetime.
type Job struct {
	ID      string
	Dir     string
	Record  *manifest.Record
	Request types.ResourceVector

	State     types.JobState
	LastError error

	runner   *jobrunner.Runner
	outFile  *os.File
	errFile  *os.File
}

// New decodes jobDir's manifest and normalizes its resource request
// against capacity. The returned Job starts in JobPending.
func New(jobDir string, capacity types.Capacity) (*Job, []string, error) {
	rec, warnings, err := manifest.Decode(jobDir)
	if err != nil {
		return nil, warnings, err
	}

	request := types.Normalize(
		rec.ResourceUsage.CPU, rec.ResourceUsage.RAM,
		rec.ResourceUsage.GPU, rec.ResourceUsage.VRAM,
		capacity,
	)

	return &Job{
		ID:      uuid.NewString(),
		Dir:     jobDir,
		Record:  rec,
		Request: request,
		State:   types.JobPending,
	}, warnings, nil
}

// WantsGPU reports whether this job's normalized request touches the GPU
// or VRAM dimension at all — the sole signal used to pick a GPU-capable
// runtime binary (SPEC_FULL §12.3).
func (j *Job) WantsGPU() bool {
	return j.Request.GPU > 0 || j.Request.VRAM > 0
}

// Start opens job.out/job.err in append mode (created lazily here, never
// at decode time — SPEC_FULL §12.2 / Open Question 4) and launches the
// container process.
func (j *Job) Start(rt jobrunner.Runtime) error {
	jobLog := log.WithJobID(j.ID)

	outPath := filepath.Join(j.Dir, outFileName)
	errPath := filepath.Join(j.Dir, errFileName)

	outFile, err := os.OpenFile(outPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", outPath, err)
	}
	errFile, err := os.OpenFile(errPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		outFile.Close()
		return fmt.Errorf("opening %s: %w", errPath, err)
	}

	j.outFile = outFile
	j.errFile = errFile
	j.runner = jobrunner.New(j.Dir, j.Record.Container)

	binary := jobrunner.SelectRuntime(rt, j.WantsGPU())
	if err := j.runner.Start(binary, entrypoint); err != nil {
		j.closeOutputFiles()
		return fmt.Errorf("starting container: %w", err)
	}

	jobLog.Info().Str("name", j.Record.Name).Str("description", j.Record.Description).Msg("starting job")
	j.State = types.JobRunning
	return nil
}

// Poll checks whether the job's container has exited and, if so, moves
// the Job to a terminal state. A non-zero exit is a Failed status, never
// an error returned to the caller — the scheduler tick must not stop for
// one bad job (fixes the original daemon's raise-on-nonzero-exit bug,
// SPEC_FULL Open Question resolution and spec §7).
func (j *Job) Poll() {
	if j.runner == nil || !j.runner.IsFinished() {
		return
	}

	j.flushOutput()
	j.closeOutputFiles()

	if j.runner.ExitFailed() {
		j.LastError = j.runner.ExitError()
		j.State = types.JobFailed
		log.WithJobID(j.ID).Warn().Err(j.LastError).Msg("job exited non-zero")
		return
	}

	j.State = types.JobCompleted
	log.WithJobID(j.ID).Info().Msg("job finished successfully")
}

// DrainOutput flushes any buffered stdout/stderr from the runner to
// job.out/job.err. Called every tick so `tail -f job.out` behaves.
func (j *Job) DrainOutput() {
	j.flushOutput()
}

func (j *Job) flushOutput() {
	if j.runner == nil {
		return
	}
	stdout, stderr := j.runner.DrainOutput()
	if len(stdout) > 0 && j.outFile != nil {
		j.outFile.Write(stdout)
	}
	if len(stderr) > 0 && j.errFile != nil {
		j.errFile.Write(stderr)
	}
}

func (j *Job) closeOutputFiles() {
	if j.outFile != nil {
		j.outFile.Close()
		j.outFile = nil
	}
	if j.errFile != nil {
		j.errFile.Close()
		j.errFile = nil
	}
}

// Terminate stops a running job's container and marks it Terminated;
// normal completion goes through Poll. Neither the Manager nor stoplightd
// calls it: on SIGINT/SIGTERM stoplightd returns without terminating any
// job, so containers still running at shutdown are not stopped by the
// daemon.
func (j *Job) Terminate() {
	if j.runner != nil {
		j.runner.Terminate()
	}
	j.flushOutput()
	j.closeOutputFiles()
	j.State = types.JobTerminated
}

// StatusEntry projects this Job into the minimal record the control
// plane reports.
func (j *Job) StatusEntry() types.StatusEntry {
	return types.StatusEntry{Name: j.Record.Name, Description: j.Record.Description}
}
