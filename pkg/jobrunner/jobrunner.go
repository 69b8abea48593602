// Package jobrunner wraps a single container invocation as an external
// subprocess, in the style of test/framework.Process's pipe-and-goroutine
// capture but trimmed to what a scheduler tick needs: start once, poll
// IsFinished without blocking, drain whatever output has accumulated.
//
// The container runtime itself is never linked in-process — spec §4.2
// requires an external binary invocation so the runtime can be swapped
// (plain vs GPU-enabled) without touching this package.
package jobrunner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/cuemby/stoplight/pkg/log"
)

// Runtime names the external binary used to run a container. Selection
// between the two is a binary switch on whether the job's request has any
// GPU/VRAM component (SPEC_FULL §12.3), never a topology query.
type Runtime struct {
	Plain string // e.g. "docker"
	GPU   string // e.g. "nvidia-docker"
}

// DefaultRuntime matches the original daemon's assumed binary names.
var DefaultRuntime = Runtime{Plain: "docker", GPU: "nvidia-docker"}

// Runner manages one running container process for the duration of a job.
type Runner struct {
	jobDir    string
	container string
	cmd       *exec.Cmd

	mu      sync.Mutex
	stdout  []byte
	stderr  []byte
	started bool
	waitErr error
	done    bool
	doneCh  chan struct{}
}

// New constructs a Runner for a container image against the given job
// directory, which is bind-mounted at /job_files inside the container.
func New(jobDir, container string) *Runner {
	return &Runner{jobDir: jobDir, container: container}
}

// Start launches `<runtime> run --rm --net=host -v <jobDir>:/job_files
// <container> job_files/<entrypoint>`, wiring stdout/stderr into
// background-drained buffers so a slow or silent job never blocks the
// scheduler tick that polls IsFinished/DrainOutput.
func (r *Runner) Start(runtimeBinary, entrypoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("jobrunner: already started")
	}

	localExe := filepath.Join(r.jobDir, entrypoint)
	if _, err := os.Stat(localExe); err != nil {
		return fmt.Errorf("entrypoint %q not found in job directory: %w", entrypoint, err)
	}

	absJobDir, err := filepath.Abs(r.jobDir)
	if err != nil {
		return fmt.Errorf("resolving job directory: %w", err)
	}

	exePath := filepath.Join("job_files", entrypoint)
	args := []string{"run", "--rm", "--net=host", "-v",
		fmt.Sprintf("%s:/job_files", absJobDir), r.container, exePath}

	cmd := exec.Command(runtimeBinary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", runtimeBinary, err)
	}

	r.cmd = cmd
	r.started = true
	r.doneCh = make(chan struct{})

	go r.drain(stdout, &r.stdout)
	go r.drain(stderr, &r.stderr)
	go r.wait()

	return nil
}

func (r *Runner) drain(reader io.Reader, dst *[]byte) {
	buf := make([]byte, 4096)
	br := bufio.NewReaderSize(reader, 4096)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			r.mu.Lock()
			*dst = append(*dst, buf[:n]...)
			r.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (r *Runner) wait() {
	err := r.cmd.Wait()
	r.mu.Lock()
	r.waitErr = err
	r.done = true
	r.mu.Unlock()
	close(r.doneCh)
}

// IsFinished reports whether the process has exited, without blocking.
// A non-zero exit is a normal, reportable outcome — FAILED, not an error
// from IsFinished itself. Callers distinguish the two via ExitFailed.
func (r *Runner) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// ExitFailed reports whether a finished process exited non-zero. Calling
// it before IsFinished is true returns false.
func (r *Runner) ExitFailed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done && r.waitErr != nil
}

// ExitError returns the raw wait error for a finished, failed process, or
// nil. Used only for log context — it is never propagated as a tick error.
func (r *Runner) ExitError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waitErr
}

// DrainOutput returns and clears whatever stdout/stderr bytes have
// accumulated since the last call.
func (r *Runner) DrainOutput() (stdout, stderr []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stdout, r.stdout = r.stdout, nil
	stderr, r.stderr = r.stderr, nil
	return stdout, stderr
}

// Terminate kills the container process if it's still running. It is
// best-effort: an already-exited process is not an error.
func (r *Runner) Terminate() error {
	r.mu.Lock()
	cmd := r.cmd
	done := r.done
	r.mu.Unlock()

	if cmd == nil || done {
		return nil
	}
	if cmd.Process == nil {
		return nil
	}

	log.WithComponent("jobrunner").Warn().Str("container", r.container).Msg("terminating running job")
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("killing container process: %w", err)
	}
	return nil
}

// SelectRuntime picks the plain or GPU-enabled runtime binary based on
// whether the job requested any GPU/VRAM share.
func SelectRuntime(rt Runtime, wantsGPU bool) string {
	if wantsGPU {
		return rt.GPU
	}
	return rt.Plain
}
