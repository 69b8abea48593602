package jobrunner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntrypoint(t *testing.T, dir, script string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run_job.sh"), []byte(script), 0755))
}

func waitFinished(t *testing.T, r *Runner) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.IsFinished() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("runner never finished")
}

func TestStartFailsWithoutEntrypoint(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "busybox")
	err := r.Start("/bin/echo", "run_job.sh")
	assert.Error(t, err)
}

func TestSuccessfulExitReportsNotFailed(t *testing.T) {
	dir := t.TempDir()
	newEntrypoint(t, dir, "#!/bin/sh\nexit 0\n")

	r := New(dir, "busybox")
	// /bin/echo stands in for a runtime binary here: its arguments are
	// irrelevant, it always exits 0, exercising the success path without
	// a real container engine.
	require.NoError(t, r.Start("/bin/echo", "run_job.sh"))

	waitFinished(t, r)
	assert.False(t, r.ExitFailed())
	assert.NoError(t, r.ExitError())
}

func TestFailingCommandReportsExitFailed(t *testing.T) {
	dir := t.TempDir()
	newEntrypoint(t, dir, "#!/bin/sh\nexit 1\n")

	r := New(dir, "busybox")
	require.NoError(t, r.Start("/bin/false", "run_job.sh"))

	waitFinished(t, r)
	assert.True(t, r.ExitFailed())
	assert.Error(t, r.ExitError())
}

func TestDrainOutputCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	newEntrypoint(t, dir, "#!/bin/sh\nexit 0\n")

	// /bin/echo stands in for a runtime binary: Start's constructed
	// argument list (run --rm --net=host -v ...:/job_files busybox
	// job_files/run_job.sh) becomes its stdout verbatim, so the
	// container name is a deterministic marker to look for.
	r := New(dir, "busybox")
	require.NoError(t, r.Start("/bin/echo", "run_job.sh"))

	waitFinished(t, r)
	stdout, _ := r.DrainOutput()
	assert.Contains(t, string(stdout), "busybox")
}

func TestDrainOutputClearsBufferAfterRead(t *testing.T) {
	dir := t.TempDir()
	newEntrypoint(t, dir, "#!/bin/sh\nexit 0\n")

	r := New(dir, "busybox")
	require.NoError(t, r.Start("/bin/echo", "run_job.sh"))

	waitFinished(t, r)
	first, _ := r.DrainOutput()
	assert.NotEmpty(t, first)

	second, _ := r.DrainOutput()
	assert.Empty(t, second)
}

func TestSelectRuntimePicksGPUBinaryWhenRequested(t *testing.T) {
	rt := Runtime{Plain: "docker", GPU: "nvidia-docker"}
	assert.Equal(t, "docker", SelectRuntime(rt, false))
	assert.Equal(t, "nvidia-docker", SelectRuntime(rt, true))
}

func TestTerminateOnUnstartedRunnerIsNoop(t *testing.T) {
	r := New(t.TempDir(), "busybox")
	assert.NoError(t, r.Terminate())
}

func TestDoubleStartReturnsError(t *testing.T) {
	dir := t.TempDir()
	newEntrypoint(t, dir, "#!/bin/sh\nsleep 1\n")

	r := New(dir, "busybox")
	require.NoError(t, r.Start("/bin/sleep", "run_job.sh"))

	err := r.Start("/bin/sleep", "run_job.sh")
	assert.Error(t, err)

	r.Terminate()
}
