package job

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stoplight/pkg/jobrunner"
	"github.com/cuemby/stoplight/pkg/types"
)

func testCapacity() types.Capacity {
	return types.Capacity{CPUCores: 4, TotalRAM: 16 << 30, TotalVRAM: 8 << 30, GPUCount: 1}
}

func newJobDir(t *testing.T, name string, manifestExtra string) string {
	t.Helper()
	dir := t.TempDir()
	manifest := "Name: " + name + "\nDescription: test job\nContainer: busybox\n" + manifestExtra
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.yaml"), []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run_job.sh"), []byte("#!/bin/sh\nexit 0\n"), 0755))
	return dir
}

func TestNewDecodesManifestAndNormalizesRequest(t *testing.T) {
	dir := newJobDir(t, "A", "ResourceUsage:\n  - CpuUsage: 100\n  - RamUsage: 0\n")
	j, warnings, err := New(dir, testCapacity())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, types.JobPending, j.State)
	assert.InDelta(t, 25.0, j.Request.CPU, 0.001) // 100% of one core / 4 cores
	assert.NotEmpty(t, j.ID)
}

func TestNewReturnsErrorForMissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, _, err := New(dir, testCapacity())
	assert.Error(t, err)
}

func TestWantsGPUReflectsNonzeroGPUOrVRAMRequest(t *testing.T) {
	dir := newJobDir(t, "GpuJob", "ResourceUsage:\n  - GpuUsage: 10\n")
	j, _, err := New(dir, testCapacity())
	require.NoError(t, err)
	assert.True(t, j.WantsGPU())
}

func TestWantsGPUFalseForCPUOnlyJob(t *testing.T) {
	dir := newJobDir(t, "CpuJob", "ResourceUsage:\n  - CpuUsage: 10\n")
	j, _, err := New(dir, testCapacity())
	require.NoError(t, err)
	assert.False(t, j.WantsGPU())
}

func fakeRuntime() jobrunner.Runtime {
	return jobrunner.Runtime{Plain: "/bin/echo", GPU: "/bin/echo"}
}

func TestStartTransitionsToRunningAndCreatesOutputFiles(t *testing.T) {
	dir := newJobDir(t, "Start", "")
	j, _, err := New(dir, testCapacity())
	require.NoError(t, err)

	require.NoError(t, j.Start(fakeRuntime()))
	assert.Equal(t, types.JobRunning, j.State)

	assert.FileExists(t, filepath.Join(dir, "job.out"))
	assert.FileExists(t, filepath.Join(dir, "job.err"))
}

func TestPollMarksSuccessfulCompletion(t *testing.T) {
	dir := newJobDir(t, "Poll", "")
	j, _, err := New(dir, testCapacity())
	require.NoError(t, err)
	require.NoError(t, j.Start(fakeRuntime()))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && j.State == types.JobRunning {
		j.Poll()
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, types.JobCompleted, j.State)
	assert.NoError(t, j.LastError)
}

func TestPollMarksFailureWithoutReturningError(t *testing.T) {
	dir := newJobDir(t, "Fail", "")
	j, _, err := New(dir, testCapacity())
	require.NoError(t, err)
	require.NoError(t, j.Start(jobrunner.Runtime{Plain: "/bin/false", GPU: "/bin/false"}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && j.State == types.JobRunning {
		j.Poll()
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, types.JobFailed, j.State)
	assert.Error(t, j.LastError)
}

func TestTerminateSetsTerminatedState(t *testing.T) {
	dir := newJobDir(t, "Term", "")
	j, _, err := New(dir, testCapacity())
	require.NoError(t, err)
	require.NoError(t, j.Start(jobrunner.Runtime{Plain: "/bin/sleep", GPU: "/bin/sleep"}))

	j.Terminate()
	assert.Equal(t, types.JobTerminated, j.State)
}

func TestStatusEntryProjectsNameAndDescription(t *testing.T) {
	dir := newJobDir(t, "Status", "")
	j, _, err := New(dir, testCapacity())
	require.NoError(t, err)

	entry := j.StatusEntry()
	assert.Equal(t, "Status", entry.Name)
	assert.Equal(t, "test job", entry.Description)
}
