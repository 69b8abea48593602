package controlplane

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stoplight/pkg/cmdqueue"
	"github.com/cuemby/stoplight/pkg/mailbox"
	"github.com/cuemby/stoplight/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	q, err := cmdqueue.Open(t.TempDir())
	require.NoError(t, err)
	box, err := mailbox.Open(t.TempDir())
	require.NoError(t, err)
	return New("127.0.0.1:0", q, box)
}

// newValidJobDir writes a job.yaml with every required field present, so
// manifest.Decode succeeds.
func newValidJobDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	manifest := "Name: one\nDescription: test job\nContainer: busybox\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.yaml"), []byte(manifest), 0644))
	return dir
}

func postAddJob(t *testing.T, s *Server, jobDir string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"job_dir": {jobDir}}
	req := httptest.NewRequest(http.MethodPost, "/add_job", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.handleAddJob(w, req)
	return w
}

func TestAddJobEnqueuesCommand(t *testing.T) {
	s := newTestServer(t)
	dir := newValidJobDir(t)

	w := postAddJob(t, s, dir)

	assert.Equal(t, http.StatusOK, w.Code)
	var body response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "okay", body.Status)

	commands, err := s.queue.Drain()
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, dir, commands[0].JobDir)
}

// Regression for deferred-validation: a manifest that fails to decode must
// be rejected synchronously, in the same request, with HTTP 200 and
// {"status":"error"} (spec §4.5, §6 scenario 6) — never enqueued for the
// scheduler to discover on a later tick.
func TestAddJobRejectsInvalidManifestSynchronously(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.yaml"), []byte("Name: one\nContainer: busybox\n"), 0644))

	w := postAddJob(t, s, dir)

	assert.Equal(t, http.StatusOK, w.Code)
	var body response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Invalid job.yaml: 'Description' parameter is required.", body.Details)

	commands, err := s.queue.Drain()
	require.NoError(t, err)
	assert.Empty(t, commands)
}

// A job_dir with no job.yaml at all must fail the same synchronous way,
// not get enqueued and discovered missing on a later tick.
func TestAddJobRejectsMissingManifestFileSynchronously(t *testing.T) {
	s := newTestServer(t)

	w := postAddJob(t, s, "/jobs/does-not-exist")

	assert.Equal(t, http.StatusOK, w.Code)
	var body response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)

	commands, err := s.queue.Drain()
	require.NoError(t, err)
	assert.Empty(t, commands)
}

func TestAddJobRejectsMissingJobDir(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/add_job", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.handleAddJob(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)
}

func TestAddJobRejectsWrongMethod(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/add_job", nil)
	w := httptest.NewRecorder()

	s.handleAddJob(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusReflectsMailboxContents(t *testing.T) {
	s := newTestServer(t)

	snapshot := types.StatusSnapshot{
		Running: []types.StatusEntry{{Name: "A", Description: "job a"}},
		Pending: []types.StatusEntry{{Name: "B", Description: "job b"}},
	}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	require.NoError(t, s.box.Set(data))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	s.handleStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "okay", body.Status)
	require.Len(t, body.Running, 1)
	assert.Equal(t, "A", body.Running[0].Name)
	require.Len(t, body.Pending, 1)
	assert.Equal(t, "B", body.Pending[0].Name)
}

func TestStatusOnEmptyMailboxReturnsEmptyLists(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	s.handleStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "okay", body.Status)
	assert.Empty(t, body.Running)
	assert.Empty(t, body.Pending)
}

// Peek must not consume the mailbox slot: a second /status read should
// see the same snapshot as the first.
func TestStatusDoesNotConsumeMailboxSlot(t *testing.T) {
	s := newTestServer(t)

	snapshot := types.StatusSnapshot{Running: []types.StatusEntry{{Name: "A"}}}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	require.NoError(t, s.box.Set(data))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		w := httptest.NewRecorder()
		s.handleStatus(w, req)

		var body response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Len(t, body.Running, 1)
	}
}
