package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/stoplight/pkg/types"
)

// DefaultAddr is the control plane's default bind address, matching the
// original daemon's Flask default.
const DefaultAddr = "http://127.0.0.1:5000"

// Client is a thin HTTP wrapper around the control plane's REST surface,
// used by cmd/stoplight. It carries no credentials: the control plane
// trusts anything that can reach 127.0.0.1.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client against baseURL (e.g. DefaultAddr).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// envelope mirrors controlplane's response shape.
type envelope struct {
	Status  string              `json:"status"`
	Details string              `json:"details,omitempty"`
	Running []types.StatusEntry `json:"running,omitempty"`
	Pending []types.StatusEntry `json:"pending,omitempty"`
}

// AddJob submits a job directory to the daemon for scheduling. jobDir is
// resolved to an absolute path before sending, matching the original
// client's os.path.abspath call, since the daemon and the CLI may not
// share a working directory.
func (c *Client) AddJob(jobDir string) error {
	abs, err := filepath.Abs(jobDir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", jobDir, err)
	}

	form := url.Values{"job_dir": {abs}}
	resp, err := c.http.PostForm(c.baseURL+"/add_job", form)
	if err != nil {
		return fmt.Errorf("contacting daemon: %w", err)
	}
	defer resp.Body.Close()

	var body envelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding daemon response: %w", err)
	}
	if body.Status != "okay" {
		return fmt.Errorf("daemon rejected job: %s", body.Details)
	}
	return nil
}

// Status fetches the current running/pending snapshot from the daemon.
func (c *Client) Status() (types.StatusSnapshot, error) {
	resp, err := c.http.Get(c.baseURL + "/status")
	if err != nil {
		return types.StatusSnapshot{}, fmt.Errorf("contacting daemon: %w", err)
	}
	defer resp.Body.Close()

	var body envelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.StatusSnapshot{}, fmt.Errorf("decoding daemon response: %w", err)
	}
	if body.Status != "okay" {
		return types.StatusSnapshot{}, fmt.Errorf("daemon returned error: %s", body.Details)
	}

	return types.StatusSnapshot{Running: body.Running, Pending: body.Pending}, nil
}
