// Package controlplane serves the local HTTP surface stoplightd exposes
// to the stoplight CLI: POST /add_job to enqueue a job directory and
// GET /status to read the last published status snapshot. There is no
// authentication and no TLS — the server binds to 127.0.0.1 only, the
// same trust boundary the original daemon assumed.
package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/stoplight/pkg/cmdqueue"
	"github.com/cuemby/stoplight/pkg/log"
	"github.com/cuemby/stoplight/pkg/mailbox"
	"github.com/cuemby/stoplight/pkg/manifest"
	"github.com/cuemby/stoplight/pkg/metrics"
	"github.com/cuemby/stoplight/pkg/types"
)

// response is the JSON envelope every endpoint replies with: "okay" or
// "error", with an optional human-readable detail on failure.
type response struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`

	Running []types.StatusEntry `json:"running,omitempty"`
	Pending []types.StatusEntry `json:"pending,omitempty"`
}

// Server is the control plane's HTTP surface. It never touches the
// Manager directly: submissions go through a cmdqueue.Queue the
// scheduler process drains on its own tick, and status reads come from
// a mailbox.Mailbox the scheduler publishes into after every tick. This
// keeps the control plane usable as a second OS process from the
// scheduler, matching spec §5's two-process topology.
type Server struct {
	queue   *cmdqueue.Queue
	box     *mailbox.Mailbox
	addr    string
	httpSrv *http.Server
}

// New constructs a Server bound to addr (e.g. "127.0.0.1:5000").
func New(addr string, queue *cmdqueue.Queue, box *mailbox.Mailbox) *Server {
	s := &Server{queue: queue, box: box, addr: addr}

	mux := http.NewServeMux()
	mux.HandleFunc("/add_job", s.handleAddJob)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe runs the HTTP server until ctx is canceled, then shuts
// it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithComponent("controlplane").Info().Str("addr", s.addr).Msg("listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// handleAddJob accepts a form-encoded job_dir parameter, matching the
// original daemon's wire format. It parses and validates the manifest
// synchronously, in-request, so a malformed job.yaml is reported to the
// caller immediately rather than surfacing later as a scheduler log line;
// only a job that decodes cleanly is appended to the queue the scheduler
// drains on its next tick.
func (s *Server) handleAddJob(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AddJobDuration)

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "/add_job")
		return
	}

	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed form body", "/add_job")
		return
	}

	jobDir := r.FormValue("job_dir")
	if jobDir == "" {
		log.WithComponent("controlplane").Error().Msg("add_job request missing job_dir parameter")
		s.writeError(w, http.StatusBadRequest, "missing job_dir parameter", "/add_job")
		return
	}

	if _, warnings, err := manifest.Decode(jobDir); err != nil {
		log.WithComponent("controlplane").Error().Err(err).Str("job_dir", jobDir).Msg("rejected add_job: invalid manifest")
		metrics.HTTPRequestsTotal.WithLabelValues("/add_job", "200").Inc()
		s.writeJSON(w, http.StatusOK, response{Status: "error", Details: err.Error()})
		return
	} else {
		for _, warning := range warnings {
			log.WithComponent("controlplane").Warn().Str("job_dir", jobDir).Msg(warning)
		}
	}

	if err := s.queue.PutAddJob(jobDir); err != nil {
		log.WithComponent("controlplane").Error().Err(err).Str("job_dir", jobDir).Msg("failed to enqueue add_job command")
		s.writeError(w, http.StatusInternalServerError, err.Error(), "/add_job")
		return
	}

	metrics.HTTPRequestsTotal.WithLabelValues("/add_job", "200").Inc()
	s.writeJSON(w, http.StatusOK, response{Status: "okay"})
}

// handleStatus reads the last snapshot the scheduler published into the
// mailbox and reports it without consuming it — Peek, not Get, since
// multiple status requests must not race each other out of a single
// published value.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "/status")
		return
	}

	data, err := s.box.Peek()
	if err != nil {
		log.WithComponent("controlplane").Error().Err(err).Msg("failed to read status mailbox")
		s.writeError(w, http.StatusInternalServerError, err.Error(), "/status")
		return
	}

	var snapshot types.StatusSnapshot
	if len(data) > 0 {
		if err := json.Unmarshal(data, &snapshot); err != nil {
			log.WithComponent("controlplane").Error().Err(err).Msg("failed to decode status mailbox contents")
			s.writeError(w, http.StatusInternalServerError, "corrupt status snapshot", "/status")
			return
		}
	}

	metrics.HTTPRequestsTotal.WithLabelValues("/status", "200").Inc()
	s.writeJSON(w, http.StatusOK, response{
		Status:  "okay",
		Running: snapshot.Running,
		Pending: snapshot.Pending,
	})
}

func (s *Server) writeError(w http.ResponseWriter, code int, details, route string) {
	metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	s.writeJSON(w, code, response{Status: "error", Details: details})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithComponent("controlplane").Error().Err(err).Msg("failed to write response body")
	}
}
