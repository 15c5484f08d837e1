// Package web exposes the dashboard API for triggering and watching
// validation runs.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"menuqa/pricevalidator/logger"
	"menuqa/pricevalidator/services/jobs"
)

// RunRequest are the caller-controlled parameters of one run.
type RunRequest struct {
	Province    string `json:"province,omitempty"`
	CartCapture bool   `json:"cart_capture,omitempty"`
}

// RunResult is what a finished run hands back to the dashboard.
type RunResult struct {
	ReportPath string
	Summary    string
}

// Progress carries a running job's reporters into the pipeline. Step streams
// milestone messages; Percent advances the job's completion percentage.
type Progress struct {
	Step    func(string)
	Percent func(int)
}

// RunFunc executes one validation run, reporting through progress. The
// server invokes it on a background goroutine per job.
type RunFunc func(ctx context.Context, req RunRequest, progress Progress) (RunResult, error)

// Server wires the job tracker and the run function into an HTTP API.
type Server struct {
	tracker *jobs.Tracker
	run     RunFunc
	log     *logger.Logger
}

func NewServer(tracker *jobs.Tracker, run RunFunc) *Server {
	return &Server{tracker: tracker, run: run, log: logger.ForWeb()}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/report", s.handleReport)
	})
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, `<!doctype html>
<title>Menu Price Validator</title>
<h1>Menu Price Validator</h1>
<p>POST /api/runs to start a run, GET /api/runs/{id} to watch it,
GET /api/runs/{id}/report to download the workbook.</p>
`)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.Body != nil {
		// An empty body means a default run.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	id, err := s.tracker.Create()
	if err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	go s.execute(id, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": id, "status": "started"})
}

// execute drives one run to completion, forwarding progress through a
// bounded feed so a slow dashboard reader can never stall collection.
func (s *Server) execute(id string, req RunRequest) {
	s.tracker.Start(id)

	feed := jobs.NewProgressFeed(0)
	done := make(chan struct{})
	go func() {
		jobs.Forward(feed, s.tracker, id)
		close(done)
	}()

	progress := Progress{
		Step: feed.Sink(),
		Percent: func(percent int) {
			s.tracker.SetProgress(id, percent, "")
		},
	}

	result, err := s.run(context.Background(), req, progress)
	feed.Close()
	<-done

	if err != nil {
		s.log.Error().Str("job", id).Err(err).Msg("Run failed")
		s.tracker.Fail(id, err)
		return
	}
	s.tracker.Complete(id, result.ReportPath, "Complete! "+result.Summary)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	job, ok := s.tracker.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.tracker.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status != jobs.StatusCompleted || job.ReportPath == "" {
		writeError(w, http.StatusConflict, "job has no report")
		return
	}
	if _, err := os.Stat(job.ReportPath); err != nil {
		writeError(w, http.StatusNotFound, "report file not found")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, job.ReportPath)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
