// Package jobs tracks validation runs triggered through the web dashboard.
// State is in-memory only; jobs expire after a retention window.
package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"menuqa/pricevalidator/logger"
)

// Status is the lifecycle state of one run job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Job is a point-in-time snapshot of one run.
type Job struct {
	ID         string    `json:"job_id"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message"`
	ReportPath string    `json:"report_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	EndedAt    time.Time `json:"ended_at,omitempty"`
	Log        []string  `json:"log,omitempty"`
}

const (
	defaultMaxJobs   = 50
	defaultMaxActive = 5
	logCapacity      = 256
)

// Tracker owns the job table. All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	jobs      map[string]*jobState
	retention time.Duration
	maxJobs   int
	maxActive int
	log       *logger.Logger

	now func() time.Time // test hook
}

type jobState struct {
	job Job
	log *ring
}

func NewTracker(retention time.Duration) *Tracker {
	return &Tracker{
		jobs:      map[string]*jobState{},
		retention: retention,
		maxJobs:   defaultMaxJobs,
		maxActive: defaultMaxActive,
		log:       logger.ForWeb(),
		now:       time.Now,
	}
}

// Create registers a new pending job and returns its id. Expired jobs are
// collected first; the active-job and total-job limits are enforced here.
func (t *Tracker) Create() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cleanupLocked()

	active := 0
	for _, s := range t.jobs {
		if s.job.Status == StatusPending || s.job.Status == StatusRunning {
			active++
		}
	}
	if active >= t.maxActive {
		return "", fmt.Errorf("too many active jobs (%d)", active)
	}
	if len(t.jobs) >= t.maxJobs {
		return "", fmt.Errorf("job limit reached (%d)", len(t.jobs))
	}

	id := uuid.NewString()[:8]
	t.jobs[id] = &jobState{
		job: Job{
			ID:        id,
			Status:    StatusPending,
			Message:   "Starting...",
			CreatedAt: t.now(),
		},
		log: newRing(logCapacity),
	}
	t.log.Info().Str("job", id).Msg("Job created")
	return id, nil
}

// Start marks the job running.
func (t *Tracker) Start(id string) {
	t.update(id, func(s *jobState) {
		s.job.Status = StatusRunning
		s.job.StartedAt = t.now()
	})
}

// SetProgress updates the percentage. An empty message keeps the current
// headline so percentage-only milestones do not blank the dashboard.
func (t *Tracker) SetProgress(id string, percent int, message string) {
	t.update(id, func(s *jobState) {
		s.job.Progress = percent
		if message != "" {
			s.job.Message = message
			s.log.push(message)
		}
	})
}

// Record appends a progress message without moving the percentage. This is
// the sink for the orchestrator's milestone messages.
func (t *Tracker) Record(id, message string) {
	t.update(id, func(s *jobState) {
		s.job.Message = message
		s.log.push(message)
	})
}

// Complete marks the job done and attaches the report artifact.
func (t *Tracker) Complete(id, reportPath, message string) {
	t.update(id, func(s *jobState) {
		s.job.Status = StatusCompleted
		s.job.Progress = 100
		s.job.Message = message
		s.job.ReportPath = reportPath
		s.job.EndedAt = t.now()
	})
}

// Fail marks the job errored.
func (t *Tracker) Fail(id string, err error) {
	t.update(id, func(s *jobState) {
		s.job.Status = StatusError
		s.job.Error = err.Error()
		s.job.Message = "Error: " + err.Error()
		s.job.EndedAt = t.now()
	})
}

// Get returns a snapshot of the job, including its recent progress log.
func (t *Tracker) Get(id string) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	job := s.job
	job.Log = s.log.snapshot()
	return job, true
}

// Cleanup drops jobs past the retention window and returns how many.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanupLocked()
}

func (t *Tracker) cleanupLocked() int {
	if t.retention <= 0 {
		return 0
	}
	cutoff := t.now().Add(-t.retention)
	removed := 0
	for id, s := range t.jobs {
		if s.job.CreatedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		t.log.Debug().Int("removed", removed).Msg("Expired jobs collected")
	}
	return removed
}

func (t *Tracker) update(id string, fn func(*jobState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.jobs[id]; ok {
		fn(s)
	}
}

// ring is a fixed-capacity message buffer that keeps the newest entries.
type ring struct {
	buf   []string
	start int
	full  bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]string, 0, capacity)}
}

func (r *ring) push(msg string) {
	if !r.full && len(r.buf) < cap(r.buf) {
		r.buf = append(r.buf, msg)
		if len(r.buf) == cap(r.buf) {
			r.full = true
		}
		return
	}
	r.buf[r.start] = msg
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) snapshot() []string {
	out := make([]string, 0, len(r.buf))
	out = append(out, r.buf[r.start:]...)
	out = append(out, r.buf[:r.start]...)
	return out
}
