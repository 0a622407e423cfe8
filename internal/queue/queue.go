// Package queue provides the in-process job queue feeding the analysis
// worker pool. Delivery is at-least-once: a leased job whose visibility
// timeout lapses is handed out again.
package queue

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Priority orders jobs across sources. Manual submissions outrank scraped
// ones; within a priority the queue is FIFO.
type Priority int

const (
	PriorityScraped Priority = iota
	PriorityManual
)

var priorities = []Priority{PriorityManual, PriorityScraped}

// State is the lifecycle state of a job.
type State string

const (
	StateQueued     State = "queued"
	StateRunning    State = "running"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed" // transient failure, waiting out backoff
	StateDeadLetter State = "dead_letter"
)

// Job is one unit of analysis work. Jobs are owned by the queue and
// garbage-collected after a retention window once terminal.
type Job struct {
	ID           string
	IncidentUUID string
	Priority     Priority
	State        State
	Attempts     int
	LastError    string
	NotBefore    time.Time
	LeaseExpiry  time.Time
	EnqueuedAt   time.Time
	FinishedAt   time.Time

	cancelled bool
}

// Config holds queue tuning parameters.
type Config struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	VisibilityTimeout time.Duration
}

// Stats is a point-in-time snapshot for the health endpoint.
type Stats struct {
	Queued       int `json:"queued"`
	Running      int `json:"running"`
	Failed       int `json:"failed"`
	Succeeded    int `json:"succeeded"`
	DeadLetter   int `json:"dead_letter"`
	ManualDepth  int `json:"manual_depth"`
	ScrapedDepth int `json:"scraped_depth"`
}

// Queue is a priority FIFO with leases. All state lives behind one mutex;
// workers share nothing except through Lease/Complete/Fail.
type Queue struct {
	mu         sync.Mutex
	jobs       map[string]*Job
	order      map[Priority][]string
	byIncident map[string]string // active job per incident

	cfg  Config
	wake chan struct{}

	// onDeadLetter fires after a job exhausts its retry budget, outside
	// the queue lock. Used to flag the incident and notify operators.
	onDeadLetter func(job Job)
}

// New creates a queue with the given configuration.
func New(cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 5 * time.Minute
	}
	return &Queue{
		jobs:       make(map[string]*Job),
		order:      map[Priority][]string{PriorityManual: {}, PriorityScraped: {}},
		byIncident: make(map[string]string),
		cfg:        cfg,
		wake:       make(chan struct{}, 1),
	}
}

// SetDeadLetterHandler registers the dead-letter callback.
func (q *Queue) SetDeadLetterHandler(fn func(job Job)) {
	q.mu.Lock()
	q.onDeadLetter = fn
	q.mu.Unlock()
}

// Wake returns a channel that receives a signal whenever work may be ready.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Enqueue schedules analysis for an incident. If an active (non-terminal)
// job already exists for the incident, its ID is returned unchanged so
// duplicate submissions cannot fan out extra work.
func (q *Queue) Enqueue(incidentUUID string, priority Priority) string {
	q.mu.Lock()
	if id, ok := q.byIncident[incidentUUID]; ok {
		if j, exists := q.jobs[id]; exists && !terminal(j.State) {
			q.mu.Unlock()
			return id
		}
	}

	job := &Job{
		ID:           uuid.NewString(),
		IncidentUUID: incidentUUID,
		Priority:     priority,
		State:        StateQueued,
		EnqueuedAt:   time.Now(),
	}
	q.jobs[job.ID] = job
	q.order[priority] = append(q.order[priority], job.ID)
	q.byIncident[incidentUUID] = job.ID
	q.mu.Unlock()

	q.signal()
	return job.ID
}

// Lease hands out the next ready job, highest priority first, FIFO within
// a priority. The caller holds an exclusive lease until Complete/Fail or
// the visibility timeout. Returns nil when nothing is ready.
func (q *Queue) Lease() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for _, p := range priorities {
		ids := q.order[p]
		for i, id := range ids {
			job, ok := q.jobs[id]
			if !ok {
				continue
			}
			if job.State != StateQueued && job.State != StateFailed {
				continue
			}
			if job.NotBefore.After(now) {
				continue
			}
			q.order[p] = append(ids[:i:i], ids[i+1:]...)
			job.State = StateRunning
			job.Attempts++
			job.LeaseExpiry = now.Add(q.cfg.VisibilityTimeout)
			snapshot := *job
			return &snapshot
		}
	}
	return nil
}

// Complete marks a leased job as succeeded.
func (q *Queue) Complete(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok || job.State != StateRunning {
		return
	}
	job.State = StateSucceeded
	job.FinishedAt = time.Now()
}

// Fail records a failed attempt. Transient failures are retried with
// exponential backoff until MaxAttempts; anything beyond that, and all
// permanent failures, dead-letter the job.
func (q *Queue) Fail(jobID string, cause error, transient bool) {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if !ok || job.State != StateRunning {
		q.mu.Unlock()
		return
	}
	if cause != nil {
		job.LastError = cause.Error()
	}

	if transient && job.Attempts < q.cfg.MaxAttempts {
		backoff := q.cfg.BackoffBase << (job.Attempts - 1)
		job.State = StateFailed
		job.NotBefore = time.Now().Add(backoff)
		q.order[job.Priority] = append(q.order[job.Priority], job.ID)
		q.mu.Unlock()
		q.signal()
		return
	}

	job.State = StateDeadLetter
	job.FinishedAt = time.Now()
	snapshot := *job
	handler := q.onDeadLetter
	q.mu.Unlock()

	log.Printf("Job %s for incident %s dead-lettered after %d attempts: %s",
		snapshot.ID, snapshot.IncidentUUID, snapshot.Attempts, snapshot.LastError)
	if handler != nil {
		handler(snapshot)
	}
}

// Cancel flags the active job for an incident so the worker aborts at the
// next stage boundary. Partial results already persisted are retained.
func (q *Queue) Cancel(incidentUUID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, ok := q.byIncident[incidentUUID]
	if !ok {
		return false
	}
	job, ok := q.jobs[id]
	if !ok || terminal(job.State) {
		return false
	}
	job.cancelled = true
	return true
}

// Cancelled reports whether a job has been flagged for cancellation.
func (q *Queue) Cancelled(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	return ok && job.cancelled
}

// RequeueExpired returns running jobs whose lease lapsed to the queue.
// This is what makes delivery at-least-once when a worker dies mid-job.
func (q *Queue) RequeueExpired(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	requeued := 0
	for _, job := range q.jobs {
		if job.State != StateRunning || job.LeaseExpiry.After(now) {
			continue
		}
		job.State = StateQueued
		job.NotBefore = time.Time{}
		job.LeaseExpiry = time.Time{}
		q.order[job.Priority] = append(q.order[job.Priority], job.ID)
		requeued++
	}
	if requeued > 0 {
		q.signal()
	}
	return requeued
}

// GC removes terminal jobs that finished before cutoff.
func (q *Queue) GC(cutoff time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, job := range q.jobs {
		if !terminal(job.State) || job.FinishedAt.After(cutoff) {
			continue
		}
		delete(q.jobs, id)
		if q.byIncident[job.IncidentUUID] == id {
			delete(q.byIncident, job.IncidentUUID)
		}
		removed++
	}
	return removed
}

// Snapshot returns a copy of a job for inspection.
func (q *Queue) Snapshot(jobID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// ListDeadLetters returns copies of all dead-lettered jobs.
func (q *Queue) ListDeadLetters() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Job
	for _, job := range q.jobs {
		if job.State == StateDeadLetter {
			out = append(out, *job)
		}
	}
	return out
}

// Stats returns queue depth and state counts.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Stats
	for _, job := range q.jobs {
		switch job.State {
		case StateQueued:
			s.Queued++
		case StateRunning:
			s.Running++
		case StateFailed:
			s.Failed++
		case StateSucceeded:
			s.Succeeded++
		case StateDeadLetter:
			s.DeadLetter++
		}
	}
	s.ManualDepth = len(q.order[PriorityManual])
	s.ScrapedDepth = len(q.order[PriorityScraped])
	return s
}

func terminal(s State) bool {
	return s == StateSucceeded || s == StateDeadLetter
}
