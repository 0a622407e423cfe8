package jobs

import (
	"log"
	"time"

	"github.com/roadwatch/roadwatch/internal/queue"
)

// QueueJanitor reclaims jobs whose lease expired without the worker
// reporting back and garbage-collects terminal jobs past retention.
type QueueJanitor struct {
	jobs      *queue.Queue
	retention time.Duration
}

// NewQueueJanitor creates a new queue janitor.
func NewQueueJanitor(jobs *queue.Queue, retention time.Duration) *QueueJanitor {
	return &QueueJanitor{jobs: jobs, retention: retention}
}

// Run performs one housekeeping pass.
func (j *QueueJanitor) Run() {
	now := time.Now()

	if n := j.jobs.RequeueExpired(now); n > 0 {
		log.Printf("Queue janitor: requeued %d expired leases", n)
	}
	if n := j.jobs.GC(now.Add(-j.retention)); n > 0 {
		log.Printf("Queue janitor: removed %d terminal jobs", n)
	}
}

// Start begins periodic housekeeping.
func (j *QueueJanitor) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Run()
		case <-stop:
			log.Println("Queue janitor stopped")
			return
		}
	}
}
