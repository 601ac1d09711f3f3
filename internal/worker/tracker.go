package worker

import (
	"sync"
	"time"
)

// Job states reported by the tracker.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// JobStatus is the externally visible state of one package job.
type JobStatus struct {
	ID         string    `json:"id"`
	GameID     int       `json:"gameId"`
	State      string    `json:"state"`
	Message    string    `json:"message,omitempty"`
	QueuedAt   time.Time `json:"queuedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Tracker keeps the status of every package job of this process lifetime.
// Bounded by upload count, which is operator-driven and small.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]JobStatus
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]JobStatus)}
}

// Get returns the status for a job id.
func (t *Tracker) Get(id string) (JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.jobs[id]
	return s, ok
}

func (t *Tracker) setQueued(job *PackageJob) {
	t.mu.Lock()
	t.jobs[job.ID] = JobStatus{
		ID:       job.ID,
		GameID:   job.GameID,
		State:    StateQueued,
		QueuedAt: time.Now(),
	}
	t.mu.Unlock()
}

func (t *Tracker) setRunning(id string) {
	t.update(id, func(s *JobStatus) {
		s.State = StateRunning
	})
}

func (t *Tracker) setDone(id, message string) {
	t.update(id, func(s *JobStatus) {
		s.State = StateDone
		s.Message = message
		s.FinishedAt = time.Now()
	})
}

func (t *Tracker) setFailed(id, message string) {
	t.update(id, func(s *JobStatus) {
		s.State = StateFailed
		s.Message = message
		s.FinishedAt = time.Now()
	})
}

func (t *Tracker) update(id string, fn func(*JobStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.jobs[id]
	if !ok {
		s = JobStatus{ID: id, State: StateQueued, QueuedAt: time.Now()}
	}
	fn(&s)
	t.jobs[id] = s
}
