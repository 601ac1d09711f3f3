// Package worker contiene el empaquetador de builds subidos por los admins.
package worker

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

// CatalogUpdater is the slice of the store the worker needs.
type CatalogUpdater interface {
	SetPayload(gameID int, path string, sizeBytes int64, sha256Hex string) error
}

// Config holds worker configuration
type Config struct {
	PayloadDir string // destination directory for packaged ZIPs
	QueueSize  int
}

// PackageJob represents a staged build waiting to be packaged.
type PackageJob struct {
	ID           string    `json:"id"`
	GameID       int       `json:"gameId"`
	StagedPath   string    `json:"-"` // uploaded file on disk, removed after processing
	OriginalName string    `json:"originalName"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// Worker consumes package jobs from the queue, produces the final ZIP, and
// records the payload on the catalog.
type Worker struct {
	jobQueue      chan *PackageJob
	catalog       CatalogUpdater
	config        Config
	tracker       *Tracker
	stopChan      chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	isRunning     bool
	jobsProcessed int64
	jobsFailed    int64
	lastJobTime   time.Time
}

// NewWorker creates a packaging worker with its own job queue.
func NewWorker(catalog CatalogUpdater, config Config) *Worker {
	if config.QueueSize <= 0 {
		config.QueueSize = 20
	}
	return &Worker{
		jobQueue: make(chan *PackageJob, config.QueueSize),
		catalog:  catalog,
		config:   config,
		tracker:  NewTracker(),
		stopChan: make(chan struct{}),
	}
}

// Tracker exposes job status lookups for the admin API.
func (w *Worker) Tracker() *Tracker {
	return w.tracker
}

// QueueStatus returns current and max queue size.
func (w *Worker) QueueStatus() (current, capacity int) {
	return len(w.jobQueue), cap(w.jobQueue)
}

// Enqueue registers the job as queued and offers it to the queue without
// blocking. A full queue fails the job immediately.
func (w *Worker) Enqueue(job *PackageJob) error {
	job.ReceivedAt = time.Now().UTC()
	w.tracker.setQueued(job)
	select {
	case w.jobQueue <- job:
		current, capacity := w.QueueStatus()
		log.Printf("[QUEUE] 📥 Package job queued: %s game=%d (queue: %d/%d)", job.ID, job.GameID, current, capacity)
		return nil
	default:
		w.tracker.setFailed(job.ID, "packaging queue full")
		_ = os.Remove(job.StagedPath)
		return fmt.Errorf("packaging queue full")
	}
}

// Start begins the worker goroutine
func (w *Worker) Start() {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run()

	log.Println("[WORKER] ✅ Package worker started and ready")
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Printf("[WORKER] 🛑 Package worker stopped (processed: %d, failed: %d)", w.jobsProcessed, w.jobsFailed)
}

// run is the main worker loop
func (w *Worker) run() {
	defer w.wg.Done()

	log.Println("[WORKER] 👂 Waiting for package jobs...")

	for {
		select {
		case <-w.stopChan:
			log.Println("[WORKER] 📴 Received stop signal")
			return

		case job, ok := <-w.jobQueue:
			if !ok {
				log.Println("[WORKER] 📴 Job channel closed, exiting")
				return
			}
			w.processJob(job)
		}
	}
}

// processJob handles a single package job
func (w *Worker) processJob(job *PackageJob) {
	startTime := time.Now()
	log.Printf("[WORKER] 🔄 Packaging job: %s game=%d", job.ID, job.GameID)
	w.tracker.setRunning(job.ID)

	err := w.executePackage(job)

	duration := time.Since(startTime)

	w.mu.Lock()
	w.lastJobTime = time.Now()
	if err != nil {
		w.jobsFailed++
	} else {
		w.jobsProcessed++
	}
	w.mu.Unlock()

	if err != nil {
		log.Printf("[WORKER] ❌ Job %s FAILED after %v: %v", job.ID, duration, err)
		w.tracker.setFailed(job.ID, err.Error())
	} else {
		log.Printf("[WORKER] ✅ Job %s packaged in %v", job.ID, duration)
		w.tracker.setDone(job.ID, fmt.Sprintf("packaged in %v", duration.Round(time.Millisecond)))
	}
}

// executePackage produces the ZIP, hashes it, and updates the catalog.
func (w *Worker) executePackage(job *PackageJob) (err error) {
	// Capture panics and convert them into job failures.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered in executePackage: %v", r)
			log.Printf("[WORKER] 💥 Panic in job %s: %v\nStack: %s", job.ID, r, debug.Stack())
		}
	}()
	defer func() {
		if rmErr := os.Remove(job.StagedPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("[WORKER] ⚠️ Could not remove staged upload %s: %v", job.StagedPath, rmErr)
		}
	}()

	if err := os.MkdirAll(w.config.PayloadDir, 0o750); err != nil {
		return fmt.Errorf("ensure payload dir: %w", err)
	}

	dest := w.payloadPath(job.GameID)
	if err := buildPayload(job.StagedPath, job.OriginalName, dest); err != nil {
		return err
	}

	size, sum, err := fileSizeAndSHA256(dest)
	if err != nil {
		return fmt.Errorf("hash payload: %w", err)
	}

	if err := w.catalog.SetPayload(job.GameID, dest, size, sum); err != nil {
		return fmt.Errorf("record payload: %w", err)
	}
	return nil
}

func (w *Worker) payloadPath(gameID int) string {
	return fmt.Sprintf("%s%cgame_%d.zip", w.config.PayloadDir, os.PathSeparator, gameID)
}

// Stats returns current worker statistics
func (w *Worker) Stats() Statistics {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Statistics{
		IsRunning:     w.isRunning,
		JobsProcessed: w.jobsProcessed,
		JobsFailed:    w.jobsFailed,
		LastJobTime:   w.lastJobTime,
	}
}

// Statistics holds worker runtime statistics
type Statistics struct {
	IsRunning     bool      `json:"is_running"`
	JobsProcessed int64     `json:"jobs_processed"`
	JobsFailed    int64     `json:"jobs_failed"`
	LastJobTime   time.Time `json:"last_job_time,omitempty"`
}
