package jobs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/contracts-extractor/internal/pipeline"
)

// DocumentProcessor is what the queue drives. *pipeline.Processor implements it.
type DocumentProcessor interface {
	Process(ctx context.Context, up pipeline.Upload, opts pipeline.Options) (*pipeline.Outcome, error)
}

// Job is one file to extract.
type Job struct {
	Path        string
	Options     pipeline.Options
	SubmittedAt time.Time
}

// ResultHandler receives every finished job. It is called from worker goroutines.
type ResultHandler func(job Job, out *pipeline.Outcome, err error)

// Queue is a bounded worker pool over a DocumentProcessor. The default of a
// single worker keeps documents sequential.
type Queue struct {
	proc    DocumentProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	handle  ResultHandler

	ch      chan Job
	wg      sync.WaitGroup
	once    sync.Once
	quit    chan struct{} // closed when Shutdown begins
	senders sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithResultHandler(h ResultHandler) Option {
	return func(q *Queue) { q.handle = h }
}

func NewQueue(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		proc:    proc,
		logger:  logger,
		workers: 1,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 64),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)
				for job := range q.ch {
					out, err := q.run(job)
					if err != nil {
						q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "error", err)
					} else {
						q.logger.Info("processed file", "worker_id", workerID, "path", job.Path, "status", out.Status)
					}
					if q.handle != nil {
						q.handle(job, out, err)
					}
				}
				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) run(job Job) (*pipeline.Outcome, error) {
	data, err := os.ReadFile(job.Path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	return q.proc.Process(ctx, pipeline.Upload{Filename: filepath.Base(job.Path), Data: data}, job.Options)
}

// Enqueue blocks while the queue is full. It returns false once Shutdown has
// begun or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, job Job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return false
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued file for processing", "path", job.Path)
		return true
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return true
	case <-q.quit:
		q.logger.Warn("enqueue abandoned: queue is shutting down", "path", job.Path)
		return false
	case <-ctx.Done():
		return false
	}
}

// Shutdown stops accepting jobs and waits for the workers to drain.
// Callers blocked in Enqueue are released first.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	// no sender can reach q.ch after this
	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
