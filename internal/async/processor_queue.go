package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/orderproof/internal/common"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = common.InputError("QUEUE_CLOSED", "queue is shutting down")

// ProcessorQueue runs jobs on a fixed set of workers and reports every
// outcome to the result callback.
type ProcessorQueue struct {
	handler  Handler
	onResult func(Outcome)
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	base     context.Context

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

var _ Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultHandler sets the callback invoked once per finished job. It may
// be called from several workers at once.
func WithResultHandler(fn func(Outcome)) Option {
	return func(q *ProcessorQueue) {
		if fn != nil {
			q.onResult = fn
		}
	}
}

// WithBaseContext makes per-job contexts children of ctx, so cancelling it
// aborts in-flight work.
func WithBaseContext(ctx context.Context) Option {
	return func(q *ProcessorQueue) {
		if ctx != nil {
			q.base = ctx
		}
	}
}

func NewProcessorQueue(handler Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handler:  handler,
		onResult: func(Outcome) {},
		logger:   logger,
		workers:  2,
		timeout:  2 * time.Minute,
		base:     context.Background(),
		ch:       make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.start", "worker_id", workerID)
				for job := range q.ch {
					q.onResult(q.run(workerID, job))
				}
				q.logger.Debug("queue.worker.stop", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) Outcome {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	start := time.Now()
	res, err := q.handler(ctx, job)
	out := Outcome{Job: job, Result: res, Err: err, Elapsed: time.Since(start)}
	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "path", job.Path, "req_id", job.TraceID, "error", err)
	} else {
		q.logger.Info("queue.job.done", "worker_id", workerID, "path", job.Path, "req_id", job.TraceID,
			"confidence", res.Confidence, "elapsed_ms", out.Elapsed.Milliseconds())
	}
	return out
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Debug("queue.full", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for
// ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
