package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Round lifecycle job types.
const (
	TypeRoundClose  = "round.close"
	TypeRoundReopen = "round.reopen"
)

// Job is one unit of round-lifecycle work. Settlement and reopening run
// through the same queue so a round is never closed and reopened
// concurrently.
type Job struct {
	ID       string
	Type     string
	RoundID  string
	Attempt  int
	Enqueued time.Time
}

// NewRoundJob builds a job targeting a round.
func NewRoundJob(jobType, roundID string) Job {
	return Job{
		ID:       uuid.NewString(),
		Type:     jobType,
		RoundID:  roundID,
		Enqueued: time.Now().UTC(),
	}
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig tunes the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches round-lifecycle jobs to a fixed worker pool. Failed jobs
// are requeued with a delay until MaxRetries is exhausted.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	pending chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		pending:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.started = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.drain()
	}
	q.logger.Info("job queue started",
		zap.String("queue", q.name), zap.Int("workers", q.workers))
}

// Stop cancels the workers and blocks until they exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("job queue stopped", zap.String("queue", q.name))
}

// Enqueue submits a job. It blocks while the buffer is full and fails once
// the queue has been stopped.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.pending <- job:
		return nil
	}
}

func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.pending:
			if err := q.handler(q.ctx, job); err != nil {
				q.retry(job, err)
			}
		}
	}
}

func (q *Queue) retry(job Job, cause error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Error("job exceeded retries",
			zap.String("queue", q.name), zap.String("job_id", job.ID),
			zap.String("type", job.Type), zap.String("round_id", job.RoundID),
			zap.Error(cause))
		return
	}
	q.logger.Warn("job failed, retrying",
		zap.String("queue", q.name), zap.String("job_id", job.ID),
		zap.String("type", job.Type), zap.Int("attempt", job.Attempt),
		zap.Error(cause))

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Error("failed to requeue job",
					zap.String("queue", q.name), zap.String("job_id", j.ID),
					zap.Error(err))
			}
		}
	}(job)
}
