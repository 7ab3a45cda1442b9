// Package scheduler runs transfer jobs on a fixed pool of worker goroutines.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/metrics"
)

// ErrClosed is returned for jobs submitted after Close
var ErrClosed = errors.New("scheduler closed")

// Job is a unit of work producing one outcome
type Job func(ctx context.Context) domain.Outcome

// Config contains scheduler configuration
type Config struct {
	Workers   int
	QueueSize int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{}
}

// DefaultWorkers returns the pool size used when none is configured
func DefaultWorkers() int {
	return max(4, 2*runtime.GOMAXPROCS(0))
}

// Scheduler executes submitted jobs on a bounded worker pool
type Scheduler struct {
	config  *Config
	queue   chan *Task
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Scheduler and starts its workers
func New(cfg *Config, logger *zap.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		config: cfg,
		queue:  make(chan *Task, cfg.QueueSize),
		logger: logger,
	}

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	logger.Debug("scheduler started", zap.Int("workers", cfg.Workers))
	return s
}

// SetMetrics reports queue depth to m
func (s *Scheduler) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Workers returns the size of the worker pool
func (s *Scheduler) Workers() int {
	return s.config.Workers
}

// Submit queues job and returns a handle to its outcome. If ctx ends before
// a worker picks the job up, the task completes as Cancelled without
// running it.
func (s *Scheduler) Submit(ctx context.Context, job Job) *Task {
	t := newTask(ctx, job)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		t.complete(domain.FailureOutcome(ErrClosed, 0))
		return t
	}

	select {
	case s.queue <- t:
		s.metrics.SetQueueDepth(len(s.queue))
	case <-ctx.Done():
		t.complete(domain.Outcome{
			Kind: domain.OutcomeCancelled,
			Err:  fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err()),
		})
	}
	return t
}

// Run submits job and waits for its outcome
func (s *Scheduler) Run(ctx context.Context, job Job) domain.Outcome {
	return s.Submit(ctx, job).Wait()
}

// Close stops accepting jobs, drains the queue and waits for the workers
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("scheduler stopped")
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for t := range s.queue {
		s.metrics.SetQueueDepth(len(s.queue))
		t.complete(s.execute(id, t))
	}
}

// execute runs one task, turning a panic into an Unknown outcome
func (s *Scheduler) execute(workerID int, t *Task) (outcome domain.Outcome) {
	if err := t.ctx.Err(); err != nil {
		return domain.Outcome{
			Kind: domain.OutcomeCancelled,
			Err:  fmt.Errorf("%w: %v", domain.ErrCancelled, err),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("transfer job panicked",
				zap.Int("worker", workerID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			outcome = domain.Outcome{
				Kind: domain.OutcomeUnknown,
				Err:  fmt.Errorf("job panicked: %v", r),
			}
		}
	}()

	return t.job(t.ctx)
}
