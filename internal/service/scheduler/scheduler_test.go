package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/metrics"
)

func TestNew_DefaultWorkers(t *testing.T) {
	s := New(nil, nil)
	defer s.Close()

	assert.Equal(t, DefaultWorkers(), s.Workers())
	assert.GreaterOrEqual(t, s.Workers(), 4)
}

func TestScheduler_Run(t *testing.T) {
	s := New(&Config{Workers: 2}, nil)
	defer s.Close()

	outcome := s.Run(context.Background(), func(ctx context.Context) domain.Outcome {
		return domain.SuccessOutcome(42)
	})

	assert.True(t, outcome.OK())
	assert.Equal(t, uint64(42), outcome.BytesWritten)
}

func TestScheduler_PanicBecomesUnknown(t *testing.T) {
	s := New(&Config{Workers: 1}, nil)
	defer s.Close()

	outcome := s.Run(context.Background(), func(ctx context.Context) domain.Outcome {
		panic("boom")
	})
	assert.Equal(t, domain.OutcomeUnknown, outcome.Kind)
	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "boom")

	// The worker survives the panic
	outcome = s.Run(context.Background(), func(ctx context.Context) domain.Outcome {
		return domain.SuccessOutcome(1)
	})
	assert.True(t, outcome.OK())
}

func TestScheduler_Concurrency(t *testing.T) {
	const workers = 3
	s := New(&Config{Workers: workers}, nil)
	defer s.Close()

	var running, peak atomic.Int32
	release := make(chan struct{})

	job := func(ctx context.Context) domain.Outcome {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return domain.SuccessOutcome(0)
	}

	tasks := make([]*Task, 10)
	for i := range tasks {
		tasks[i] = s.Submit(context.Background(), job)
	}

	require.Eventually(t, func() bool { return running.Load() == workers }, time.Second, time.Millisecond)
	close(release)

	for _, task := range tasks {
		assert.True(t, task.Wait().OK())
	}
	assert.Equal(t, int32(workers), peak.Load())
}

func TestScheduler_CancelledBeforeStart(t *testing.T) {
	s := New(&Config{Workers: 1}, nil)
	defer s.Close()

	block := make(chan struct{})
	first := s.Submit(context.Background(), func(ctx context.Context) domain.Outcome {
		<-block
		return domain.SuccessOutcome(0)
	})

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	second := s.Submit(ctx, func(ctx context.Context) domain.Outcome {
		ran.Store(true)
		return domain.SuccessOutcome(0)
	})
	cancel()
	close(block)

	assert.True(t, first.Wait().OK())
	outcome := second.Wait()
	assert.Equal(t, domain.OutcomeCancelled, outcome.Kind)
	assert.True(t, errors.Is(outcome.Err, domain.ErrCancelled))
	assert.False(t, ran.Load())
}

func TestScheduler_Close(t *testing.T) {
	s := New(&Config{Workers: 2}, nil)

	var completed atomic.Int32
	tasks := make([]*Task, 5)
	for i := range tasks {
		tasks[i] = s.Submit(context.Background(), func(ctx context.Context) domain.Outcome {
			time.Sleep(5 * time.Millisecond)
			completed.Add(1)
			return domain.SuccessOutcome(0)
		})
	}

	s.Close()
	assert.Equal(t, int32(5), completed.Load(), "queued jobs drain on Close")

	outcome := s.Run(context.Background(), func(ctx context.Context) domain.Outcome {
		return domain.SuccessOutcome(0)
	})
	assert.Equal(t, domain.OutcomeUnknown, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrClosed)

	// Close is idempotent
	s.Close()
}

func TestScheduler_ConcurrentSubmitters(t *testing.T) {
	s := New(&Config{Workers: 4}, nil)
	s.SetMetrics(metrics.New())
	defer s.Close()

	var wg sync.WaitGroup
	results := make([]domain.Outcome, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Run(context.Background(), func(ctx context.Context) domain.Outcome {
				return domain.SuccessOutcome(uint64(i))
			})
		}(i)
	}
	wg.Wait()

	for i, o := range results {
		assert.True(t, o.OK())
		assert.Equal(t, uint64(i), o.BytesWritten)
	}
}
