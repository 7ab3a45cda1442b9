package scheduler

import (
	"context"

	"github.com/vertextoedge/planetdl/internal/domain"
)

// Task is the pending outcome of a submitted job
type Task struct {
	ctx     context.Context
	job     Job
	done    chan struct{}
	outcome domain.Outcome
}

func newTask(ctx context.Context, job Job) *Task {
	return &Task{
		ctx:  ctx,
		job:  job,
		done: make(chan struct{}),
	}
}

func (t *Task) complete(o domain.Outcome) {
	t.outcome = o
	close(t.done)
}

// Done is closed once the outcome is available
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the job has finished and returns its outcome
func (t *Task) Wait() domain.Outcome {
	<-t.done
	return t.outcome
}
