package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundJobCarriesRound(t *testing.T) {
	job := NewRoundJob(TypeRoundClose, "round-1")
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, TypeRoundClose, job.Type)
	assert.Equal(t, "round-1", job.RoundID)
	assert.False(t, job.Enqueued.IsZero())
}

func TestQueueProcessesRoundJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})

	queue := NewQueue("round-lifecycle", func(_ context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.Type+":"+job.RoundID)
		mu.Unlock()
		if len(seen) == 2 {
			close(done)
		}
		return nil
	}, QueueConfig{Workers: 1})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(NewRoundJob(TypeRoundClose, "round-1")))
	require.NoError(t, queue.Enqueue(NewRoundJob(TypeRoundReopen, "round-1")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs not processed in time")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"round.close:round-1", "round.reopen:round-1"}, seen)
}

func TestQueueRetriesFailedJob(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	queue := NewQueue("round-lifecycle", func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("settlement deadlock")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 10 * time.Millisecond})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(NewRoundJob(TypeRoundClose, "round-1")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	queue := NewQueue("round-lifecycle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := queue.Enqueue(NewRoundJob(TypeRoundClose, "round-1"))
	require.Error(t, err)
}
