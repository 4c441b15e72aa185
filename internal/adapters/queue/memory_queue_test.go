package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/tomsync/shopee-collector/internal/domain/queue"
)

func newTestQueue(t *testing.T) *MemoryQueue {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	q := NewMemoryQueue("test", log, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})
	return q
}

func waitFor(t *testing.T, ch <-chan domain.Event) domain.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for queue event")
		return domain.Event{}
	}
}

func TestMemoryQueue_ProcessesJob(t *testing.T) {
	q := newTestQueue(t)

	done := make(chan domain.Event, 1)
	q.Subscribe(func(ev domain.Event) { done <- ev })

	var payload struct {
		Value string `json:"value"`
	}
	q.Process("work", 1, func(ctx context.Context, job *domain.Job) error {
		return json.Unmarshal(job.Payload, &payload)
	})
	require.NoError(t, q.Start(context.Background()))

	id, err := q.Enqueue(context.Background(), "work", map[string]string{"value": "hello"}, nil)
	require.NoError(t, err)

	ev := waitFor(t, done)
	assert.Equal(t, domain.EventCompleted, ev.Type)
	assert.Equal(t, id, ev.JobID)
	assert.Equal(t, "hello", payload.Value)
}

func TestMemoryQueue_RetriesThenFails(t *testing.T) {
	q := newTestQueue(t)

	events := make(chan domain.Event, 4)
	q.Subscribe(func(ev domain.Event) { events <- ev })

	attempts := 0
	var mu sync.Mutex
	q.Process("flaky", 1, func(ctx context.Context, job *domain.Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("boom")
	})
	require.NoError(t, q.Start(context.Background()))

	_, err := q.Enqueue(context.Background(), "flaky", nil, &domain.Options{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	})
	require.NoError(t, err)

	ev := waitFor(t, events)
	assert.Equal(t, domain.EventFailed, ev.Type)
	require.Error(t, ev.Err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestMemoryQueue_DedupWhilePending(t *testing.T) {
	q := newTestQueue(t)

	id1, err := q.Enqueue(context.Background(), "work", nil, &domain.Options{DedupKey: "shop-1"})
	require.NoError(t, err)
	id2, err := q.Enqueue(context.Background(), "work", nil, &domain.Options{DedupKey: "shop-1"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	depths, err := q.Depths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), depths.Waiting)
}

func TestMemoryQueue_DedupReleasedAfterCompletion(t *testing.T) {
	q := newTestQueue(t)

	done := make(chan domain.Event, 2)
	q.Subscribe(func(ev domain.Event) { done <- ev })
	q.Process("work", 1, func(ctx context.Context, job *domain.Job) error { return nil })
	require.NoError(t, q.Start(context.Background()))

	id1, err := q.Enqueue(context.Background(), "work", nil, &domain.Options{DedupKey: "shop-1"})
	require.NoError(t, err)
	waitFor(t, done)

	id2, err := q.Enqueue(context.Background(), "work", nil, &domain.Options{DedupKey: "shop-1"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	waitFor(t, done)
}

func TestMemoryQueue_PriorityOrdersReadyJobs(t *testing.T) {
	q := newTestQueue(t)

	var mu sync.Mutex
	var processed []string
	done := make(chan domain.Event, 2)
	q.Subscribe(func(ev domain.Event) { done <- ev })
	q.Process("work", 1, func(ctx context.Context, job *domain.Job) error {
		mu.Lock()
		processed = append(processed, job.ID)
		mu.Unlock()
		return nil
	})

	scheduled, err := q.Enqueue(context.Background(), "work", nil, &domain.Options{Priority: 5})
	require.NoError(t, err)
	manual, err := q.Enqueue(context.Background(), "work", nil, &domain.Options{Priority: 0})
	require.NoError(t, err)

	require.NoError(t, q.Start(context.Background()))
	waitFor(t, done)
	waitFor(t, done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, processed, 2)
	assert.Equal(t, manual, processed[0])
	assert.Equal(t, scheduled, processed[1])
}

func TestMemoryQueue_DelayedJobWaits(t *testing.T) {
	q := newTestQueue(t)

	done := make(chan domain.Event, 1)
	q.Subscribe(func(ev domain.Event) { done <- ev })
	q.Process("work", 1, func(ctx context.Context, job *domain.Job) error { return nil })
	require.NoError(t, q.Start(context.Background()))

	start := time.Now()
	_, err := q.Enqueue(context.Background(), "work", nil, &domain.Options{Delay: 200 * time.Millisecond})
	require.NoError(t, err)

	waitFor(t, done)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
