package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domain "github.com/tomsync/shopee-collector/internal/domain/queue"
	"github.com/tomsync/shopee-collector/internal/domain/shared"
)

// MemoryQueue is the in-process queue used when clustering is disabled.
// Same semantics as the Redis queue (priority, delay, dedup, retry with
// backoff) without durability.
type MemoryQueue struct {
	name  string
	clock shared.Clock
	log   *logrus.Entry

	mu          sync.Mutex
	ready       []*memJob
	delayed     []*memJob
	active      int64
	completed   int64
	failed      int64
	dedup       map[string]string
	handlers    map[string]domain.Handler
	concurrency map[string]int
	subscribers []func(domain.Event)
	started     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type memJob struct {
	job     *domain.Job
	score   float64
	readyAt time.Time
}

// NewMemoryQueue creates an in-process queue
func NewMemoryQueue(name string, log *logrus.Logger, clock shared.Clock) *MemoryQueue {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if log == nil {
		log = logrus.New()
	}
	return &MemoryQueue{
		name:        name,
		clock:       clock,
		log:         log.WithField("queue", name),
		dedup:       make(map[string]string),
		handlers:    make(map[string]domain.Handler),
		concurrency: make(map[string]int),
	}
}

// Name returns the logical queue name
func (q *MemoryQueue) Name() string { return q.name }

// Enqueue adds a job; a non-empty dedup key drops the enqueue while a
// same-key job is still pending.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobName string, payload any, opts *domain.Options) (string, error) {
	if opts == nil {
		opts = &domain.Options{}
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = domain.DefaultBackoffBase
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		Name:        jobName,
		Payload:     raw,
		Priority:    opts.Priority,
		MaxAttempts: maxAttempts,
		BackoffBase: backoffBase,
		DedupKey:    opts.DedupKey,
		EnqueuedAt:  q.clock.Now().UTC(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if job.DedupKey != "" {
		if existing, ok := q.dedup[job.DedupKey]; ok {
			return existing, nil
		}
		q.dedup[job.DedupKey] = job.ID
	}

	now := q.clock.Now()
	entry := &memJob{
		job:   job,
		score: float64(job.Priority)*1e12 + float64(now.UnixMilli()),
	}
	if opts.Delay > 0 {
		entry.readyAt = now.Add(opts.Delay)
		q.delayed = append(q.delayed, entry)
	} else {
		q.pushReady(entry)
	}

	return job.ID, nil
}

// pushReady inserts maintaining score order; callers hold the lock
func (q *MemoryQueue) pushReady(entry *memJob) {
	i := sort.Search(len(q.ready), func(i int) bool { return q.ready[i].score > entry.score })
	q.ready = append(q.ready, nil)
	copy(q.ready[i+1:], q.ready[i:])
	q.ready[i] = entry
}

// Process registers the handler for a job name
func (q *MemoryQueue) Process(jobName string, concurrency int, h domain.Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobName] = h
	q.concurrency[jobName] = concurrency
}

// Subscribe registers an event listener
func (q *MemoryQueue) Subscribe(fn func(domain.Event)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribers = append(q.subscribers, fn)
}

func (q *MemoryQueue) emit(ev domain.Event) {
	q.mu.Lock()
	subs := make([]func(domain.Event), len(q.subscribers))
	copy(subs, q.subscribers)
	q.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Depths reports the current queue census
func (q *MemoryQueue) Depths(ctx context.Context) (*domain.Depths, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return &domain.Depths{
		Waiting:   int64(len(q.ready)),
		Delayed:   int64(len(q.delayed)),
		Active:    q.active,
		Completed: q.completed,
		Failed:    q.failed,
	}, nil
}

// Start launches consumer loops; returns immediately
func (q *MemoryQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s already started", q.name)
	}
	q.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	total := 0
	for _, c := range q.concurrency {
		total += c
	}
	q.mu.Unlock()

	if total == 0 {
		total = 1
	}
	for i := 0; i < total; i++ {
		q.wg.Add(1)
		go q.consumeLoop(runCtx)
	}
	return nil
}

func (q *MemoryQueue) consumeLoop(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job := q.pop()
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		q.run(ctx, job)
	}
}

func (q *MemoryQueue) pop() *domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	remaining := q.delayed[:0]
	for _, entry := range q.delayed {
		if !entry.readyAt.After(now) {
			q.pushReady(entry)
		} else {
			remaining = append(remaining, entry)
		}
	}
	q.delayed = remaining

	if len(q.ready) == 0 {
		return nil
	}
	entry := q.ready[0]
	q.ready = q.ready[1:]
	q.active++
	return entry.job
}

func (q *MemoryQueue) run(ctx context.Context, job *domain.Job) {
	q.mu.Lock()
	h := q.handlers[job.Name]
	q.mu.Unlock()

	if h == nil {
		q.finish(job, fmt.Errorf("no handler for job %s", job.Name))
		return
	}

	job.Attempts++
	err := h(ctx, job)
	if err == nil {
		q.finish(job, nil)
		return
	}

	if job.Attempts < job.MaxAttempts {
		job.LastError = err.Error()
		delay := domain.Backoff(job.BackoffBase, job.Attempts)
		q.mu.Lock()
		q.active--
		q.delayed = append(q.delayed, &memJob{
			job:     job,
			score:   float64(job.Priority)*1e12 + float64(q.clock.Now().UnixMilli()),
			readyAt: q.clock.Now().Add(delay),
		})
		q.mu.Unlock()
		q.log.WithFields(logrus.Fields{
			"job":     job.Name,
			"attempt": job.Attempts,
			"delay":   delay.String(),
			"error":   err,
		}).Warn("Job failed, retrying")
		return
	}

	q.finish(job, err)
}

func (q *MemoryQueue) finish(job *domain.Job, jobErr error) {
	q.mu.Lock()
	q.active--
	if job.DedupKey != "" {
		delete(q.dedup, job.DedupKey)
	}
	if jobErr != nil {
		job.LastError = jobErr.Error()
		q.failed++
	} else {
		q.completed++
	}
	q.mu.Unlock()

	if jobErr != nil {
		q.log.WithFields(logrus.Fields{"job": job.Name, "job_id": job.ID, "error": jobErr}).
			Error("Job failed permanently")
		q.emit(domain.Event{Type: domain.EventFailed, JobID: job.ID, JobName: job.Name, Err: jobErr})
		return
	}
	q.emit(domain.Event{Type: domain.EventCompleted, JobID: job.ID, JobName: job.Name})
}

// Close drains consumers and waits up to the context deadline
func (q *MemoryQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
