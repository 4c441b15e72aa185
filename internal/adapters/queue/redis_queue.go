package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	domain "github.com/tomsync/shopee-collector/internal/domain/queue"
	"github.com/tomsync/shopee-collector/internal/domain/shared"
)

const (
	keyPrefix        = "collector:queue:"
	pollInterval     = 500 * time.Millisecond
	promoteInterval  = time.Second
	historyRetention = 999
)

// RedisQueue is a durable priority queue on Redis. Ready jobs live in a
// sorted set scored by (priority, enqueue time); delayed and retrying
// jobs wait in a second sorted set until their score passes.
type RedisQueue struct {
	name   string
	client *redis.Client
	clock  shared.Clock
	log    *logrus.Entry

	mu          sync.Mutex
	handlers    map[string]domain.Handler
	concurrency map[string]int
	subscribers []func(domain.Event)
	started     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisQueue creates a queue bound to one logical name
func NewRedisQueue(name string, client *redis.Client, log *logrus.Logger, clock shared.Clock) *RedisQueue {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if log == nil {
		log = logrus.New()
	}
	return &RedisQueue{
		name:        name,
		client:      client,
		clock:       clock,
		log:         log.WithField("queue", name),
		handlers:    make(map[string]domain.Handler),
		concurrency: make(map[string]int),
	}
}

// Name returns the logical queue name
func (q *RedisQueue) Name() string { return q.name }

func (q *RedisQueue) key(suffix string) string {
	return keyPrefix + q.name + ":" + suffix
}

func (q *RedisQueue) dedupKey(k string) string {
	return q.key("dedup:" + k)
}

// score orders ready jobs by priority first, enqueue time second
func (q *RedisQueue) score(priority int, at time.Time) float64 {
	return float64(priority)*1e12 + float64(at.UnixMilli())
}

// Enqueue adds a job; a non-empty dedup key drops the enqueue while a
// same-key job is still pending and returns the pending job's id.
func (q *RedisQueue) Enqueue(ctx context.Context, jobName string, payload any, opts *domain.Options) (string, error) {
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

	job := domain.Job{
		ID:          uuid.NewString(),
		Name:        jobName,
		Payload:     raw,
		Priority:    opts.Priority,
		MaxAttempts: maxAttempts,
		BackoffBase: backoffBase,
		DedupKey:    opts.DedupKey,
		EnqueuedAt:  q.clock.Now().UTC(),
	}

	if job.DedupKey != "" {
		ok, err := q.client.SetNX(ctx, q.dedupKey(job.DedupKey), job.ID, 0).Result()
		if err != nil {
			return "", shared.NewStorageError(err)
		}
		if !ok {
			existing, err := q.client.Get(ctx, q.dedupKey(job.DedupKey)).Result()
			if err != nil && err != redis.Nil {
				return "", shared.NewStorageError(err)
			}
			q.log.WithFields(logrus.Fields{"job": jobName, "dedup_key": job.DedupKey}).
				Debug("Enqueue deduplicated")
			return existing, nil
		}
	}

	if err := q.storeJob(ctx, &job); err != nil {
		return "", err
	}

	now := q.clock.Now()
	if opts.Delay > 0 {
		err = q.client.ZAdd(ctx, q.key("delayed"), redis.Z{
			Score:  float64(now.Add(opts.Delay).UnixMilli()),
			Member: job.ID,
		}).Err()
	} else {
		err = q.client.ZAdd(ctx, q.key("ready"), redis.Z{
			Score:  q.score(job.Priority, now),
			Member: job.ID,
		}).Err()
	}
	if err != nil {
		return "", shared.NewStorageError(err)
	}

	return job.ID, nil
}

func (q *RedisQueue) storeJob(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.HSet(ctx, q.key("jobs"), job.ID, data).Err(); err != nil {
		return shared.NewStorageError(err)
	}
	return nil
}

func (q *RedisQueue) loadJob(ctx context.Context, id string) (*domain.Job, error) {
	data, err := q.client.HGet(ctx, q.key("jobs"), id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, shared.NewStorageError(err)
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// Process registers the handler for a job name. Must be called before
// Start.
func (q *RedisQueue) Process(jobName string, concurrency int, h domain.Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobName] = h
	q.concurrency[jobName] = concurrency
}

// Subscribe registers an event listener
func (q *RedisQueue) Subscribe(fn func(domain.Event)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribers = append(q.subscribers, fn)
}

func (q *RedisQueue) emit(ev domain.Event) {
	q.mu.Lock()
	subs := make([]func(domain.Event), len(q.subscribers))
	copy(subs, q.subscribers)
	q.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Depths reports the current queue census
func (q *RedisQueue) Depths(ctx context.Context) (*domain.Depths, error) {
	pipe := q.client.Pipeline()
	ready := pipe.ZCard(ctx, q.key("ready"))
	delayed := pipe.ZCard(ctx, q.key("delayed"))
	active := pipe.SCard(ctx, q.key("active"))
	completed := pipe.LLen(ctx, q.key("completed"))
	failed := pipe.LLen(ctx, q.key("failed"))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, shared.NewStorageError(err)
	}
	return &domain.Depths{
		Waiting:   ready.Val(),
		Delayed:   delayed.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

// Start launches the promoter and consumer loops; returns immediately
func (q *RedisQueue) Start(ctx context.Context) error {
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

	if err := q.recoverStalled(ctx); err != nil {
		q.log.WithField("error", err).Warn("Stalled job recovery failed")
	}

	q.wg.Add(1)
	go q.promoteLoop(runCtx)

	if total == 0 {
		total = 1
	}
	for i := 0; i < total; i++ {
		q.wg.Add(1)
		go q.consumeLoop(runCtx)
	}

	q.log.WithField("consumers", total).Info("Queue started")
	return nil
}

// recoverStalled returns jobs left in the active set by a crashed
// consumer to the ready set.
func (q *RedisQueue) recoverStalled(ctx context.Context) error {
	ids, err := q.client.SMembers(ctx, q.key("active")).Result()
	if err != nil {
		return shared.NewStorageError(err)
	}
	for _, id := range ids {
		job, err := q.loadJob(ctx, id)
		if err != nil || job == nil {
			q.client.SRem(ctx, q.key("active"), id)
			continue
		}
		q.client.ZAdd(ctx, q.key("ready"), redis.Z{
			Score:  q.score(job.Priority, q.clock.Now()),
			Member: id,
		})
		q.client.SRem(ctx, q.key("active"), id)
		q.emit(domain.Event{Type: domain.EventStalled, JobID: id, JobName: job.Name})
	}
	return nil
}

// promoteLoop moves delayed jobs whose time has come into the ready set
func (q *RedisQueue) promoteLoop(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.promote(ctx)
		}
	}
}

func (q *RedisQueue) promote(ctx context.Context) {
	now := float64(q.clock.Now().UnixMilli())
	ids, err := q.client.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return
	}
	for _, id := range ids {
		job, err := q.loadJob(ctx, id)
		if err != nil || job == nil {
			q.client.ZRem(ctx, q.key("delayed"), id)
			continue
		}
		q.client.ZAdd(ctx, q.key("ready"), redis.Z{
			Score:  q.score(job.Priority, q.clock.Now()),
			Member: id,
		})
		q.client.ZRem(ctx, q.key("delayed"), id)
	}
}

func (q *RedisQueue) consumeLoop(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := q.pop(ctx)
		if err != nil || job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		q.run(ctx, job)
	}
}

func (q *RedisQueue) pop(ctx context.Context) (*domain.Job, error) {
	res, err := q.client.ZPopMin(ctx, q.key("ready"), 1).Result()
	if err != nil || len(res) == 0 {
		return nil, err
	}
	id, _ := res[0].Member.(string)
	job, err := q.loadJob(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	if err := q.client.SAdd(ctx, q.key("active"), id).Err(); err != nil {
		return nil, shared.NewStorageError(err)
	}
	return job, nil
}

func (q *RedisQueue) run(ctx context.Context, job *domain.Job) {
	q.mu.Lock()
	h := q.handlers[job.Name]
	q.mu.Unlock()

	if h == nil {
		q.log.WithField("job", job.Name).Warn("No handler registered, failing job")
		q.finish(ctx, job, fmt.Errorf("no handler for job %s", job.Name))
		return
	}

	job.Attempts++
	err := h(ctx, job)
	if err == nil {
		q.finish(ctx, job, nil)
		return
	}

	if job.Attempts < job.MaxAttempts {
		job.LastError = err.Error()
		if storeErr := q.storeJob(ctx, job); storeErr != nil {
			q.log.WithField("error", storeErr).Error("Failed to persist retry state")
		}
		delay := domain.Backoff(job.BackoffBase, job.Attempts)
		q.client.ZAdd(ctx, q.key("delayed"), redis.Z{
			Score:  float64(q.clock.Now().Add(delay).UnixMilli()),
			Member: job.ID,
		})
		q.client.SRem(ctx, q.key("active"), job.ID)
		q.log.WithFields(logrus.Fields{
			"job":     job.Name,
			"attempt": job.Attempts,
			"delay":   delay.String(),
			"error":   err,
		}).Warn("Job failed, retrying")
		return
	}

	q.finish(ctx, job, err)
}

// finish moves a job to its terminal list, drops its dedup key, and
// emits the lifecycle event.
func (q *RedisQueue) finish(ctx context.Context, job *domain.Job, jobErr error) {
	q.client.SRem(ctx, q.key("active"), job.ID)
	q.client.HDel(ctx, q.key("jobs"), job.ID)
	if job.DedupKey != "" {
		q.client.Del(ctx, q.dedupKey(job.DedupKey))
	}

	list := q.key("completed")
	ev := domain.Event{Type: domain.EventCompleted, JobID: job.ID, JobName: job.Name}
	if jobErr != nil {
		job.LastError = jobErr.Error()
		list = q.key("failed")
		ev = domain.Event{Type: domain.EventFailed, JobID: job.ID, JobName: job.Name, Err: jobErr}
	}

	if data, err := json.Marshal(job); err == nil {
		q.client.LPush(ctx, list, data)
		q.client.LTrim(ctx, list, 0, historyRetention)
	}

	if jobErr != nil {
		q.log.WithFields(logrus.Fields{"job": job.Name, "job_id": job.ID, "error": jobErr}).
			Error("Job failed permanently")
	}
	q.emit(ev)
}

// Close drains consumers and waits up to the context deadline
func (q *RedisQueue) Close(ctx context.Context) error {
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
