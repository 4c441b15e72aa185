package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Logical queue names used by the pipeline
const (
	OrderCollection = "order-collection"
	OrderDetail     = "order-detail"
	ShipmentInfo    = "shipment-info"
	Inventory       = "inventory"
)

// Job names handled by the worker runtime
const (
	JobCollectShopOrders   = "collect-shop-orders"
	JobManualOrderCollect  = "manual-order-collect"
	JobProcessOrderDetails = "process-order-details"
	JobProcessShipmentInfo = "process-shipment-info"
	JobUpdateInventory     = "update-inventory"
)

// Job is one unit of work on a queue
type Job struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Priority    int             `json:"priority"` // lower number = higher priority
	Attempts    int             `json:"attempts"` // attempts consumed so far
	MaxAttempts int             `json:"max_attempts"`
	BackoffBase time.Duration   `json:"backoff_base"`
	DedupKey    string          `json:"dedup_key,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// Options tunes a single enqueue
type Options struct {
	MaxAttempts int           // default 3
	BackoffBase time.Duration // default 1s, exponential
	Priority    int
	DedupKey    string // non-empty: drop the enqueue while a same-key job is pending
	Delay       time.Duration
}

// Depths is a point-in-time census of one queue
type Depths struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// EventType identifies a queue lifecycle event
type EventType string

const (
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventStalled   EventType = "stalled"
)

// Event is emitted when a job completes, exhausts its attempts, or
// stalls in the active set.
type Event struct {
	Type    EventType
	JobID   string
	JobName string
	Err     error
}

// Handler processes one job. A returned error counts the attempt; the
// queue re-schedules with backoff while attempts remain.
type Handler func(ctx context.Context, job *Job) error

// Queue is one durable, named work queue
type Queue interface {
	Name() string

	// Enqueue adds a job; returns the job id, or the existing job's id
	// when deduplicated away.
	Enqueue(ctx context.Context, jobName string, payload any, opts *Options) (string, error)

	// Process registers the handler for a job name with a concurrency
	// bound. Must be called before Start.
	Process(jobName string, concurrency int, h Handler)

	// Subscribe registers an event listener
	Subscribe(fn func(Event))

	// Depths reports the current queue census
	Depths(ctx context.Context) (*Depths, error)

	// Start launches consumers; returns immediately
	Start(ctx context.Context) error

	// Close drains consumers and releases the backend connection
	Close(ctx context.Context) error
}
