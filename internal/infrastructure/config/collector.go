package config

import "time"

// CollectorConfig holds retry/batch/parallelism knobs for ingestion
type CollectorConfig struct {
	// Bounded inner retries for the order listing step
	MaxRetry int `mapstructure:"max_retry" validate:"omitempty,min=0"`

	// Order numbers per get_order_detail batch
	BatchSize int `mapstructure:"batch_size" validate:"omitempty,min=1,max=50"`

	// Concurrent jobs per queue consumer
	JobConcurrency int `mapstructure:"job_concurrency" validate:"omitempty,min=1"`

	// Pause between detail batches and between tracking lookups
	PacingDelay time.Duration `mapstructure:"pacing_delay"`

	// Ceiling for a single tracking lookup
	TrackingTimeout time.Duration `mapstructure:"tracking_timeout"`

	// Orders per tracking reconciliation sub-batch
	TrackingBatchSize int `mapstructure:"tracking_batch_size" validate:"omitempty,min=1"`
}

// SchedulerConfig holds the cron cadence for the order collection fan-out
type SchedulerConfig struct {
	// Standard 5-field cron expression
	Cron string `mapstructure:"cron" validate:"required"`
}

// ClusterConfig holds supervisor mode settings. When enabled, the
// scheduler only enqueues and a pool of workers does the collection;
// when disabled, jobs run on an in-process queue of capacity one.
type ClusterConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Worker count; 0 means size to CPU count
	Workers int `mapstructure:"workers" validate:"min=0"`
}
