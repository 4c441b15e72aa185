package config

import (
	"runtime"
	"time"
)

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "collector"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "toms"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.PoolSize == 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Database.MaxIdle == 0 {
		cfg.Database.MaxIdle = 5
	}
	if cfg.Database.MaxLifetime == 0 {
		cfg.Database.MaxLifetime = 5 * time.Minute
	}

	// Redis defaults
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// Marketplace defaults
	if cfg.Shopee.Timeout == 0 {
		cfg.Shopee.Timeout = 20 * time.Second
	}
	if cfg.Shopee.RateLimit.Requests == 0 {
		cfg.Shopee.RateLimit.Requests = 10
	}
	if cfg.Shopee.RateLimit.Burst == 0 {
		cfg.Shopee.RateLimit.Burst = 10
	}

	// Collector defaults
	if cfg.Collector.MaxRetry == 0 {
		cfg.Collector.MaxRetry = 3
	}
	if cfg.Collector.BatchSize == 0 {
		cfg.Collector.BatchSize = 50
	}
	if cfg.Collector.JobConcurrency == 0 {
		cfg.Collector.JobConcurrency = 1
	}
	if cfg.Collector.PacingDelay == 0 {
		cfg.Collector.PacingDelay = 500 * time.Millisecond
	}
	if cfg.Collector.TrackingTimeout == 0 {
		cfg.Collector.TrackingTimeout = 15 * time.Second
	}
	if cfg.Collector.TrackingBatchSize == 0 {
		cfg.Collector.TrackingBatchSize = 10
	}

	// Scheduler defaults
	if cfg.Scheduler.Cron == "" {
		cfg.Scheduler.Cron = "*/10 * * * *"
	}

	// Cluster defaults
	if cfg.Cluster.Workers == 0 {
		cfg.Cluster.Workers = runtime.NumCPU()
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Daemon defaults
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = "/tmp/shopee-collector.pid"
	}
	if cfg.Daemon.ShutdownTimeout == 0 {
		cfg.Daemon.ShutdownTimeout = 3 * time.Second
	}
}
