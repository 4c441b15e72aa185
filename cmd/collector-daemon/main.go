package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tomsync/shopee-collector/internal/adapters/api"
	"github.com/tomsync/shopee-collector/internal/adapters/httpapi"
	"github.com/tomsync/shopee-collector/internal/adapters/metrics"
	"github.com/tomsync/shopee-collector/internal/adapters/persistence"
	queueadapter "github.com/tomsync/shopee-collector/internal/adapters/queue"
	"github.com/tomsync/shopee-collector/internal/adapters/scheduler"
	"github.com/tomsync/shopee-collector/internal/adapters/worker"
	"github.com/tomsync/shopee-collector/internal/application/ingest"
	domainqueue "github.com/tomsync/shopee-collector/internal/domain/queue"
	"github.com/tomsync/shopee-collector/internal/infrastructure/config"
	"github.com/tomsync/shopee-collector/internal/infrastructure/database"
	"github.com/tomsync/shopee-collector/internal/infrastructure/logging"
	"github.com/tomsync/shopee-collector/internal/infrastructure/pidfile"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoadConfig(*configPath)

	log, err := logging.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithField("error", err).Fatal("Daemon failed")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	pid := pidfile.New(cfg.Daemon.PIDFile)
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Release(); err != nil {
			log.WithField("error", err).Warn("Failed to release PID file")
		}
	}()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	registry := prometheus.NewRegistry()
	apiMetrics := metrics.NewAPIMetrics(registry)
	ingestMetrics := metrics.NewIngestMetrics(registry)

	shopRepo := persistence.NewGormShopRepository(db)
	orderRepo := persistence.NewGormOrderRepository(db)

	client := api.NewShopeeClientWithDeps(&cfg.Shopee, log, nil, apiMetrics)
	tokens := api.NewTokenManager(client, shopRepo, log, nil)

	orchestrator := ingest.NewOrchestrator(
		shopRepo, orderRepo, client, tokens,
		&cfg.Collector, log, nil, ingestMetrics,
	)

	queues, redisClient, err := buildQueues(cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	service := ingest.NewService(orchestrator, shopRepo, orderRepo, queues, cfg.Shopee.IsSandbox, log)

	concurrency := cfg.Collector.JobConcurrency
	if !cfg.Cluster.Enabled {
		// In-process mode runs one job at a time
		concurrency = 1
	} else if cfg.Cluster.Workers > 0 {
		concurrency = cfg.Cluster.Workers
	}

	w := worker.NewWorker(orchestrator, queues, concurrency, log)
	if err := w.Register(); err != nil {
		return err
	}

	sched := scheduler.NewCronScheduler(service, cfg.Scheduler.Cron, log)
	queues[domainqueue.OrderCollection].Subscribe(sched.OnQueueEvent)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for name, q := range queues {
		if err := q.Start(ctx); err != nil {
			return fmt.Errorf("failed to start queue %s: %w", name, err)
		}
	}
	w.Start()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	httpSrv := httpapi.NewServer(cfg.Server.Addr(), service, w, registry, log)
	httpErr := make(chan error, 1)
	go func() { httpErr <- httpSrv.Start() }()

	log.WithFields(logrus.Fields{
		"cluster": cfg.Cluster.Enabled,
		"sandbox": cfg.Shopee.IsSandbox,
		"addr":    cfg.Server.Addr(),
	}).Info("Collector daemon started")

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-httpErr:
		if err != nil {
			log.WithField("error", err).Error("HTTP API failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Daemon.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	for name, q := range queues {
		if err := q.Close(shutdownCtx); err != nil {
			log.WithFields(logrus.Fields{"queue": name, "error": err}).Warn("Queue close timed out")
		}
	}
	w.Stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithField("error", err).Warn("HTTP shutdown timed out")
	}

	log.Info("Collector daemon stopped")
	return nil
}

// buildQueues creates the four pipeline queues on Redis when clustering
// is enabled, in-process otherwise.
func buildQueues(cfg *config.Config, log *logrus.Logger) (map[string]domainqueue.Queue, *redis.Client, error) {
	names := []string{
		domainqueue.OrderCollection,
		domainqueue.OrderDetail,
		domainqueue.ShipmentInfo,
		domainqueue.Inventory,
	}
	queues := make(map[string]domainqueue.Queue, len(names))

	if !cfg.Cluster.Enabled {
		for _, name := range names {
			queues[name] = queueadapter.NewMemoryQueue(name, log, nil)
		}
		return queues, nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr(), err)
	}

	for _, name := range names {
		queues[name] = queueadapter.NewRedisQueue(name, client, log, nil)
	}
	return queues, client, nil
}
