package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomsync/shopee-collector/internal/application/ingest"
	"github.com/tomsync/shopee-collector/internal/domain/queue"
)

const heartbeatInterval = 10 * time.Second

// Worker binds the pipeline's job handlers to their queues and runs a
// liveness heartbeat. A job failure is returned to the queue so its
// attempt cycle applies; ErrShopBusy is absorbed because another worker
// already holds the shop.
type Worker struct {
	orchestrator *ingest.Orchestrator
	queues       map[string]queue.Queue
	concurrency  int
	log          *logrus.Entry

	activeJobs int64
	status     atomic.Value // string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker over the configured queues
func NewWorker(orchestrator *ingest.Orchestrator, queues map[string]queue.Queue, concurrency int, log *logrus.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logrus.New()
	}
	w := &Worker{
		orchestrator: orchestrator,
		queues:       queues,
		concurrency:  concurrency,
		log:          log.WithField("component", "worker"),
	}
	w.status.Store("idle")
	return w
}

// Register wires every job name to its handler. Call before starting
// the queues.
func (w *Worker) Register() error {
	type binding struct {
		queueName string
		jobName   string
		status    string
		handler   queue.Handler
	}

	bindings := []binding{
		{queue.OrderCollection, queue.JobCollectShopOrders, "processing-orders", w.handleCollect},
		{queue.OrderCollection, queue.JobManualOrderCollect, "processing-orders", w.handleCollect},
		{queue.OrderDetail, queue.JobProcessOrderDetails, "processing-details", w.handleDetails},
		{queue.ShipmentInfo, queue.JobProcessShipmentInfo, "processing-shipment", w.handleShipments},
		{queue.Inventory, queue.JobUpdateInventory, "updating-inventory", w.handleInventory},
	}

	for _, b := range bindings {
		q, ok := w.queues[b.queueName]
		if !ok {
			return fmt.Errorf("queue %s not configured", b.queueName)
		}
		q.Process(b.jobName, w.concurrency, w.instrument(b.status, b.handler))
	}
	return nil
}

// instrument tracks the active job count and status label around a
// handler.
func (w *Worker) instrument(status string, h queue.Handler) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		atomic.AddInt64(&w.activeJobs, 1)
		w.status.Store(status)
		defer func() {
			if atomic.AddInt64(&w.activeJobs, -1) == 0 {
				w.status.Store("idle")
			}
		}()
		return h(ctx, job)
	}
}

func (w *Worker) handleCollect(ctx context.Context, job *queue.Job) error {
	var payload queue.CollectPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("bad collect payload: %w", err)
	}

	stats, err := w.orchestrator.CollectShop(ctx, payload.ShopRef)
	if errors.Is(err, ingest.ErrShopBusy) {
		w.log.WithField("shop_ref", payload.ShopRef).Info("Shop already collecting, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	w.log.WithFields(logrus.Fields{
		"shop_ref": payload.ShopRef,
		"total":    stats.Total,
		"success":  stats.Success,
		"failed":   stats.Failed,
	}).Info("Collection job finished")
	return nil
}

func (w *Worker) handleDetails(ctx context.Context, job *queue.Job) error {
	var payload queue.DetailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("bad detail payload: %w", err)
	}
	_, err := w.orchestrator.ProcessDetails(ctx, payload.ShopRef, payload.OrderSNs)
	return err
}

func (w *Worker) handleShipments(ctx context.Context, job *queue.Job) error {
	var payload queue.ShipmentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("bad shipment payload: %w", err)
	}
	_, err := w.orchestrator.CollectShipments(ctx, payload.ShopRef)
	return err
}

func (w *Worker) handleInventory(ctx context.Context, job *queue.Job) error {
	var payload queue.InventoryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("bad inventory payload: %w", err)
	}
	return w.orchestrator.UpdateInventory(ctx, payload.ShopRef)
}

// Start launches the heartbeat
func (w *Worker) Start() {
	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.log.WithFields(logrus.Fields{
					"status":      w.Status(),
					"active_jobs": w.ActiveJobs(),
				}).Debug("Worker heartbeat")
			}
		}
	}()
}

// Stop halts the heartbeat
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// ActiveJobs returns the number of jobs currently executing
func (w *Worker) ActiveJobs() int64 {
	return atomic.LoadInt64(&w.activeJobs)
}

// Status returns the current heartbeat status label
func (w *Worker) Status() string {
	s, _ := w.status.Load().(string)
	return s
}
