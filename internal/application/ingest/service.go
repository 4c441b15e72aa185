package ingest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tomsync/shopee-collector/internal/domain/order"
	"github.com/tomsync/shopee-collector/internal/domain/queue"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
)

// Service is the operations facade over the pipeline, used by the HTTP
// API and the CLI. Manual collections enqueue ahead of scheduled ones.
type Service struct {
	orchestrator   *Orchestrator
	shops          shop.Repository
	orders         order.Repository
	queues         map[string]queue.Queue
	runtimeSandbox bool
	log            *logrus.Entry
}

// NewService creates the operations facade
func NewService(
	orchestrator *Orchestrator,
	shops shop.Repository,
	orders order.Repository,
	queues map[string]queue.Queue,
	runtimeSandbox bool,
	log *logrus.Logger,
) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		orchestrator:   orchestrator,
		shops:          shops,
		orders:         orders,
		queues:         queues,
		runtimeSandbox: runtimeSandbox,
		log:            log.WithField("component", "ingest-service"),
	}
}

// ActiveShops lists the shops the scheduler should fan out over
func (s *Service) ActiveShops(ctx context.Context) ([]*shop.Shop, error) {
	return s.shops.ListActive(ctx, s.runtimeSandbox)
}

// EnqueueCollect queues a collection cycle for one shop. Manual
// requests jump ahead of scheduled ones; a pending job for the same
// shop absorbs the enqueue.
func (s *Service) EnqueueCollect(ctx context.Context, shopRef string, manual bool) (string, error) {
	q, ok := s.queues[queue.OrderCollection]
	if !ok {
		return "", fmt.Errorf("queue %s not configured", queue.OrderCollection)
	}

	jobName := queue.JobCollectShopOrders
	priority := 5
	if manual {
		jobName = queue.JobManualOrderCollect
		priority = 0
	}

	return q.Enqueue(ctx, jobName, queue.CollectPayload{ShopRef: shopRef, Manual: manual}, &queue.Options{
		Priority: priority,
		DedupKey: "collect:" + shopRef,
	})
}

// AuthorizeShop exchanges an authorization code and stores the tokens
func (s *Service) AuthorizeShop(ctx context.Context, shopRef, code string) error {
	return s.orchestrator.AuthorizeShop(ctx, shopRef, code)
}

// CollectDirect runs a collection cycle synchronously
func (s *Service) CollectDirect(ctx context.Context, shopRef string) (*order.Stats, error) {
	return s.orchestrator.CollectShop(ctx, shopRef)
}

// QueueDepths reports the census of every configured queue
func (s *Service) QueueDepths(ctx context.Context) (map[string]*queue.Depths, error) {
	out := make(map[string]*queue.Depths, len(s.queues))
	for name, q := range s.queues {
		d, err := q.Depths(ctx)
		if err != nil {
			return nil, err
		}
		out[name] = d
	}
	return out, nil
}

// GetOrder looks an order up by order number first, then surrogate id
func (s *Service) GetOrder(ctx context.Context, ref string) (*order.Order, error) {
	o, err := s.orders.FindByOrderNum(ctx, ref)
	if err != nil {
		return nil, err
	}
	if o != nil {
		return o, nil
	}
	return s.orders.FindByID(ctx, ref)
}
