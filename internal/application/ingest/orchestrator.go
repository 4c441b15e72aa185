package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomsync/shopee-collector/internal/domain/order"
	"github.com/tomsync/shopee-collector/internal/domain/ports"
	"github.com/tomsync/shopee-collector/internal/domain/shared"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
	"github.com/tomsync/shopee-collector/internal/infrastructure/config"
)

// ErrShopBusy means a collection cycle for the shop is already running
var ErrShopBusy = errors.New("collection already in progress for shop")

// TokenEnsurer returns a shop whose access token is valid, refreshing
// and persisting when needed.
type TokenEnsurer interface {
	Ensure(ctx context.Context, s *shop.Shop) (*shop.Shop, error)
}

// Recorder receives ingestion metrics; nil disables recording
type Recorder interface {
	RecordCycle(shopID int64, seconds float64, err bool)
	RecordOrders(shopID int64, success, failed int)
	RecordTrackingReconciled(shopID int64, count int)
}

// Orchestrator runs the per-shop ingestion cycle: validate the shop,
// ensure a live token, list the changed orders for the poll window,
// pull details in batches and upsert them, then reconcile tracking
// numbers and repair stragglers.
type Orchestrator struct {
	shops   shop.Repository
	orders  order.Repository
	client  ports.MarketplaceClient
	tokens  TokenEnsurer
	clock   shared.Clock
	log     *logrus.Entry
	cfg     *config.CollectorConfig
	metrics Recorder

	inflight sync.Map // shopID -> struct{}
}

// NewOrchestrator wires the ingestion cycle
func NewOrchestrator(
	shops shop.Repository,
	orders order.Repository,
	client ports.MarketplaceClient,
	tokens TokenEnsurer,
	cfg *config.CollectorConfig,
	log *logrus.Logger,
	clock shared.Clock,
	metrics Recorder,
) *Orchestrator {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Orchestrator{
		shops:   shops,
		orders:  orders,
		client:  client,
		tokens:  tokens,
		clock:   clock,
		log:     log.WithField("component", "orchestrator"),
		cfg:     cfg,
		metrics: metrics,
	}
}

// ResolveShop finds a shop by internal key or marketplace id string
func (o *Orchestrator) ResolveShop(ctx context.Context, shopRef string) (*shop.Shop, error) {
	s, err := o.shops.FindByID(ctx, shopRef)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}
	if id, convErr := strconv.ParseInt(shopRef, 10, 64); convErr == nil {
		s, err = o.shops.FindByShopID(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if s == nil {
		return nil, shared.NewConfigError("shop", fmt.Sprintf("unknown shop %q", shopRef))
	}
	return s, nil
}

// CollectShop runs one full ingestion cycle for a shop. Concurrent
// cycles for the same shop are rejected with ErrShopBusy.
func (o *Orchestrator) CollectShop(ctx context.Context, shopRef string) (*order.Stats, error) {
	s, err := o.ResolveShop(ctx, shopRef)
	if err != nil {
		return nil, err
	}

	if _, loaded := o.inflight.LoadOrStore(s.ShopID, struct{}{}); loaded {
		return nil, ErrShopBusy
	}
	defer o.inflight.Delete(s.ShopID)

	start := o.clock.Now()
	stats, err := o.collect(ctx, s)
	if o.metrics != nil {
		o.metrics.RecordCycle(s.ShopID, o.clock.Now().Sub(start).Seconds(), err != nil)
		if stats != nil {
			o.metrics.RecordOrders(s.ShopID, stats.Success, stats.Failed)
		}
	}
	return stats, err
}

func (o *Orchestrator) collect(ctx context.Context, s *shop.Shop) (*order.Stats, error) {
	log := o.log.WithField("shop_id", s.ShopID)

	// Validate the shop and resolve its environment
	s, err := o.validate(ctx, s)
	if err != nil {
		return nil, err
	}

	// A live token before any data call
	s, err = o.tokens.Ensure(ctx, s)
	if err != nil {
		return nil, err
	}

	timeFrom, timeTo := o.pollWindow(s)
	log.WithFields(logrus.Fields{
		"time_from": timeFrom,
		"time_to":   timeTo,
	}).Info("Starting collection cycle")

	entries, err := o.listWithRetry(ctx, s, ports.OrderListQuery{TimeFrom: timeFrom, TimeTo: timeTo})
	if err != nil {
		return nil, err
	}

	orderSNs := make([]string, 0, len(entries))
	for _, e := range entries {
		orderSNs = append(orderSNs, e.OrderSN)
	}

	stats := o.ingestDetails(ctx, s, orderSNs)

	if err := o.reconcileTracking(ctx, s, orderSNs); err != nil {
		log.WithField("error", err).Warn("Tracking reconciliation incomplete")
	}
	o.repairStragglers(ctx, s)

	log.WithFields(logrus.Fields{
		"total":   stats.Total,
		"success": stats.Success,
		"failed":  stats.Failed,
	}).Info("Collection cycle finished")

	return stats, nil
}

// validate checks the shop is usable and pins its effective sandbox
// environment onto the returned copy. The company flag wins over the
// shop's own flag.
func (o *Orchestrator) validate(ctx context.Context, s *shop.Shop) (*shop.Shop, error) {
	if s.Deleted || !s.Active {
		return nil, shared.NewConfigError("shop", fmt.Sprintf("shop %d is not active", s.ShopID))
	}
	if s.PartnerID == 0 || s.PartnerKey == "" {
		return nil, shared.NewConfigError("partner", fmt.Sprintf("shop %d has no partner credentials", s.ShopID))
	}

	var company *shop.Company
	if s.CompanyID != "" {
		var err error
		_, company, err = o.shops.FindWithCompany(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		if company == nil {
			return nil, shared.NewConfigError("company", fmt.Sprintf("shop %d references missing company %s", s.ShopID, s.CompanyID))
		}
		if company.Deleted {
			return nil, shared.NewConfigError("company", fmt.Sprintf("company %s is deleted", s.CompanyID))
		}
	}

	resolved := *s
	resolved.IsSandbox = s.EffectiveSandbox(company)
	return &resolved, nil
}

// pollWindow computes the listing window. A configured per-shop window
// looks back that many minutes from now; otherwise the window spans
// from one hour before today's UTC midnight to 24 hours after it.
func (o *Orchestrator) pollWindow(s *shop.Shop) (int64, int64) {
	now := o.clock.Now().UTC()
	if s.PollWindowMinutes > 0 {
		from := now.Add(-time.Duration(s.PollWindowMinutes) * time.Minute)
		return from.Unix(), now.Unix()
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(-time.Hour).Unix(), midnight.Add(24 * time.Hour).Unix()
}

// listWithRetry retries the listing step on retriable failures with
// exponential backoff. Only this step carries an inner retry budget;
// everything later relies on the queue's attempt cycle.
func (o *Orchestrator) listWithRetry(ctx context.Context, s *shop.Shop, q ports.OrderListQuery) ([]ports.OrderListEntry, error) {
	maxRetry := o.cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 3
	}

	var lastErr error
	delay := time.Second
	for attempt := 0; attempt < maxRetry; attempt++ {
		if attempt > 0 {
			o.clock.Sleep(delay)
			delay *= 2
		}
		entries, err := o.client.GetOrderList(ctx, s, q)
		if err == nil {
			return entries, nil
		}
		lastErr = err
		if !shared.IsRetriable(err) {
			return nil, err
		}
		o.log.WithFields(logrus.Fields{
			"shop_id": s.ShopID,
			"attempt": attempt + 1,
			"error":   err,
		}).Warn("Order listing failed, retrying")
	}
	return nil, lastErr
}

// ingestDetails pulls order details in batches and upserts each order
// independently; a failed order is counted and the batch continues.
func (o *Orchestrator) ingestDetails(ctx context.Context, s *shop.Shop, orderSNs []string) *order.Stats {
	stats := &order.Stats{Total: len(orderSNs)}
	batchSize := o.cfg.BatchSize
	if batchSize <= 0 || batchSize > 50 {
		batchSize = 50
	}
	pacing := o.cfg.PacingDelay

	for start := 0; start < len(orderSNs); start += batchSize {
		if start > 0 && pacing > 0 {
			o.clock.Sleep(pacing)
		}
		end := start + batchSize
		if end > len(orderSNs) {
			end = len(orderSNs)
		}
		batch := orderSNs[start:end]

		details, err := o.client.GetOrderDetail(ctx, s, batch)
		if err != nil {
			o.log.WithFields(logrus.Fields{
				"shop_id": s.ShopID,
				"batch":   len(batch),
				"error":   err,
			}).Error("Detail batch failed")
			stats.Failed += len(batch)
			continue
		}

		for i := range details {
			d := projectDetail(&details[i])
			if _, ok := order.MapActionStatus(d.Status); !ok {
				o.log.WithFields(logrus.Fields{
					"order_sn": d.OrderSN,
					"status":   d.Status,
				}).Warn("Unknown order status, defaulting workflow state")
			}
			if _, err := o.orders.Upsert(ctx, d, s.CompanyID, s.ShopID); err != nil {
				o.log.WithFields(logrus.Fields{
					"order_sn": d.OrderSN,
					"error":    err,
				}).Error("Order upsert failed")
				stats.Failed++
				continue
			}
			stats.Success++
			stats.OrderSNs = append(stats.OrderSNs, d.OrderSN)
		}
	}
	return stats
}

// reconcileTracking fetches tracking numbers for eligible orders in
// small sub-batches, with a hard per-request ceiling so one slow
// lookup cannot stall the cycle.
func (o *Orchestrator) reconcileTracking(ctx context.Context, s *shop.Shop, orderSNs []string) error {
	candidates, err := o.orders.TrackingCandidates(ctx, s.ShopID, orderSNs)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	batchSize := o.cfg.TrackingBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	reconciled := 0

	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		for _, c := range candidates[start:end] {
			if o.lookupAndApply(ctx, s, c) {
				reconciled++
			}
		}
		if o.cfg.PacingDelay > 0 && end < len(candidates) {
			o.clock.Sleep(o.cfg.PacingDelay)
		}
	}

	if o.metrics != nil && reconciled > 0 {
		o.metrics.RecordTrackingReconciled(s.ShopID, reconciled)
	}
	return nil
}

func (o *Orchestrator) trackingTimeout() time.Duration {
	if o.cfg.TrackingTimeout > 0 {
		return o.cfg.TrackingTimeout
	}
	return 15 * time.Second
}

// lookupAndApply resolves the marketplace's current tracking number for
// one candidate. An unchanged number is not rewritten, but its carrier
// trail is still refreshed.
func (o *Orchestrator) lookupAndApply(ctx context.Context, s *shop.Shop, c *order.TrackingCandidate) bool {
	reqCtx, cancel := context.WithTimeout(ctx, o.trackingTimeout())
	defer cancel()

	info, err := o.client.GetTrackingNumber(reqCtx, s, c.OrderSN, "")
	if err != nil {
		o.log.WithFields(logrus.Fields{
			"order_sn": c.OrderSN,
			"error":    err,
		}).Warn("Tracking lookup failed")
		return false
	}

	tracking := info.Best()
	carrier := info.BestCarrier()
	if tracking == "" || tracking == c.TrackingNo {
		if carrier != "" && c.CarrierName == "" {
			if err := o.orders.UpdateCarrier(ctx, c.OrderID, carrier); err != nil {
				o.log.WithFields(logrus.Fields{"order_sn": c.OrderSN, "error": err}).
					Warn("Carrier update failed")
			}
		}
		if tracking != "" {
			o.recordTrail(ctx, s, c.OrderID, tracking)
		}
		return false
	}

	if err := o.orders.UpdateTracking(ctx, c.OrderID, tracking, carrier); err != nil {
		o.log.WithFields(logrus.Fields{"order_sn": c.OrderSN, "error": err}).
			Error("Tracking update failed")
		return false
	}
	o.recordTrail(ctx, s, c.OrderID, tracking)
	return true
}

// recordTrail pulls the carrier event trail for a tracking number and
// persists it as logistic history. Trail failures never fail the cycle.
func (o *Orchestrator) recordTrail(ctx context.Context, s *shop.Shop, orderID, trackingNo string) {
	reqCtx, cancel := context.WithTimeout(ctx, o.trackingTimeout())
	defer cancel()

	info, err := o.client.GetTrackingInfo(reqCtx, s, trackingNo)
	if err != nil {
		o.log.WithFields(logrus.Fields{"tracking_no": trackingNo, "error": err}).
			Warn("Tracking trail fetch failed")
		return
	}

	histories := make([]order.HistoryDetail, 0, len(info.Events))
	for _, ev := range info.Events {
		histories = append(histories, order.HistoryDetail{
			TrackingNo: trackingNo,
			EventTime:  ev.UpdateTime,
			Location:   ev.Description,
			Status:     ev.LogisticsStatus,
		})
	}
	if err := o.orders.AppendHistories(ctx, orderID, histories); err != nil {
		o.log.WithFields(logrus.Fields{"tracking_no": trackingNo, "error": err}).
			Warn("History append failed")
	}
}

// repairStragglers gives orders stuck with half of their shipping data
// another lookup. Tracking without carrier re-pulls the order detail and
// extracts the carrier by package priority; carrier without tracking
// re-runs the tracking lookup. Bounded per cycle.
func (o *Orchestrator) repairStragglers(ctx context.Context, s *shop.Shop) {
	const repairLimit = 20

	missingCarrier, err := o.orders.MissingCarrier(ctx, s.ShopID, repairLimit)
	if err == nil {
		for _, c := range missingCarrier {
			reqCtx, cancel := context.WithTimeout(ctx, o.trackingTimeout())
			details, err := o.client.GetOrderDetail(reqCtx, s, []string{c.OrderSN})
			cancel()
			if err != nil || len(details) == 0 {
				continue
			}
			if carrier := projectCarrier(&details[0]); carrier != "" {
				if err := o.orders.UpdateCarrier(ctx, c.OrderID, carrier); err != nil {
					o.log.WithFields(logrus.Fields{"order_sn": c.OrderSN, "error": err}).
						Warn("Carrier repair failed")
				}
			}
		}
	}

	missingTracking, err := o.orders.MissingTracking(ctx, s.ShopID, repairLimit)
	if err == nil {
		for _, c := range missingTracking {
			o.lookupAndApply(ctx, s, c)
		}
	}
}

// AuthorizeShop exchanges a marketplace authorization code for a token
// pair and persists it, activating collection for the shop.
func (o *Orchestrator) AuthorizeShop(ctx context.Context, shopRef, code string) error {
	s, err := o.ResolveShop(ctx, shopRef)
	if err != nil {
		return err
	}
	if code == "" {
		return shared.NewConfigError("code", "authorization code is required")
	}

	grant, err := o.client.GetAccessToken(ctx, code, s.ShopID)
	if err != nil {
		return err
	}

	expireAt := o.clock.Now().Add(time.Duration(grant.ExpireIn) * time.Second)
	if err := o.shops.UpdateToken(ctx, s.ShopID, grant.AccessToken, grant.RefreshToken, expireAt); err != nil {
		return err
	}

	o.log.WithField("shop_id", s.ShopID).Info("Shop authorized")
	return nil
}

// ProcessDetails ingests an explicit set of order numbers for a shop,
// skipping the listing step. Used by the detail queue.
func (o *Orchestrator) ProcessDetails(ctx context.Context, shopRef string, orderSNs []string) (*order.Stats, error) {
	s, err := o.ResolveShop(ctx, shopRef)
	if err != nil {
		return nil, err
	}
	s, err = o.validate(ctx, s)
	if err != nil {
		return nil, err
	}
	s, err = o.tokens.Ensure(ctx, s)
	if err != nil {
		return nil, err
	}

	stats := o.ingestDetails(ctx, s, orderSNs)
	if err := o.reconcileTracking(ctx, s, orderSNs); err != nil {
		o.log.WithFields(logrus.Fields{"shop_id": s.ShopID, "error": err}).
			Warn("Tracking reconciliation incomplete")
	}
	return stats, nil
}

// CollectShipments ingests the shipment list: every order the
// marketplace reports as shipped gets its detail re-pulled and
// upserted, which refreshes status and shipping fields.
func (o *Orchestrator) CollectShipments(ctx context.Context, shopRef string) (*order.Stats, error) {
	s, err := o.ResolveShop(ctx, shopRef)
	if err != nil {
		return nil, err
	}
	s, err = o.validate(ctx, s)
	if err != nil {
		return nil, err
	}
	s, err = o.tokens.Ensure(ctx, s)
	if err != nil {
		return nil, err
	}

	entries, err := o.client.GetShipmentList(ctx, s)
	if err != nil {
		return nil, err
	}

	orderSNs := make([]string, 0, len(entries))
	for _, e := range entries {
		orderSNs = append(orderSNs, e.OrderSN)
	}

	stats := o.ingestDetails(ctx, s, orderSNs)
	if err := o.reconcileTracking(ctx, s, orderSNs); err != nil {
		o.log.WithFields(logrus.Fields{"shop_id": s.ShopID, "error": err}).
			Warn("Tracking reconciliation incomplete")
	}
	return stats, nil
}

// UpdateInventory is the stock sync pass. Product tables are not part
// of this service yet, so the pass validates the shop and reports.
func (o *Orchestrator) UpdateInventory(ctx context.Context, shopRef string) error {
	s, err := o.ResolveShop(ctx, shopRef)
	if err != nil {
		return err
	}
	if _, err := o.validate(ctx, s); err != nil {
		return err
	}
	o.log.WithField("shop_id", s.ShopID).Debug("Inventory sync skipped, no product tables bound")
	return nil
}
