package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tomsync/shopee-collector/internal/domain/order"
	"github.com/tomsync/shopee-collector/internal/domain/shared"
)

// GormOrderRepository implements order.Repository using GORM. Upsert
// runs the full order protocol inside one transaction so a partial
// write never survives a failure.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GORM-based order repository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Upsert writes one normalized order detail: the order row keyed by
// (platform, order_num), exactly one logistic row, deduplicated carrier
// history rows, and a wholesale rewrite of the item set.
func (r *GormOrderRepository) Upsert(ctx context.Context, d *order.Detail, companyID string, shopID int64) (*order.UpsertResult, error) {
	var orderID string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		orderID, err = r.upsertOrder(tx, d, companyID, shopID)
		if err != nil {
			return err
		}

		logisticID, trackingNo, err := r.upsertLogistic(tx, orderID, d)
		if err != nil {
			return err
		}

		if err := r.upsertHistories(tx, logisticID, d.Histories); err != nil {
			return err
		}

		return r.rewriteItems(tx, orderID, logisticID, trackingNo, d.Items)
	})
	if err != nil {
		if isDomainErr(err) {
			return nil, err
		}
		return nil, shared.NewStorageError(err)
	}

	return &order.UpsertResult{OrderID: orderID}, nil
}

func isDomainErr(err error) bool {
	var se *shared.StorageError
	var de *shared.DataError
	return errors.As(err, &se) || errors.As(err, &de)
}

func (r *GormOrderRepository) upsertOrder(tx *gorm.DB, d *order.Detail, companyID string, shopID int64) (string, error) {
	if d.OrderSN == "" {
		return "", shared.NewDataError("", "order_sn")
	}

	action, _ := order.MapActionStatus(d.Status)

	var existing OrderModel
	err := tx.Where("platform = ? AND order_num = ?", order.Platform, d.OrderSN).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		model := OrderModel{
			ID:              uuid.NewString(),
			Platform:        order.Platform,
			OrderNum:        d.OrderSN,
			Status:          string(d.Status),
			ActionStatus:    string(action),
			OtherStatus:     d.OtherStatus,
			Country:         d.Country,
			Currency:        d.Currency,
			OrderTime:       order.EpochToTime(d.OrderTime),
			PayTime:         order.EpochToTime(d.PayTime),
			ShipByDate:      order.EpochToTime(d.ShipByDate),
			DaysToShip:      d.DaysToShip,
			TotalAmount:     d.TotalAmount,
			CompanyID:       companyID,
			ShopID:          shopID,
			FulfillmentFlag: string(d.FulfillmentFlag),
			CancelBy:        d.CancelBy,
			CancelReason:    d.CancelReason,
			MessageToSeller: d.MessageToSeller,
		}
		if err := tx.Create(&model).Error; err != nil {
			return "", err
		}
		return model.ID, nil
	case err != nil:
		return "", err
	}

	updates := map[string]any{
		"status":            string(d.Status),
		"action_status":     string(action),
		"other_status":      d.OtherStatus,
		"country":           d.Country,
		"currency":          d.Currency,
		"order_time":        order.EpochToTime(d.OrderTime),
		"pay_time":          order.EpochToTime(d.PayTime),
		"ship_by_date":      order.EpochToTime(d.ShipByDate),
		"days_to_ship":      d.DaysToShip,
		"total_amount":      d.TotalAmount,
		"company_id":        companyID,
		"shop_id":           shopID,
		"fulfillment_flag":  string(d.FulfillmentFlag),
		"cancel_by":         d.CancelBy,
		"cancel_reason":     d.CancelReason,
		"message_to_seller": d.MessageToSeller,
	}
	if err := tx.Model(&OrderModel{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return "", err
	}
	return existing.ID, nil
}

// upsertLogistic keeps exactly one logistic per order. A synthetic empty
// row is created when the detail carries no shipping data, so item
// foreign keys always resolve. A non-empty stored carrier or tracking
// number is never blanked by an empty incoming value.
func (r *GormOrderRepository) upsertLogistic(tx *gorm.DB, orderID string, d *order.Detail) (logisticID, trackingNo string, err error) {
	var existing LogisticModel
	findErr := tx.Where("toms_order_id = ?", orderID).First(&existing).Error
	switch {
	case errors.Is(findErr, gorm.ErrRecordNotFound):
		model := LogisticModel{
			ID:                   uuid.NewString(),
			TomsOrderID:          orderID,
			Name:                 d.CarrierName,
			TrackingNo:           d.TrackingNo,
			EstimatedShippingFee: d.EstimatedShippingFee,
			ActualShippingFee:    d.ActualShippingFee,
		}
		if err := tx.Create(&model).Error; err != nil {
			return "", "", err
		}
		return model.ID, model.TrackingNo, nil
	case findErr != nil:
		return "", "", findErr
	}

	name := existing.Name
	if d.CarrierName != "" {
		name = d.CarrierName
	}
	tracking := existing.TrackingNo
	if d.TrackingNo != "" {
		tracking = d.TrackingNo
	}

	updates := map[string]any{
		"name":                   name,
		"tracking_no":            tracking,
		"estimated_shipping_fee": d.EstimatedShippingFee,
		"actual_shipping_fee":    d.ActualShippingFee,
	}
	if err := tx.Model(&LogisticModel{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return "", "", err
	}
	return existing.ID, tracking, nil
}

// upsertHistories deduplicates carrier events on (logistic, tracking,
// event_time, status); a re-observed event updates only its location.
func (r *GormOrderRepository) upsertHistories(tx *gorm.DB, logisticID string, histories []order.HistoryDetail) error {
	for _, h := range histories {
		eventTime := order.EpochToTime(h.EventTime)

		var existing LogisticHistoryModel
		q := tx.Where("toms_logistic_id = ? AND tracking_no = ? AND status = ?", logisticID, h.TrackingNo, h.Status)
		if eventTime != nil {
			q = q.Where("event_time = ?", eventTime)
		} else {
			q = q.Where("event_time IS NULL")
		}
		err := q.First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			model := LogisticHistoryModel{
				ID:             uuid.NewString(),
				TomsLogisticID: logisticID,
				TrackingNo:     h.TrackingNo,
				EventTime:      eventTime,
				Location:       h.Location,
				Status:         h.Status,
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if existing.Location != h.Location {
				if err := tx.Model(&LogisticHistoryModel{}).Where("id = ?", existing.ID).
					Update("location", h.Location).Error; err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// rewriteItems replaces the item set wholesale, preserving positional
// order through item_index.
func (r *GormOrderRepository) rewriteItems(tx *gorm.DB, orderID, logisticID, trackingNo string, items []order.ItemDetail) error {
	if err := tx.Where("toms_order_id = ?", orderID).Delete(&OrderItemModel{}).Error; err != nil {
		return err
	}

	for i, it := range items {
		model := OrderItemModel{
			ID:             uuid.NewString(),
			TomsOrderID:    orderID,
			TomsLogisticID: logisticID,
			TomsItemID:     uuid.NewString(),
			ItemID:         it.ItemID,
			SKU:            it.SKU,
			PromoSKU:       it.PromoSKU,
			Name:           it.Name,
			Variation:      it.Variation,
			Price:          it.Price,
			OriginalPrice:  it.OriginalPrice,
			Qty:            it.Qty,
			Weight:         it.Weight,
			ItemIndex:      i,
			TrackingNo:     trackingNo,
			ImageURL:       it.ImageURL,
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByOrderNum looks up by the (platform, order_num) functional key
func (r *GormOrderRepository) FindByOrderNum(ctx context.Context, orderNum string) (*order.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("platform = ? AND order_num = ?", order.Platform, orderNum).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.NewStorageError(err)
	}
	return model.ToDomain(), nil
}

// FindByID looks up by the surrogate id
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.NewStorageError(err)
	}
	return model.ToDomain(), nil
}

type candidateRow struct {
	ID          string
	OrderNum    string
	Status      string
	TrackingNo  string
	CarrierName string
}

const candidateSelect = "toms_order.id, toms_order.order_num, toms_order.status, " +
	"toms_logistic.tracking_no AS tracking_no, toms_logistic.name AS carrier_name"

func (r *GormOrderRepository) candidateQuery(ctx context.Context, shopID int64) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("toms_order").
		Select(candidateSelect).
		Joins("JOIN toms_logistic ON toms_logistic.toms_order_id = toms_order.id").
		Where("toms_order.platform = ? AND toms_order.shop_id = ?", order.Platform, shopID)
}

func toCandidates(rows []candidateRow) []*order.TrackingCandidate {
	out := make([]*order.TrackingCandidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, &order.TrackingCandidate{
			OrderID:     row.ID,
			OrderSN:     row.OrderNum,
			Status:      order.Status(row.Status),
			TrackingNo:  row.TrackingNo,
			CarrierName: row.CarrierName,
		})
	}
	return out
}

// TrackingCandidates returns the subset of the given order numbers whose
// status makes a tracking number plausible. Rows with a stored tracking
// number are included so a changed upstream value still reconciles; the
// caller skips the write when the values match.
func (r *GormOrderRepository) TrackingCandidates(ctx context.Context, shopID int64, orderSNs []string) ([]*order.TrackingCandidate, error) {
	if len(orderSNs) == 0 {
		return nil, nil
	}

	statuses := make([]string, 0, len(order.TrackingEligibleStatuses))
	for _, s := range order.TrackingEligibleStatuses {
		statuses = append(statuses, string(s))
	}

	var rows []candidateRow
	err := r.candidateQuery(ctx, shopID).
		Where("toms_order.order_num IN ?", orderSNs).
		Where("toms_order.status IN ?", statuses).
		Scan(&rows).Error
	if err != nil {
		return nil, shared.NewStorageError(err)
	}
	return toCandidates(rows), nil
}

// UpdateTracking writes a reconciled tracking number through the
// logistic and every item row, and advances the order to SHIPPED unless
// it is already SHIPPED or COMPLETED. An empty carrier never clears a
// stored one.
func (r *GormOrderRepository) UpdateTracking(ctx context.Context, orderID, trackingNo, carrierName string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var logistic LogisticModel
		if err := tx.Where("toms_order_id = ?", orderID).First(&logistic).Error; err != nil {
			return err
		}

		updates := map[string]any{"tracking_no": trackingNo}
		if carrierName != "" {
			updates["name"] = carrierName
		}
		if err := tx.Model(&LogisticModel{}).Where("id = ?", logistic.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Model(&OrderItemModel{}).Where("toms_order_id = ?", orderID).
			Update("tracking_no", trackingNo).Error; err != nil {
			return err
		}

		return tx.Model(&OrderModel{}).
			Where("id = ? AND status NOT IN ?", orderID, []string{string(order.StatusShipped), string(order.StatusCompleted)}).
			Updates(map[string]any{
				"status":        string(order.StatusShipped),
				"action_status": string(order.ActionExported),
			}).Error
	})
	if err != nil {
		return shared.NewStorageError(err)
	}
	return nil
}

// AppendHistories records carrier events against an order's logistic
// row, deduplicated the same way detail upserts are.
func (r *GormOrderRepository) AppendHistories(ctx context.Context, orderID string, histories []order.HistoryDetail) error {
	if len(histories) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var logistic LogisticModel
		if err := tx.Where("toms_order_id = ?", orderID).First(&logistic).Error; err != nil {
			return err
		}
		return r.upsertHistories(tx, logistic.ID, histories)
	})
	if err != nil {
		return shared.NewStorageError(err)
	}
	return nil
}

// UpdateCarrier sets the carrier name on the order's logistic row; an
// empty name never overwrites an existing one.
func (r *GormOrderRepository) UpdateCarrier(ctx context.Context, orderID, carrierName string) error {
	if carrierName == "" {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&LogisticModel{}).
		Where("toms_order_id = ?", orderID).
		Update("name", carrierName).Error
	if err != nil {
		return shared.NewStorageError(err)
	}
	return nil
}

// MissingCarrier returns up to limit orders with a tracking number but
// no carrier name.
func (r *GormOrderRepository) MissingCarrier(ctx context.Context, shopID int64, limit int) ([]*order.TrackingCandidate, error) {
	var rows []candidateRow
	err := r.candidateQuery(ctx, shopID).
		Where("toms_logistic.tracking_no <> ?", "").
		Where("toms_logistic.name = ?", "").
		Order("toms_order.updated_at").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, shared.NewStorageError(err)
	}
	return toCandidates(rows), nil
}

// MissingTracking returns up to limit orders with a carrier name but no
// tracking number.
func (r *GormOrderRepository) MissingTracking(ctx context.Context, shopID int64, limit int) ([]*order.TrackingCandidate, error) {
	var rows []candidateRow
	err := r.candidateQuery(ctx, shopID).
		Where("toms_logistic.name <> ?", "").
		Where("toms_logistic.tracking_no = ?", "").
		Order("toms_order.updated_at").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, shared.NewStorageError(err)
	}
	return toCandidates(rows), nil
}
