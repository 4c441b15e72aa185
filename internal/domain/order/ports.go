package order

import "context"

// UpsertResult carries the resolved surrogate order id
type UpsertResult struct {
	OrderID string
}

// TrackingCandidate is a persisted order that may need tracking
// reconciliation against the marketplace.
type TrackingCandidate struct {
	OrderID     string
	OrderSN     string
	Status      Status
	TrackingNo  string
	CarrierName string
}

// Repository persists orders and their logistic, history, and item rows.
// Upsert runs the whole protocol inside a single transaction; a failure
// anywhere rolls back the order completely.
type Repository interface {
	// Upsert writes one normalized order detail. Idempotent: a second
	// call with the same detail changes only updated_at.
	Upsert(ctx context.Context, d *Detail, companyID string, shopID int64) (*UpsertResult, error)

	// FindByOrderNum looks up by the (platform, order_num) functional key
	FindByOrderNum(ctx context.Context, orderNum string) (*Order, error)

	// FindByID looks up by the surrogate id
	FindByID(ctx context.Context, id string) (*Order, error)

	// TrackingCandidates returns, for the given order numbers, the rows
	// whose status means the marketplace may have a tracking number,
	// including rows whose stored number may have changed upstream.
	TrackingCandidates(ctx context.Context, shopID int64, orderSNs []string) ([]*TrackingCandidate, error)

	// AppendHistories records carrier events for the order's logistic
	// row, deduplicated on (logistic, tracking, event_time, status).
	AppendHistories(ctx context.Context, orderID string, histories []HistoryDetail) error

	// UpdateTracking writes a reconciled tracking number to the logistic
	// and every item of the order, preserving a non-empty carrier name
	// when the new one is empty, and moves the order to SHIPPED unless
	// it is already SHIPPED or COMPLETED.
	UpdateTracking(ctx context.Context, orderID, trackingNo, carrierName string) error

	// UpdateCarrier sets the carrier name on the order's logistic row;
	// an empty name never overwrites an existing one.
	UpdateCarrier(ctx context.Context, orderID, carrierName string) error

	// MissingCarrier returns up to limit orders with a tracking number
	// but no carrier name.
	MissingCarrier(ctx context.Context, shopID int64, limit int) ([]*TrackingCandidate, error)

	// MissingTracking returns up to limit orders with a carrier name but
	// no tracking number.
	MissingTracking(ctx context.Context, shopID int64, limit int) ([]*TrackingCandidate, error)
}
