package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform is the constant platform tag for every ingested order
const Platform = "shopee"

// Order is the normalized order row. (Platform, OrderNum) is the
// functional key; ID is the surrogate primary key.
type Order struct {
	ID              string
	Platform        string
	OrderNum        string
	Status          Status
	ActionStatus    ActionStatus
	OtherStatus     string
	Country         string
	Currency        string
	OrderTime       *time.Time
	PayTime         *time.Time
	ShipByDate      *time.Time
	DaysToShip      int
	TotalAmount     decimal.Decimal
	CompanyID       string
	ShopID          int64
	FulfillmentFlag FulfillmentFlag
	CancelBy        string
	CancelReason    string
	MessageToSeller string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Logistic is the shipping record, exactly one per order. A synthetic
// empty row is created when an order is upserted before any shipping
// data exists, so item foreign keys always resolve.
type Logistic struct {
	ID                   string
	OrderID              string
	Name                 string
	TrackingNo           string
	EstimatedShippingFee decimal.Decimal
	ActualShippingFee    decimal.Decimal
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// LogisticHistory is one carrier event. (LogisticID, TrackingNo,
// EventTime, Status) deduplicates re-observations.
type LogisticHistory struct {
	ID         string
	LogisticID string
	TrackingNo string
	EventTime  *time.Time
	Location   string
	Status     string
}

// OrderItem is one line of an order. The item set is rewritten wholesale
// on every upsert; Index preserves positional order.
type OrderItem struct {
	ID            string
	OrderID       string
	LogisticID    string
	ItemRefID     string // synthetic opaque item key
	ItemID        int64  // marketplace item id
	SKU           string
	PromoSKU      string
	Name          string
	Variation     string
	Price         decimal.Decimal
	OriginalPrice decimal.Decimal
	Qty           int
	Weight        float64
	Index         int
	TrackingNo    string
	ImageURL      string
}

// Detail is the normalized projection of one marketplace order detail,
// handed to the repository for a transactional upsert.
type Detail struct {
	OrderSN              string
	Status               Status
	OtherStatus          string
	Country              string
	Currency             string
	OrderTime            int64 // epoch seconds, 0 when absent
	PayTime              int64
	ShipByDate           int64
	DaysToShip           int
	TotalAmount          decimal.Decimal
	FulfillmentFlag      FulfillmentFlag
	CancelBy             string
	CancelReason         string
	MessageToSeller      string
	CarrierName          string
	TrackingNo           string
	EstimatedShippingFee decimal.Decimal
	ActualShippingFee    decimal.Decimal
	Items                []ItemDetail
	Histories            []HistoryDetail
}

// ItemDetail is one projected line item
type ItemDetail struct {
	ItemID        int64
	SKU           string
	PromoSKU      string
	Name          string
	Variation     string
	Price         decimal.Decimal
	OriginalPrice decimal.Decimal
	Qty           int
	Weight        float64
	ImageURL      string
}

// HistoryDetail is one projected carrier event
type HistoryDetail struct {
	TrackingNo string
	EventTime  int64 // epoch seconds
	Location   string
	Status     string
}

// EpochToTime converts marketplace epoch seconds to a UTC wall-clock
// instant; zero epochs map to nil.
func EpochToTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
