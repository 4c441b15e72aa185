package ports

import (
	"context"

	"github.com/tomsync/shopee-collector/internal/domain/shop"
)

// TokenGrant is the result of a token get/refresh exchange
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpireIn     int64 // seconds
}

// OrderListQuery bounds an order listing call. TimeFrom/TimeTo are epoch
// seconds against the update_time range field.
type OrderListQuery struct {
	TimeFrom    int64
	TimeTo      int64
	PageSize    int
	OrderStatus string
}

// OrderListEntry is one row of get_order_list
type OrderListEntry struct {
	OrderSN     string
	OrderStatus string
}

// PackageInfo is one package of an order detail. PackageNumber is a
// package identifier, not a tracking number.
type PackageInfo struct {
	PackageNumber   string
	ShippingCarrier string
	LogisticsStatus string
}

// ItemInfo is one line of an order detail's item_list
type ItemInfo struct {
	ItemID               int64
	ItemName             string
	ItemSKU              string
	ModelSKU             string
	ModelName            string
	ModelOriginalPrice   float64
	ModelDiscountedPrice float64
	Quantity             int
	Weight               float64
	ImageURL             string
}

// OrderDetail mirrors the get_order_detail response for one order
type OrderDetail struct {
	OrderSN                 string
	OrderStatus             string
	Region                  string
	Currency                string
	CreateTime              int64
	UpdateTime              int64
	PayTime                 int64
	ShipByDate              int64
	DaysToShip              int
	TotalAmount             float64
	ActualShippingFee       float64
	EstimatedShippingFee    float64
	FulfillmentFlag         string
	ShippingCarrier         string
	CheckoutShippingCarrier string
	CancelBy                string
	CancelReason            string
	MessageToSeller         string
	PackageList             []PackageInfo
	ItemList                []ItemInfo
}

// ShipmentEntry is one row of get_shipment_list
type ShipmentEntry struct {
	OrderSN       string
	PackageNumber string
}

// TrackingNumberInfo is the get_tracking_number response. The tracking
// number is extracted by priority across the four fields; plp_number is
// last because it only exists for PLP shipments.
type TrackingNumberInfo struct {
	TrackingNumber          string
	FirstMileTrackingNumber string
	LastMileTrackingNumber  string
	PLPNumber               string
	ShippingProviderName    string
	LogisticName            string
	CarrierName             string
	ShippingProvider        string
	Carrier                 string
	LogisticsChannel        string
}

// Best returns the first non-empty tracking number by priority
func (t *TrackingNumberInfo) Best() string {
	for _, n := range []string{t.TrackingNumber, t.FirstMileTrackingNumber, t.LastMileTrackingNumber, t.PLPNumber} {
		if n != "" {
			return n
		}
	}
	return ""
}

// BestCarrier returns the first non-empty carrier name by priority
func (t *TrackingNumberInfo) BestCarrier() string {
	for _, n := range []string{t.ShippingProviderName, t.LogisticName, t.CarrierName, t.ShippingProvider, t.Carrier, t.LogisticsChannel} {
		if n != "" {
			return n
		}
	}
	return ""
}

// TrackingEvent is one carrier scan of get_tracking_info
type TrackingEvent struct {
	UpdateTime      int64
	Description     string
	LogisticsStatus string
}

// TrackingInfo is the detailed event trail for one tracking number
type TrackingInfo struct {
	OrderSN        string
	TrackingNumber string
	Events         []TrackingEvent
}

// MarketplaceClient is the signed marketplace API surface used by the
// ingestion pipeline. Implementations handle signing, the common auth
// query parameters, envelope error decoding, and cursor pagination.
type MarketplaceClient interface {
	// GetAccessToken exchanges an authorization code for tokens
	GetAccessToken(ctx context.Context, code string, shopID int64) (*TokenGrant, error)

	// RefreshAccessToken exchanges a refresh token for a new token pair
	RefreshAccessToken(ctx context.Context, refreshToken string, shopID int64) (*TokenGrant, error)

	// GetOrderList walks every cursor page of get_order_list for the
	// query window and returns the accumulated entries.
	GetOrderList(ctx context.Context, s *shop.Shop, q OrderListQuery) ([]OrderListEntry, error)

	// GetOrderDetail fetches detail records for up to 50 order numbers
	GetOrderDetail(ctx context.Context, s *shop.Shop, orderSNs []string) ([]OrderDetail, error)

	// GetShipmentList walks every cursor page of get_shipment_list
	GetShipmentList(ctx context.Context, s *shop.Shop) ([]ShipmentEntry, error)

	// GetTrackingNumber fetches the tracking number for one order.
	// packageNumber may be empty.
	GetTrackingNumber(ctx context.Context, s *shop.Shop, orderSN, packageNumber string) (*TrackingNumberInfo, error)

	// GetTrackingInfo fetches the carrier event trail for a tracking number
	GetTrackingInfo(ctx context.Context, s *shop.Shop, trackingNumber string) (*TrackingInfo, error)
}
