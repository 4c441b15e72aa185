package ingest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tomsync/shopee-collector/internal/domain/order"
	"github.com/tomsync/shopee-collector/internal/domain/ports"
)

// projectDetail normalizes one marketplace order detail into the shape
// the repository persists. No tracking number is derived here: the
// order number is never a tracking number, and package numbers are
// package identifiers only.
func projectDetail(d *ports.OrderDetail) *order.Detail {
	return &order.Detail{
		OrderSN:              d.OrderSN,
		Status:               order.Status(d.OrderStatus),
		OtherStatus:          order.OtherStatusNone,
		Country:              d.Region,
		Currency:             d.Currency,
		OrderTime:            d.CreateTime,
		PayTime:              d.PayTime,
		ShipByDate:           d.ShipByDate,
		DaysToShip:           d.DaysToShip,
		TotalAmount:          decimal.NewFromFloat(d.TotalAmount),
		FulfillmentFlag:      order.NormalizeFulfillmentFlag(d.FulfillmentFlag),
		CancelBy:             d.CancelBy,
		CancelReason:         d.CancelReason,
		MessageToSeller:      d.MessageToSeller,
		CarrierName:          projectCarrier(d),
		EstimatedShippingFee: decimal.NewFromFloat(d.EstimatedShippingFee),
		ActualShippingFee:    decimal.NewFromFloat(d.ActualShippingFee),
		Items:                projectItems(d),
	}
}

// projectCarrier picks the carrier name by priority: the first package's
// carrier, then the order-level carrier, then the checkout carrier.
func projectCarrier(d *ports.OrderDetail) string {
	for _, p := range d.PackageList {
		if p.ShippingCarrier != "" {
			return p.ShippingCarrier
		}
	}
	if d.ShippingCarrier != "" {
		return d.ShippingCarrier
	}
	return d.CheckoutShippingCarrier
}

func projectItems(d *ports.OrderDetail) []order.ItemDetail {
	items := make([]order.ItemDetail, 0, len(d.ItemList))
	for _, it := range d.ItemList {
		sku := it.ItemSKU
		if sku == "" {
			sku = it.ModelSKU
		}
		if sku == "" {
			// Synthetic SKU so downstream systems always have a key
			sku = fmt.Sprintf("shopee-%d", it.ItemID)
		}
		items = append(items, order.ItemDetail{
			ItemID:        it.ItemID,
			SKU:           sku,
			PromoSKU:      it.ModelSKU,
			Name:          it.ItemName,
			Variation:     it.ModelName,
			Price:         decimal.NewFromFloat(it.ModelDiscountedPrice),
			OriginalPrice: decimal.NewFromFloat(it.ModelOriginalPrice),
			Qty:           it.Quantity,
			Weight:        it.Weight,
			ImageURL:      it.ImageURL,
		})
	}
	return items
}
