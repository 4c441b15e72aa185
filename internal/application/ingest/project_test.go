package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomsync/shopee-collector/internal/domain/order"
	"github.com/tomsync/shopee-collector/internal/domain/ports"
)

func TestProjectDetail_CarrierPriority(t *testing.T) {
	d := &ports.OrderDetail{
		OrderSN:                 "SN1",
		ShippingCarrier:         "Order Carrier",
		CheckoutShippingCarrier: "Checkout Carrier",
		PackageList: []ports.PackageInfo{
			{PackageNumber: "PKG1"},
			{PackageNumber: "PKG2", ShippingCarrier: "Package Carrier"},
		},
	}
	assert.Equal(t, "Package Carrier", projectDetail(d).CarrierName)

	d.PackageList = nil
	assert.Equal(t, "Order Carrier", projectDetail(d).CarrierName)

	d.ShippingCarrier = ""
	assert.Equal(t, "Checkout Carrier", projectDetail(d).CarrierName)
}

func TestProjectDetail_NoTrackingDerivedFromIdentifiers(t *testing.T) {
	d := &ports.OrderDetail{
		OrderSN:     "2408SN001",
		PackageList: []ports.PackageInfo{{PackageNumber: "PKG123"}},
	}
	// Neither the order number nor a package number is a tracking number
	assert.Empty(t, projectDetail(d).TrackingNo)
}

func TestProjectDetail_SKUFallbackChain(t *testing.T) {
	d := &ports.OrderDetail{
		OrderSN: "SN1",
		ItemList: []ports.ItemInfo{
			{ItemID: 1, ItemSKU: "ITEM-SKU", ModelSKU: "MODEL-SKU"},
			{ItemID: 2, ModelSKU: "MODEL-SKU"},
			{ItemID: 777},
		},
	}

	items := projectDetail(d).Items
	require.Len(t, items, 3)
	assert.Equal(t, "ITEM-SKU", items[0].SKU)
	assert.Equal(t, "MODEL-SKU", items[1].SKU)
	assert.Equal(t, "shopee-777", items[2].SKU)
}

func TestProjectDetail_FulfillmentAndStatus(t *testing.T) {
	d := &ports.OrderDetail{
		OrderSN:         "SN1",
		OrderStatus:     "READY_TO_SHIP",
		FulfillmentFlag: "fulfilled_by_shopee",
	}

	got := projectDetail(d)
	assert.Equal(t, order.StatusReadyToShip, got.Status)
	assert.Equal(t, order.FulfilledByShopee, got.FulfillmentFlag)
	assert.Equal(t, order.OtherStatusNone, got.OtherStatus)
}

func TestProjectDetail_MoneyAndTimes(t *testing.T) {
	d := &ports.OrderDetail{
		OrderSN:     "SN1",
		TotalAmount: 129.95,
		CreateTime:  1700000000,
	}

	got := projectDetail(d)
	assert.Equal(t, "129.95", got.TotalAmount.String())
	assert.Equal(t, int64(1700000000), got.OrderTime)
	assert.Zero(t, got.PayTime)
}
