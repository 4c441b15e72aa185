package persistence_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomsync/shopee-collector/internal/adapters/persistence"
	"github.com/tomsync/shopee-collector/internal/domain/order"
	"github.com/tomsync/shopee-collector/test/helpers"
)

func sampleDetail() *order.Detail {
	return &order.Detail{
		OrderSN:         "2408SN001",
		Status:          order.StatusReadyToShip,
		OtherStatus:     order.OtherStatusNone,
		Country:         "MY",
		Currency:        "MYR",
		OrderTime:       1700000000,
		PayTime:         1700000100,
		DaysToShip:      3,
		TotalAmount:     decimal.NewFromFloat(129.9),
		FulfillmentFlag: order.FulfilledBySeller,
		CarrierName:     "J&T Express",
		Items: []order.ItemDetail{
			{ItemID: 11, SKU: "SKU-A", Name: "Widget", Qty: 2, Price: decimal.NewFromFloat(49.95)},
			{ItemID: 12, SKU: "SKU-B", Name: "Gadget", Qty: 1, Price: decimal.NewFromFloat(30)},
		},
	}
}

func TestOrderRepository_UpsertCreatesFullGraph(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	res, err := repo.Upsert(ctx, sampleDetail(), "comp-1", 123456)
	require.NoError(t, err)
	require.NotEmpty(t, res.OrderID)

	var o persistence.OrderModel
	require.NoError(t, db.Where("id = ?", res.OrderID).First(&o).Error)
	assert.Equal(t, "shopee", o.Platform)
	assert.Equal(t, "2408SN001", o.OrderNum)
	assert.Equal(t, string(order.StatusReadyToShip), o.Status)
	assert.Equal(t, string(order.ActionReadyToPrint), o.ActionStatus)
	assert.Equal(t, "comp-1", o.CompanyID)
	assert.Equal(t, int64(123456), o.ShopID)
	require.NotNil(t, o.OrderTime)
	assert.Equal(t, int64(1700000000), o.OrderTime.Unix())

	var logistic persistence.LogisticModel
	require.NoError(t, db.Where("toms_order_id = ?", res.OrderID).First(&logistic).Error)
	assert.Equal(t, "J&T Express", logistic.Name)

	var items []persistence.OrderItemModel
	require.NoError(t, db.Where("toms_order_id = ?", res.OrderID).Order("item_index").Find(&items).Error)
	require.Len(t, items, 2)
	assert.Equal(t, 0, items[0].ItemIndex)
	assert.Equal(t, 1, items[1].ItemIndex)
	assert.Equal(t, "SKU-A", items[0].SKU)
	assert.Equal(t, logistic.ID, items[0].TomsLogisticID)
	assert.NotEmpty(t, items[0].TomsItemID)
}

func TestOrderRepository_UpsertIsIdempotent(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, sampleDetail(), "comp-1", 123456)
	require.NoError(t, err)
	second, err := repo.Upsert(ctx, sampleDetail(), "comp-1", 123456)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)

	var orderCount, logisticCount, itemCount int64
	db.Model(&persistence.OrderModel{}).Count(&orderCount)
	db.Model(&persistence.LogisticModel{}).Count(&logisticCount)
	db.Model(&persistence.OrderItemModel{}).Count(&itemCount)
	assert.Equal(t, int64(1), orderCount)
	assert.Equal(t, int64(1), logisticCount)
	assert.Equal(t, int64(2), itemCount)
}

func TestOrderRepository_EmptyCarrierNeverClearsStored(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	res, err := repo.Upsert(ctx, sampleDetail(), "comp-1", 123456)
	require.NoError(t, err)

	d := sampleDetail()
	d.CarrierName = ""
	_, err = repo.Upsert(ctx, d, "comp-1", 123456)
	require.NoError(t, err)

	var logistic persistence.LogisticModel
	require.NoError(t, db.Where("toms_order_id = ?", res.OrderID).First(&logistic).Error)
	assert.Equal(t, "J&T Express", logistic.Name)
}

func TestOrderRepository_SyntheticLogisticWithoutShippingData(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)

	d := sampleDetail()
	d.CarrierName = ""
	d.TrackingNo = ""
	res, err := repo.Upsert(context.Background(), d, "comp-1", 123456)
	require.NoError(t, err)

	var logistic persistence.LogisticModel
	require.NoError(t, db.Where("toms_order_id = ?", res.OrderID).First(&logistic).Error)
	assert.Empty(t, logistic.Name)
	assert.Empty(t, logistic.TrackingNo)
}

func TestOrderRepository_ItemsRewrittenWholesale(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	res, err := repo.Upsert(ctx, sampleDetail(), "comp-1", 123456)
	require.NoError(t, err)

	d := sampleDetail()
	d.Items = d.Items[:1]
	d.Items[0].Qty = 5
	_, err = repo.Upsert(ctx, d, "comp-1", 123456)
	require.NoError(t, err)

	var items []persistence.OrderItemModel
	require.NoError(t, db.Where("toms_order_id = ?", res.OrderID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Qty)
}

func TestOrderRepository_HistoryDeduplication(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	d := sampleDetail()
	d.TrackingNo = "TRK1"
	d.Histories = []order.HistoryDetail{
		{TrackingNo: "TRK1", EventTime: 1700000200, Location: "Hub A", Status: "picked_up"},
	}
	_, err := repo.Upsert(ctx, d, "comp-1", 123456)
	require.NoError(t, err)

	// Same event re-observed with a refined location
	d.Histories[0].Location = "Hub A, Dock 3"
	_, err = repo.Upsert(ctx, d, "comp-1", 123456)
	require.NoError(t, err)

	var histories []persistence.LogisticHistoryModel
	require.NoError(t, db.Find(&histories).Error)
	require.Len(t, histories, 1)
	assert.Equal(t, "Hub A, Dock 3", histories[0].Location)

	// A distinct event adds a row
	d.Histories = append(d.Histories, order.HistoryDetail{
		TrackingNo: "TRK1", EventTime: 1700000300, Location: "Hub B", Status: "in_transit",
	})
	_, err = repo.Upsert(ctx, d, "comp-1", 123456)
	require.NoError(t, err)

	require.NoError(t, db.Find(&histories).Error)
	assert.Len(t, histories, 2)
}

func TestOrderRepository_AppendHistories(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	d := sampleDetail()
	d.TrackingNo = "TRK1"
	res, err := repo.Upsert(ctx, d, "comp-1", 123456)
	require.NoError(t, err)

	events := []order.HistoryDetail{
		{TrackingNo: "TRK1", EventTime: 1700000200, Location: "Hub A", Status: "picked_up"},
		{TrackingNo: "TRK1", EventTime: 1700000300, Location: "Hub B", Status: "in_transit"},
	}
	require.NoError(t, repo.AppendHistories(ctx, res.OrderID, events))

	var histories []persistence.LogisticHistoryModel
	require.NoError(t, db.Find(&histories).Error)
	assert.Len(t, histories, 2)

	// Re-appending the same trail adds nothing
	require.NoError(t, repo.AppendHistories(ctx, res.OrderID, events))
	require.NoError(t, db.Find(&histories).Error)
	assert.Len(t, histories, 2)
}

func TestOrderRepository_UpdateTracking(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	d := sampleDetail()
	d.Status = order.StatusProcessed
	res, err := repo.Upsert(ctx, d, "comp-1", 123456)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateTracking(ctx, res.OrderID, "TRK9", "Ninja Van"))

	var logistic persistence.LogisticModel
	require.NoError(t, db.Where("toms_order_id = ?", res.OrderID).First(&logistic).Error)
	assert.Equal(t, "TRK9", logistic.TrackingNo)
	assert.Equal(t, "Ninja Van", logistic.Name)

	var items []persistence.OrderItemModel
	require.NoError(t, db.Where("toms_order_id = ?", res.OrderID).Find(&items).Error)
	for _, it := range items {
		assert.Equal(t, "TRK9", it.TrackingNo)
	}

	var o persistence.OrderModel
	require.NoError(t, db.Where("id = ?", res.OrderID).First(&o).Error)
	assert.Equal(t, string(order.StatusShipped), o.Status)
	assert.Equal(t, string(order.ActionExported), o.ActionStatus)
}

func TestOrderRepository_UpdateTrackingKeepsCompletedStatus(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	d := sampleDetail()
	d.Status = order.StatusCompleted
	res, err := repo.Upsert(ctx, d, "comp-1", 123456)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateTracking(ctx, res.OrderID, "TRK9", ""))

	var o persistence.OrderModel
	require.NoError(t, db.Where("id = ?", res.OrderID).First(&o).Error)
	assert.Equal(t, string(order.StatusCompleted), o.Status)
}

func TestOrderRepository_TrackingCandidates(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	eligible := sampleDetail()
	eligible.Status = order.StatusProcessed
	_, err := repo.Upsert(ctx, eligible, "comp-1", 123456)
	require.NoError(t, err)

	notEligible := sampleDetail()
	notEligible.OrderSN = "2408SN002"
	notEligible.Status = order.StatusUnpaid
	_, err = repo.Upsert(ctx, notEligible, "comp-1", 123456)
	require.NoError(t, err)

	// Already tracked but still eligible: the stored number may have
	// changed upstream, so the row stays a candidate.
	tracked := sampleDetail()
	tracked.OrderSN = "2408SN003"
	tracked.Status = order.StatusShipped
	tracked.TrackingNo = "TRK-EXISTS"
	_, err = repo.Upsert(ctx, tracked, "comp-1", 123456)
	require.NoError(t, err)

	candidates, err := repo.TrackingCandidates(ctx, 123456,
		[]string{"2408SN001", "2408SN002", "2408SN003"})
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	bySN := make(map[string]*order.TrackingCandidate, len(candidates))
	for _, c := range candidates {
		bySN[c.OrderSN] = c
	}
	require.Contains(t, bySN, "2408SN001")
	require.Contains(t, bySN, "2408SN003")
	assert.Empty(t, bySN["2408SN001"].TrackingNo)
	assert.Equal(t, "TRK-EXISTS", bySN["2408SN003"].TrackingNo)
}

func TestOrderRepository_RepairQueries(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	noCarrier := sampleDetail()
	noCarrier.CarrierName = ""
	noCarrier.TrackingNo = "TRK1"
	_, err := repo.Upsert(ctx, noCarrier, "comp-1", 123456)
	require.NoError(t, err)

	noTracking := sampleDetail()
	noTracking.OrderSN = "2408SN002"
	_, err = repo.Upsert(ctx, noTracking, "comp-1", 123456)
	require.NoError(t, err)

	missingCarrier, err := repo.MissingCarrier(ctx, 123456, 20)
	require.NoError(t, err)
	require.Len(t, missingCarrier, 1)
	assert.Equal(t, "2408SN001", missingCarrier[0].OrderSN)

	missingTracking, err := repo.MissingTracking(ctx, 123456, 20)
	require.NoError(t, err)
	require.Len(t, missingTracking, 1)
	assert.Equal(t, "2408SN002", missingTracking[0].OrderSN)
}

func TestOrderRepository_MissingOrderSNFailsCleanly(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)

	d := sampleDetail()
	d.OrderSN = ""
	_, err := repo.Upsert(context.Background(), d, "comp-1", 123456)
	require.Error(t, err)

	var count int64
	db.Model(&persistence.OrderModel{}).Count(&count)
	assert.Zero(t, count)
}

func TestOrderRepository_FindByOrderNum(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormOrderRepository(db)
	ctx := context.Background()

	res, err := repo.Upsert(ctx, sampleDetail(), "comp-1", 123456)
	require.NoError(t, err)

	found, err := repo.FindByOrderNum(ctx, "2408SN001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, res.OrderID, found.ID)

	missing, err := repo.FindByOrderNum(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
