package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tomsync/shopee-collector/internal/adapters/persistence"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
	"github.com/tomsync/shopee-collector/test/helpers"
)

func seedCompany(t *testing.T, db *gorm.DB, id string, sandbox, deleted bool) {
	t.Helper()
	require.NoError(t, db.Create(&persistence.CompanyModel{ID: id, Name: id, IsSandbox: sandbox, Deleted: deleted}).Error)
}

func seedShopRow(t *testing.T, db *gorm.DB, id string, shopID int64, companyID string, active, sandbox bool) {
	t.Helper()
	require.NoError(t, db.Create(&persistence.ShopModel{
		ID:         id,
		ShopID:     shopID,
		PartnerID:  843259,
		PartnerKey: "secret",
		Active:     active,
		IsSandbox:  sandbox,
		CompanyID:  companyID,
	}).Error)
}

func TestShopRepository_ListActiveFiltersByEnvironment(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)
	ctx := context.Background()

	seedCompany(t, db, "prod-co", false, false)
	seedCompany(t, db, "sandbox-co", true, false)

	seedShopRow(t, db, "s1", 100, "prod-co", true, false)
	seedShopRow(t, db, "s2", 200, "sandbox-co", true, false) // company forces sandbox
	seedShopRow(t, db, "s3", 300, "", true, false)
	seedShopRow(t, db, "s4", 400, "prod-co", false, false) // inactive
	seedShopRow(t, db, "s5", 500, "", true, true)          // own flag says sandbox

	prod, err := repo.ListActive(ctx, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{100, 300}, shopIDs(prod))

	sandbox, err := repo.ListActive(ctx, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{200, 500}, shopIDs(sandbox))
}

func TestShopRepository_CompanyFlagWinsOverShopFlag(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)

	seedCompany(t, db, "prod-co", false, false)
	// Shop says sandbox but its company says production
	seedShopRow(t, db, "s1", 100, "prod-co", true, true)

	prod, err := repo.ListActive(context.Background(), false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{100}, shopIDs(prod))
}

func TestShopRepository_InactiveShopPersistsAsInactive(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)

	seedShopRow(t, db, "s1", 100, "", false, false)

	var model persistence.ShopModel
	require.NoError(t, db.Where("shop_id = ?", 100).First(&model).Error)
	assert.False(t, model.Active)

	shops, err := repo.ListActive(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, shops)
}

func TestShopRepository_DeletedCompanyHidesShops(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)

	seedCompany(t, db, "gone-co", false, true)
	seedShopRow(t, db, "s1", 100, "gone-co", true, false)

	shops, err := repo.ListActive(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, shops)
}

func TestShopRepository_FindWithCompany(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)
	ctx := context.Background()

	seedCompany(t, db, "co-1", true, false)
	seedShopRow(t, db, "s1", 100, "co-1", true, false)
	seedShopRow(t, db, "s2", 200, "", true, false)

	s, company, err := repo.FindWithCompany(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, company)
	assert.True(t, company.IsSandbox)

	s, company, err = repo.FindWithCompany(ctx, "s2")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Nil(t, company)
}

func TestShopRepository_UpdateToken(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)
	ctx := context.Background()

	seedShopRow(t, db, "s1", 100, "", true, false)

	expireAt := time.Unix(1700014400, 0).UTC()
	require.NoError(t, repo.UpdateToken(ctx, 100, "new-access", "new-refresh", expireAt))

	s, err := repo.FindByShopID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "new-access", s.AccessToken)
	assert.Equal(t, "new-refresh", s.RefreshToken)
	require.NotNil(t, s.ExpireAt)
	assert.Equal(t, expireAt.Unix(), s.ExpireAt.Unix())

	err = repo.UpdateToken(ctx, 999, "a", "r", expireAt)
	require.Error(t, err)
}

func TestShopRepository_FindMissingReturnsNil(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)

	s, err := repo.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func shopIDs(shops []*shop.Shop) []int64 {
	ids := make([]int64, 0, len(shops))
	for _, s := range shops {
		ids = append(ids, s.ShopID)
	}
	return ids
}
