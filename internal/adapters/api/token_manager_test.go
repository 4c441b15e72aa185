package api

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomsync/shopee-collector/internal/adapters/persistence"
	"github.com/tomsync/shopee-collector/internal/domain/ports"
	"github.com/tomsync/shopee-collector/internal/domain/shared"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
	"github.com/tomsync/shopee-collector/test/helpers"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func seedShop(t *testing.T, repo *persistence.GormShopRepository, expireAt time.Time) *shop.Shop {
	t.Helper()
	s := &shop.Shop{
		ID:           "shop-1",
		ShopID:       123456,
		PartnerID:    843259,
		PartnerKey:   "secret",
		AccessToken:  "current-token",
		RefreshToken: "current-refresh",
		ExpireAt:     &expireAt,
		Active:       true,
	}
	require.NoError(t, repo.Save(context.Background(), s))
	return s
}

func TestTokenManager_FreshTokenPassesThrough(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)
	now := time.Unix(1700000000, 0).UTC()
	clock := shared.NewMockClock(now)

	refreshCalls := 0
	client := &helpers.FakeMarketplaceClient{
		RefreshAccessTokenFn: func(ctx context.Context, refreshToken string, shopID int64) (*ports.TokenGrant, error) {
			refreshCalls++
			return nil, shared.NewAPIError("/auth", "error_auth", "no", 200)
		},
	}

	s := seedShop(t, repo, now.Add(time.Hour))
	tm := NewTokenManager(client, repo, quietLog(), clock)

	got, err := tm.Ensure(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "current-token", got.AccessToken)
	assert.Zero(t, refreshCalls)
}

func TestTokenManager_RefreshesWithinSkew(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)
	now := time.Unix(1700000000, 0).UTC()
	clock := shared.NewMockClock(now)

	client := &helpers.FakeMarketplaceClient{
		RefreshAccessTokenFn: func(ctx context.Context, refreshToken string, shopID int64) (*ports.TokenGrant, error) {
			assert.Equal(t, "current-refresh", refreshToken)
			assert.Equal(t, int64(123456), shopID)
			return &ports.TokenGrant{AccessToken: "new-token", RefreshToken: "new-refresh", ExpireIn: 14400}, nil
		},
	}

	// Expires 60s from now, inside the 300s skew
	s := seedShop(t, repo, now.Add(60*time.Second))
	tm := NewTokenManager(client, repo, quietLog(), clock)

	got, err := tm.Ensure(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "new-token", got.AccessToken)
	assert.Equal(t, "new-refresh", got.RefreshToken)
	require.NotNil(t, got.ExpireAt)
	assert.Equal(t, now.Add(14400*time.Second), got.ExpireAt.UTC())

	// New pair was persisted before returning
	persisted, err := repo.FindByShopID(context.Background(), 123456)
	require.NoError(t, err)
	assert.Equal(t, "new-token", persisted.AccessToken)
	assert.Equal(t, "new-refresh", persisted.RefreshToken)
}

func TestTokenManager_RefreshFailureIsTokenError(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)
	now := time.Unix(1700000000, 0).UTC()

	client := &helpers.FakeMarketplaceClient{
		RefreshAccessTokenFn: func(ctx context.Context, refreshToken string, shopID int64) (*ports.TokenGrant, error) {
			return nil, shared.NewAPIError("/auth", "invalid_token", "refresh token revoked", 200)
		},
	}

	s := seedShop(t, repo, now.Add(-time.Hour))
	tm := NewTokenManager(client, repo, quietLog(), shared.NewMockClock(now))

	_, err := tm.Ensure(context.Background(), s)
	require.Error(t, err)

	var tokenErr *shared.TokenError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, int64(123456), tokenErr.ShopID)

	// Old credentials survive a failed refresh
	persisted, err := repo.FindByShopID(context.Background(), 123456)
	require.NoError(t, err)
	assert.Equal(t, "current-token", persisted.AccessToken)
}

func TestTokenManager_MissingRefreshToken(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormShopRepository(db)
	now := time.Unix(1700000000, 0).UTC()

	s := &shop.Shop{ID: "shop-2", ShopID: 999, PartnerID: 1, PartnerKey: "k", Active: true}
	require.NoError(t, repo.Save(context.Background(), s))

	tm := NewTokenManager(&helpers.FakeMarketplaceClient{}, repo, quietLog(), shared.NewMockClock(now))

	_, err := tm.Ensure(context.Background(), s)
	var tokenErr *shared.TokenError
	require.ErrorAs(t, err, &tokenErr)
}
