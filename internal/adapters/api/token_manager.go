package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomsync/shopee-collector/internal/domain/ports"
	"github.com/tomsync/shopee-collector/internal/domain/shared"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
)

// RefreshSkew is how long before expiry a token counts as expiring
const RefreshSkew = 300 * time.Second

// TokenManager refreshes shop access tokens ahead of expiry and persists
// the new pair before any ingestion call uses it. Refreshes for the same
// shop are serialized; a second caller waits and then sees the fresh
// token instead of refreshing again.
type TokenManager struct {
	client ports.MarketplaceClient
	shops  shop.Repository
	clock  shared.Clock
	log    *logrus.Entry
	skew   time.Duration

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewTokenManager creates a token manager; nil clock uses the real clock
func NewTokenManager(client ports.MarketplaceClient, shops shop.Repository, log *logrus.Logger, clock shared.Clock) *TokenManager {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if log == nil {
		log = logrus.New()
	}
	return &TokenManager{
		client: client,
		shops:  shops,
		clock:  clock,
		log:    log.WithField("component", "token-manager"),
		skew:   RefreshSkew,
		locks:  make(map[int64]*sync.Mutex),
	}
}

func (m *TokenManager) lockFor(shopID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[shopID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[shopID] = l
	}
	return l
}

// Ensure returns a shop whose access token is valid for at least the
// refresh skew, refreshing and persisting a new pair when needed. The
// input shop is not mutated.
func (m *TokenManager) Ensure(ctx context.Context, s *shop.Shop) (*shop.Shop, error) {
	if !s.TokenExpiring(m.clock.Now(), m.skew) {
		return s, nil
	}

	lock := m.lockFor(s.ShopID)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have refreshed while we waited
	current, err := m.shops.FindByShopID(ctx, s.ShopID)
	if err == nil && current != nil && !current.TokenExpiring(m.clock.Now(), m.skew) {
		return current, nil
	}
	if current == nil {
		current = s
	}

	if current.RefreshToken == "" {
		return nil, shared.NewTokenError(s.ShopID, shared.NewDataError("", "refresh_token"))
	}

	grant, err := m.client.RefreshAccessToken(ctx, current.RefreshToken, current.ShopID)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"shop_id": current.ShopID,
			"error":   err,
		}).Error("Token refresh failed")
		return nil, shared.NewTokenError(current.ShopID, err)
	}

	expireAt := m.clock.Now().Add(time.Duration(grant.ExpireIn) * time.Second)
	if err := m.shops.UpdateToken(ctx, current.ShopID, grant.AccessToken, grant.RefreshToken, expireAt); err != nil {
		return nil, shared.NewTokenError(current.ShopID, err)
	}

	refreshed := *current
	refreshed.AccessToken = grant.AccessToken
	refreshed.RefreshToken = grant.RefreshToken
	refreshed.ExpireAt = &expireAt

	m.log.WithFields(logrus.Fields{
		"shop_id":   refreshed.ShopID,
		"expire_at": expireAt.UTC().Format(time.RFC3339),
	}).Info("Access token refreshed")

	return &refreshed, nil
}
