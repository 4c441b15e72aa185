package shop

import (
	"context"
	"time"
)

// Repository provides access to shop identity rows and their credentials
type Repository interface {
	// ListActive returns non-tombstoned, active shops whose effective
	// sandbox environment matches the runtime's.
	ListActive(ctx context.Context, sandbox bool) ([]*Shop, error)

	// FindByID retrieves a shop by its internal key
	FindByID(ctx context.Context, id string) (*Shop, error)

	// FindByShopID retrieves a shop by its marketplace shop id
	FindByShopID(ctx context.Context, shopID int64) (*Shop, error)

	// FindWithCompany retrieves a shop joined to its company row
	FindWithCompany(ctx context.Context, id string) (*Shop, *Company, error)

	// UpdateToken atomically persists refreshed credentials for a shop
	UpdateToken(ctx context.Context, shopID int64, accessToken, refreshToken string, expireAt time.Time) error
}
