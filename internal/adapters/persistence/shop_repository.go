package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tomsync/shopee-collector/internal/domain/shared"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
)

// GormShopRepository implements shop.Repository using GORM
type GormShopRepository struct {
	db *gorm.DB
}

// NewGormShopRepository creates a new GORM-based shop repository
func NewGormShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// ListActive returns active, non-tombstoned shops whose effective
// sandbox environment matches the runtime's. The company flag wins over
// the shop flag, so the filter runs in Go after loading the company
// rows.
func (r *GormShopRepository) ListActive(ctx context.Context, sandbox bool) ([]*shop.Shop, error) {
	var models []ShopModel
	if err := r.db.WithContext(ctx).
		Where("active = ? AND deleted = ?", true, false).
		Order("shop_id").
		Find(&models).Error; err != nil {
		return nil, shared.NewStorageError(err)
	}

	companies, err := r.companiesByID(ctx, models)
	if err != nil {
		return nil, err
	}

	var shops []*shop.Shop
	for i := range models {
		s := models[i].ToDomain()
		company := companies[s.CompanyID]
		if company != nil && company.Deleted {
			continue
		}
		if s.EffectiveSandbox(company) != sandbox {
			continue
		}
		shops = append(shops, s)
	}
	return shops, nil
}

func (r *GormShopRepository) companiesByID(ctx context.Context, models []ShopModel) (map[string]*shop.Company, error) {
	ids := make([]string, 0, len(models))
	seen := make(map[string]bool)
	for i := range models {
		id := models[i].CompanyID
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	companies := make(map[string]*shop.Company, len(ids))
	if len(ids) == 0 {
		return companies, nil
	}

	var rows []CompanyModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, shared.NewStorageError(err)
	}
	for i := range rows {
		companies[rows[i].ID] = rows[i].ToDomain()
	}
	return companies, nil
}

// FindByID retrieves a shop by its internal key
func (r *GormShopRepository) FindByID(ctx context.Context, id string) (*shop.Shop, error) {
	var model ShopModel
	err := r.db.WithContext(ctx).Where("id = ? AND deleted = ?", id, false).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.NewStorageError(err)
	}
	return model.ToDomain(), nil
}

// FindByShopID retrieves a shop by its marketplace shop id
func (r *GormShopRepository) FindByShopID(ctx context.Context, shopID int64) (*shop.Shop, error) {
	var model ShopModel
	err := r.db.WithContext(ctx).Where("shop_id = ? AND deleted = ?", shopID, false).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.NewStorageError(err)
	}
	return model.ToDomain(), nil
}

// FindWithCompany retrieves a shop joined to its company row. The
// company is nil when the shop has no company binding.
func (r *GormShopRepository) FindWithCompany(ctx context.Context, id string) (*shop.Shop, *shop.Company, error) {
	s, err := r.FindByID(ctx, id)
	if err != nil || s == nil {
		return s, nil, err
	}
	if s.CompanyID == "" {
		return s, nil, nil
	}

	var model CompanyModel
	err = r.db.WithContext(ctx).Where("id = ?", s.CompanyID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s, nil, nil
	}
	if err != nil {
		return nil, nil, shared.NewStorageError(err)
	}
	return s, model.ToDomain(), nil
}

// UpdateToken atomically persists refreshed credentials for a shop
func (r *GormShopRepository) UpdateToken(ctx context.Context, shopID int64, accessToken, refreshToken string, expireAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&ShopModel{}).
		Where("shop_id = ?", shopID).
		Updates(map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expire_at":     expireAt,
		})
	if result.Error != nil {
		return shared.NewStorageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewStorageError(gorm.ErrRecordNotFound)
	}
	return nil
}

// Save inserts or updates a shop row (fixtures and tests)
func (r *GormShopRepository) Save(ctx context.Context, s *shop.Shop) error {
	if err := r.db.WithContext(ctx).Save(ShopModelFromDomain(s)).Error; err != nil {
		return shared.NewStorageError(err)
	}
	return nil
}
