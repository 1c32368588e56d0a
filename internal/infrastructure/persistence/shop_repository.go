package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormShopRepository implements integration.ShopRepository using GORM
type GormShopRepository struct {
	db *gorm.DB
}

// NewGormShopRepository creates a new GormShopRepository
func NewGormShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// FindByShopID finds a shop by its marketplace shop id
func (r *GormShopRepository) FindByShopID(ctx context.Context, shopID int64) (*integration.Shop, error) {
	var model models.ShopModel
	if err := r.db.WithContext(ctx).First(&model, "shop_id = ?", shopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrShopNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListActive returns all active shops
func (r *GormShopRepository) ListActive(ctx context.Context) ([]integration.Shop, error) {
	var shopModels []models.ShopModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("shop_id ASC").
		Find(&shopModels).Error; err != nil {
		return nil, err
	}

	shops := make([]integration.Shop, len(shopModels))
	for i, model := range shopModels {
		shops[i] = *model.ToDomain()
	}
	return shops, nil
}

// Save inserts the shop or updates the registration with the same
// marketplace shop id. shop.ID is set to the persisted identifier.
func (r *GormShopRepository) Save(ctx context.Context, shop *integration.Shop) error {
	model := &models.ShopModel{}
	model.FromDomain(shop)
	model.UpdatedAt = time.Now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = model.UpdatedAt
	}

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "region", "access_token", "is_active", "updated_at"}),
	}).Create(model).Error; err != nil {
		return err
	}

	var stored models.ShopModel
	if err := db.Select("id", "created_at", "updated_at").First(&stored, "shop_id = ?", shop.ShopID).Error; err != nil {
		return err
	}
	shop.ID = stored.ID
	shop.CreatedAt = stored.CreatedAt
	shop.UpdatedAt = stored.UpdatedAt
	return nil
}

// UpdateAccessToken stores a refreshed access token
func (r *GormShopRepository) UpdateAccessToken(ctx context.Context, shopID int64, token string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ShopModel{}).
		Where("shop_id = ?", shopID).
		Updates(map[string]any{
			"access_token": token,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrShopNotFound
	}
	return nil
}

// Ensure GormShopRepository implements the interface
var _ integration.ShopRepository = (*GormShopRepository)(nil)
