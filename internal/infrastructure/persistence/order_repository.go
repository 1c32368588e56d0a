package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements integration.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Upsert inserts the order or refreshes the row with the same
// (shop_id, order_sn). The persisted id is read back because on conflict
// the existing row keeps its id.
func (r *GormOrderRepository) Upsert(ctx context.Context, order *integration.Order) error {
	now := time.Now()
	model := &models.MarketplaceOrderModel{}
	model.FromDomain(order)
	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = now

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_id"}, {Name: "order_sn"}},
		DoUpdates: clause.AssignmentColumns(models.MarketplaceOrderUpsertColumns),
	}).Create(model).Error; err != nil {
		return err
	}

	var stored models.MarketplaceOrderModel
	if err := db.Select("id", "created_at", "updated_at").
		Where("shop_id = ? AND order_sn = ?", order.ShopID, order.OrderSN).
		First(&stored).Error; err != nil {
		return err
	}
	order.ID = stored.ID
	order.CreatedAt = stored.CreatedAt
	order.UpdatedAt = stored.UpdatedAt
	return nil
}

// FindByOrderSN finds an order of a shop by its marketplace order number
func (r *GormOrderRepository) FindByOrderSN(ctx context.Context, shopID uuid.UUID, orderSN string) (*integration.Order, error) {
	var model models.MarketplaceOrderModel
	if err := r.db.WithContext(ctx).
		Scopes(ShopScope("shop_id", shopID)).
		Where("order_sn = ?", orderSN).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an order by its local id
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Order, error) {
	var model models.MarketplaceOrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormOrderRepository implements the interface
var _ integration.OrderRepository = (*GormOrderRepository)(nil)
