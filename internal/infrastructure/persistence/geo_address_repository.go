package persistence

import (
	"context"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormGeoAddressRepository implements integration.GeoAddressRepository
// using GORM
type GormGeoAddressRepository struct {
	db *gorm.DB
}

// NewGormGeoAddressRepository creates a new GormGeoAddressRepository
func NewGormGeoAddressRepository(db *gorm.DB) *GormGeoAddressRepository {
	return &GormGeoAddressRepository{db: db}
}

// UpsertFillMissing inserts the projection, or fills the columns of the
// existing row that are still NULL. Set columns are never overwritten.
func (r *GormGeoAddressRepository) UpsertFillMissing(ctx context.Context, geo *integration.GeoAddress) error {
	model := &models.GeoAddressModel{}
	model.FromDomain(geo)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).Create(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		fill := func(column string, values map[string]any) error {
			values["updated_at"] = geo.UpdatedAt
			return tx.Model(&models.GeoAddressModel{}).
				Where("order_id = ? AND "+column+" IS NULL", geo.OrderID).
				Updates(values).Error
		}
		if geo.City != nil && geo.CityNorm != nil {
			if err := fill("city", map[string]any{"city": *geo.City, "city_norm": *geo.CityNorm}); err != nil {
				return err
			}
		}
		if geo.Zipcode != nil {
			if err := fill("zipcode", map[string]any{"zipcode": *geo.Zipcode}); err != nil {
				return err
			}
		}
		if geo.FullAddress != nil {
			if err := fill("full_address", map[string]any{"full_address": *geo.FullAddress}); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByOrderID returns the projection of an order or nil
func (r *GormGeoAddressRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*integration.GeoAddress, error) {
	var geoModels []models.GeoAddressModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Limit(1).
		Find(&geoModels).Error; err != nil {
		return nil, err
	}
	if len(geoModels) == 0 {
		return nil, nil
	}
	return geoModels[0].ToDomain(), nil
}

type geoStateRow struct {
	State     string `gorm:"column:state"`
	StateNorm string `gorm:"column:state_norm"`
	Orders    int64  `gorm:"column:orders"`
	GMVCents  int64  `gorm:"column:gmv_cents"`
}

// CountByState aggregates order counts and GMV per state
func (r *GormGeoAddressRepository) CountByState(ctx context.Context, shopID uuid.UUID, since time.Time) ([]integration.GeoStateCount, error) {
	var rows []geoStateRow
	if err := r.db.WithContext(ctx).
		Table("order_geo_addresses AS g").
		Select("g.state_norm AS state_norm, g.state AS state, COUNT(*) AS orders, CAST(COALESCE(SUM(o.gmv_cents), 0) AS BIGINT) AS gmv_cents").
		Joins("JOIN marketplace_orders o ON o.id = g.order_id").
		Scopes(ShopScope("g.shop_id", shopID)).
		Where("g.source_created_at >= ?", since).
		Group("g.state_norm, g.state").
		Order("orders DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make([]integration.GeoStateCount, len(rows))
	for i, row := range rows {
		counts[i] = integration.GeoStateCount{
			State:     row.State,
			StateNorm: row.StateNorm,
			Orders:    row.Orders,
			GMVCents:  row.GMVCents,
		}
	}
	return counts, nil
}

type geoCityRow struct {
	City     string `gorm:"column:city"`
	CityNorm string `gorm:"column:city_norm"`
	Orders   int64  `gorm:"column:orders"`
	GMVCents int64  `gorm:"column:gmv_cents"`
}

// CountByCity aggregates order counts and GMV per city within the given
// normalized states
func (r *GormGeoAddressRepository) CountByCity(ctx context.Context, shopID uuid.UUID, stateNorms []string, since time.Time) ([]integration.GeoCityCount, error) {
	if len(stateNorms) == 0 {
		return []integration.GeoCityCount{}, nil
	}

	var rows []geoCityRow
	if err := r.db.WithContext(ctx).
		Table("order_geo_addresses AS g").
		Select("g.city_norm AS city_norm, MIN(g.city) AS city, COUNT(*) AS orders, CAST(COALESCE(SUM(o.gmv_cents), 0) AS BIGINT) AS gmv_cents").
		Joins("JOIN marketplace_orders o ON o.id = g.order_id").
		Scopes(ShopScope("g.shop_id", shopID)).
		Where("g.state_norm IN ?", stateNorms).
		Where("g.city_norm IS NOT NULL AND g.source_created_at >= ?", since).
		Group("g.city_norm").
		Order("orders DESC").
		Order("city_norm ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make([]integration.GeoCityCount, len(rows))
	for i, row := range rows {
		counts[i] = integration.GeoCityCount{
			City:     row.City,
			CityNorm: row.CityNorm,
			Orders:   row.Orders,
			GMVCents: row.GMVCents,
		}
	}
	return counts, nil
}

// Ensure GormGeoAddressRepository implements the interface
var _ integration.GeoAddressRepository = (*GormGeoAddressRepository)(nil)
