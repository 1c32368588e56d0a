package models

import (
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/google/uuid"
)

// GeoAddressModel is the persistence model for GeoAddress
type GeoAddressModel struct {
	BaseModel
	ShopID          uuid.UUID `gorm:"type:uuid;not null;index:idx_geo_addresses_shop_created,priority:1"`
	OrderID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_geo_addresses_order"`
	OrderSN         string    `gorm:"column:order_sn;type:varchar(64);not null"`
	State           string    `gorm:"type:varchar(200);not null"`
	StateNorm       string    `gorm:"type:varchar(200);not null;index"`
	City            *string   `gorm:"type:varchar(200)"`
	CityNorm        *string   `gorm:"type:varchar(200)"`
	Zipcode         *string   `gorm:"type:varchar(32)"`
	FullAddress     *string   `gorm:"type:text"`
	SourceCreatedAt time.Time `gorm:"not null;index:idx_geo_addresses_shop_created,priority:2"`
}

// TableName returns the table name for GORM
func (GeoAddressModel) TableName() string {
	return "order_geo_addresses"
}

// ToDomain converts the persistence model to a domain GeoAddress.
func (m *GeoAddressModel) ToDomain() *integration.GeoAddress {
	return &integration.GeoAddress{
		ID:              m.ID,
		ShopID:          m.ShopID,
		OrderID:         m.OrderID,
		OrderSN:         m.OrderSN,
		State:           m.State,
		StateNorm:       m.StateNorm,
		City:            m.City,
		CityNorm:        m.CityNorm,
		Zipcode:         m.Zipcode,
		FullAddress:     m.FullAddress,
		SourceCreatedAt: m.SourceCreatedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain GeoAddress.
func (m *GeoAddressModel) FromDomain(g *integration.GeoAddress) {
	m.ID = g.ID
	m.ShopID = g.ShopID
	m.OrderID = g.OrderID
	m.OrderSN = g.OrderSN
	m.State = g.State
	m.StateNorm = g.StateNorm
	m.City = g.City
	m.CityNorm = g.CityNorm
	m.Zipcode = g.Zipcode
	m.FullAddress = g.FullAddress
	m.SourceCreatedAt = g.SourceCreatedAt
	m.CreatedAt = g.CreatedAt
	m.UpdatedAt = g.UpdatedAt
}

// All returns every model of the order sync schema, in dependency order.
// Tests use it with AutoMigrate.
func All() []any {
	return []any{
		&ShopModel{},
		&MarketplaceOrderModel{},
		&AddressSnapshotModel{},
		&AddressChangeAlertModel{},
		&GeoAddressModel{},
	}
}
