package models

import (
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShopModel is the persistence model for the Shop domain entity.
type ShopModel struct {
	BaseModel
	ShopID      int64  `gorm:"not null;uniqueIndex:idx_shops_shop_id"`
	Name        string `gorm:"type:varchar(200);not null"`
	Region      string `gorm:"type:varchar(8);not null"`
	AccessToken string `gorm:"type:text;not null"`
	IsActive    bool   `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ShopModel) TableName() string {
	return "shops"
}

// ToDomain converts the persistence model to a domain Shop entity.
func (m *ShopModel) ToDomain() *integration.Shop {
	return &integration.Shop{
		ID:          m.ID,
		ShopID:      m.ShopID,
		Name:        m.Name,
		Region:      m.Region,
		AccessToken: m.AccessToken,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Shop entity.
func (m *ShopModel) FromDomain(s *integration.Shop) {
	m.ID = s.ID
	m.ShopID = s.ShopID
	m.Name = s.Name
	m.Region = s.Region
	m.AccessToken = s.AccessToken
	m.IsActive = s.IsActive
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
}

// MarketplaceOrderModel is the persistence model for the Order domain entity.
// (shop_id, order_sn) is the natural key used for upserts.
type MarketplaceOrderModel struct {
	BaseModel
	ShopID                uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_marketplace_orders_shop_order,priority:1"`
	OrderSN               string              `gorm:"column:order_sn;type:varchar(64);not null;uniqueIndex:idx_marketplace_orders_shop_order,priority:2"`
	Status                string              `gorm:"type:varchar(32);not null;index"`
	Currency              string              `gorm:"type:varchar(8);not null"`
	Region                string              `gorm:"type:varchar(8);not null"`
	GMVCents              int64               `gorm:"column:gmv_cents;not null"`
	SourceCreatedAt       *time.Time          `gorm:"index"`
	SourceUpdatedAt       *time.Time          `gorm:"column:source_updated_at"`
	ShipByDate            *time.Time          `gorm:"column:ship_by_date"`
	DaysToShip            *int                `gorm:"column:days_to_ship"`
	BookingSN             string              `gorm:"column:booking_sn;type:varchar(64);not null"`
	COD                   *bool               `gorm:"column:cod"`
	AdvancePackage        *bool               `gorm:"column:advance_package"`
	HotListingOrder       *bool               `gorm:"column:hot_listing_order"`
	IsBuyerShopCollection *bool               `gorm:"column:is_buyer_shop_collection"`
	MessageToSeller       string              `gorm:"type:text;not null"`
	ReverseShippingFee    decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	LastSyncedAt          time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MarketplaceOrderModel) TableName() string {
	return "marketplace_orders"
}

// MarketplaceOrderUpsertColumns are refreshed when an order is synced again
var MarketplaceOrderUpsertColumns = []string{
	"status", "currency", "region", "gmv_cents",
	"source_created_at", "source_updated_at", "ship_by_date", "days_to_ship",
	"booking_sn", "cod", "advance_package", "hot_listing_order", "is_buyer_shop_collection",
	"message_to_seller", "reverse_shipping_fee", "last_synced_at", "updated_at",
}

// ToDomain converts the persistence model to a domain Order entity.
func (m *MarketplaceOrderModel) ToDomain() *integration.Order {
	o := &integration.Order{
		ID:                    m.ID,
		ShopID:                m.ShopID,
		OrderSN:               m.OrderSN,
		Status:                integration.OrderStatus(m.Status),
		Currency:              m.Currency,
		Region:                m.Region,
		GMVCents:              m.GMVCents,
		SourceCreatedAt:       m.SourceCreatedAt,
		SourceUpdatedAt:       m.SourceUpdatedAt,
		ShipByDate:            m.ShipByDate,
		DaysToShip:            m.DaysToShip,
		BookingSN:             m.BookingSN,
		COD:                   m.COD,
		AdvancePackage:        m.AdvancePackage,
		HotListingOrder:       m.HotListingOrder,
		IsBuyerShopCollection: m.IsBuyerShopCollection,
		MessageToSeller:       m.MessageToSeller,
		LastSyncedAt:          m.LastSyncedAt,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	if m.ReverseShippingFee.Valid {
		fee := m.ReverseShippingFee.Decimal
		o.ReverseShippingFee = &fee
	}
	return o
}

// FromDomain populates the persistence model from a domain Order entity.
func (m *MarketplaceOrderModel) FromDomain(o *integration.Order) {
	m.ID = o.ID
	m.ShopID = o.ShopID
	m.OrderSN = o.OrderSN
	m.Status = o.Status.String()
	m.Currency = o.Currency
	m.Region = o.Region
	m.GMVCents = o.GMVCents
	m.SourceCreatedAt = o.SourceCreatedAt
	m.SourceUpdatedAt = o.SourceUpdatedAt
	m.ShipByDate = o.ShipByDate
	m.DaysToShip = o.DaysToShip
	m.BookingSN = o.BookingSN
	m.COD = o.COD
	m.AdvancePackage = o.AdvancePackage
	m.HotListingOrder = o.HotListingOrder
	m.IsBuyerShopCollection = o.IsBuyerShopCollection
	m.MessageToSeller = o.MessageToSeller
	m.ReverseShippingFee = decimal.NullDecimal{}
	if o.ReverseShippingFee != nil {
		m.ReverseShippingFee = decimal.NewNullDecimal(*o.ReverseShippingFee)
	}
	m.LastSyncedAt = o.LastSyncedAt
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
}
