package integration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound    = errors.New("integration: order not found")
	ErrInvalidOrderSN   = errors.New("integration: order_sn is required")
	ErrInvalidOrderShop = errors.New("integration: order shop is required")
)

// ---------------------------------------------------------------------------
// OrderStatus
// ---------------------------------------------------------------------------

// OrderStatus is the marketplace order status. The marketplace owns the
// vocabulary, so unknown values are kept as-is.
type OrderStatus string

const (
	OrderStatusUnpaid           OrderStatus = "UNPAID"
	OrderStatusReadyToShip      OrderStatus = "READY_TO_SHIP"
	OrderStatusProcessed        OrderStatus = "PROCESSED"
	OrderStatusRetryShip        OrderStatus = "RETRY_SHIP"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusToConfirmReceive OrderStatus = "TO_CONFIRM_RECEIVE"
	OrderStatusInCancel         OrderStatus = "IN_CANCEL"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
	OrderStatusToReturn         OrderStatus = "TO_RETURN"
	OrderStatusCompleted        OrderStatus = "COMPLETED"
	OrderStatusReturned         OrderStatus = "RETURNED"
)

func (s OrderStatus) canonical() OrderStatus {
	return OrderStatus(strings.ToUpper(strings.TrimSpace(string(s))))
}

// IsTerminal returns true once the order can no longer change address.
// Comparison is case-insensitive.
func (s OrderStatus) IsTerminal() bool {
	switch s.canonical() {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// IsReadyToShip returns true if the seller still has to ship the order
func (s OrderStatus) IsReadyToShip() bool {
	return s.canonical() == OrderStatusReadyToShip
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// Order is the local copy of a marketplace order. It is identified by
// (ShopID, OrderSN), created on first sync and updated on every later one.
type Order struct {
	ID                    uuid.UUID
	ShopID                uuid.UUID
	OrderSN               string
	Status                OrderStatus
	Currency              string
	Region                string
	GMVCents              int64
	SourceCreatedAt       *time.Time
	SourceUpdatedAt       *time.Time
	ShipByDate            *time.Time
	DaysToShip            *int
	BookingSN             string
	COD                   *bool
	AdvancePackage        *bool
	HotListingOrder       *bool
	IsBuyerShopCollection *bool
	MessageToSeller       string
	ReverseShippingFee    *decimal.Decimal
	LastSyncedAt          time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewOrderFromDetail maps a marketplace order detail onto an Order for the
// given local shop. The ID is left empty; the repository assigns it on upsert.
func NewOrderFromDetail(shopID uuid.UUID, d OrderDetail, syncedAt time.Time) (*Order, error) {
	if shopID == uuid.Nil {
		return nil, ErrInvalidOrderShop
	}
	orderSN := strings.TrimSpace(d.OrderSN)
	if orderSN == "" {
		return nil, ErrInvalidOrderSN
	}

	return &Order{
		ShopID:                shopID,
		OrderSN:               orderSN,
		Status:                OrderStatus(d.Status),
		Currency:              d.Currency,
		Region:                d.Region,
		GMVCents:              ExtractGMVCents(d.Amounts),
		SourceCreatedAt:       d.CreateTime,
		SourceUpdatedAt:       d.UpdateTime,
		ShipByDate:            d.ShipByDate,
		DaysToShip:            d.DaysToShip,
		BookingSN:             d.BookingSN,
		COD:                   d.COD,
		AdvancePackage:        d.AdvancePackage,
		HotListingOrder:       d.HotListingOrder,
		IsBuyerShopCollection: d.IsBuyerShopCollection,
		MessageToSeller:       d.MessageToSeller,
		ReverseShippingFee:    d.ReverseShippingFee,
		LastSyncedAt:          syncedAt,
	}, nil
}

// ReferenceTime returns the best known creation time of the order, falling
// back to the last update time and then to fallback.
func (o *Order) ReferenceTime(fallback time.Time) time.Time {
	if o.SourceCreatedAt != nil {
		return *o.SourceCreatedAt
	}
	if o.SourceUpdatedAt != nil {
		return *o.SourceUpdatedAt
	}
	return fallback
}

// ShippingRisk evaluates the shipping flags of the order at now
func (o *Order) ShippingRisk(now time.Time) ShippingRisk {
	return AssessShippingRisk(o.Status, o.ShipByDate, now)
}

// OrderRepository persists orders
type OrderRepository interface {
	// Upsert inserts or updates the order on (ShopID, OrderSN) and sets
	// order.ID to the persisted identifier.
	Upsert(ctx context.Context, order *Order) error

	// FindByOrderSN returns ErrOrderNotFound when the order is unknown
	FindByOrderSN(ctx context.Context, shopID uuid.UUID, orderSN string) (*Order, error)

	// FindByID returns ErrOrderNotFound when the order is unknown
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
}
