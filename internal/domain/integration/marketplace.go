package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Marketplace Errors
// ---------------------------------------------------------------------------

var (
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")

	ErrEmptyOrderBatch       = errors.New("integration: order detail batch is empty")
	ErrOrderBatchTooLarge    = errors.New("integration: order detail batch exceeds platform limit")
	ErrInvalidTimeRange      = errors.New("integration: invalid time range")
	ErrInvalidPageSize       = errors.New("integration: invalid page size")
	ErrInvalidTimeRangeField = errors.New("integration: invalid time range field")
)

const (
	// MaxOrderDetailBatch is the largest number of order identifiers the
	// marketplace accepts in a single detail request.
	MaxOrderDetailBatch = 50

	// MaxOrderListPageSize is the largest page the list endpoint returns.
	MaxOrderListPageSize = 100
)

// TimeRangeField selects which order timestamp the list window applies to
type TimeRangeField string

const (
	TimeRangeFieldCreateTime TimeRangeField = "create_time"
	TimeRangeFieldUpdateTime TimeRangeField = "update_time"
)

// IsValid returns true if the field is supported by the list endpoint
func (f TimeRangeField) IsValid() bool {
	return f == TimeRangeFieldCreateTime || f == TimeRangeFieldUpdateTime
}

// OrderDetailOptionalFields is the full set of optional detail fields the
// sync requests for every order.
var OrderDetailOptionalFields = []string{
	"recipient_address",
	"order_status",
	"create_time",
	"update_time",
	"days_to_ship",
	"ship_by_date",
	"currency",
	"region",
	"booking_sn",
	"cod",
	"advance_package",
	"hot_listing_order",
	"is_buyer_shop_collection",
	"message_to_seller",
	"reverse_shipping_fee",
}

// ---------------------------------------------------------------------------
// Request/Response DTOs
// ---------------------------------------------------------------------------

// OrderListRequest asks for the identifiers of orders modified in a window
type OrderListRequest struct {
	TimeRangeField TimeRangeField
	TimeFrom       time.Time
	TimeTo         time.Time
	PageSize       int
	Cursor         string
}

// Validate validates the order list request
func (r *OrderListRequest) Validate() error {
	if !r.TimeRangeField.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTimeRangeField, r.TimeRangeField)
	}
	if r.TimeFrom.IsZero() || r.TimeTo.IsZero() || r.TimeFrom.After(r.TimeTo) {
		return ErrInvalidTimeRange
	}
	if r.PageSize < 1 || r.PageSize > MaxOrderListPageSize {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, r.PageSize)
	}
	return nil
}

// OrderListPage is one page of order identifiers
type OrderListPage struct {
	OrderSNs   []string
	More       bool
	NextCursor string
}

// RecipientAddress is the shipping address attached to an order detail.
// Any field may be empty or redacted by the marketplace.
type RecipientAddress struct {
	Name        string
	Phone       string
	Town        string
	District    string
	City        string
	State       string
	Region      string
	Zipcode     string
	FullAddress string
}

// OrderDetail is a single order as returned by the marketplace detail endpoint
type OrderDetail struct {
	OrderSN               string
	Status                string
	Currency              string
	Region                string
	CreateTime            *time.Time
	UpdateTime            *time.Time
	ShipByDate            *time.Time
	DaysToShip            *int
	BookingSN             string
	COD                   *bool
	AdvancePackage        *bool
	HotListingOrder       *bool
	IsBuyerShopCollection *bool
	MessageToSeller       string
	ReverseShippingFee    *decimal.Decimal
	RecipientAddress      *RecipientAddress

	// Amounts holds the raw monetary fields of the payload, keyed by the
	// marketplace field name. See ExtractGMVCents.
	Amounts map[string]any
}

// ---------------------------------------------------------------------------
// Marketplace Port Interfaces
// ---------------------------------------------------------------------------

// MarketplaceClient is an authenticated, shop-scoped client for the
// marketplace order API.
type MarketplaceClient interface {
	// ListOrderIdentifiers returns one page of order identifiers modified in the window
	ListOrderIdentifiers(ctx context.Context, req OrderListRequest) (*OrderListPage, error)

	// GetOrderDetails fetches details for at most MaxOrderDetailBatch orders
	GetOrderDetails(ctx context.Context, orderSNs []string, optionalFields []string) ([]OrderDetail, error)
}

// MarketplaceClientFactory builds shop-scoped marketplace clients
type MarketplaceClientFactory interface {
	ForShop(ctx context.Context, shop *Shop) (MarketplaceClient, error)
}

// TokenSource supplies access tokens for a shop. Token exchange and refresh
// are owned by an external authorization service.
type TokenSource interface {
	// Token returns the current access token. When forceRefresh is set the
	// source must not return the cached token.
	Token(ctx context.Context, shopID int64, forceRefresh bool) (string, error)
}
