package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GeoAddress is the best-known geographic projection of an order. There is
// one row per order. State is always present; city, zipcode and full address
// are filled in as unmasked values become available and are never
// overwritten once set.
type GeoAddress struct {
	ID              uuid.UUID
	ShopID          uuid.UUID
	OrderID         uuid.UUID
	OrderSN         string
	State           string
	StateNorm       string
	City            *string
	CityNorm        *string
	Zipcode         *string
	FullAddress     *string
	SourceCreatedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewGeoAddress projects addr for order. It returns false when the state is
// absent or masked, in which case nothing should be written. Optional fields
// that are blank or masked are left nil.
func NewGeoAddress(order *Order, addr RecipientAddress, masked MaskPredicate, now time.Time) (*GeoAddress, bool) {
	state := strings.TrimSpace(addr.State)
	if state == "" || masked.IsMasked(state) {
		return nil, false
	}

	geo := &GeoAddress{
		ID:              uuid.New(),
		ShopID:          order.ShopID,
		OrderID:         order.ID,
		OrderSN:         order.OrderSN,
		State:           state,
		StateNorm:       NormalizeText(state),
		SourceCreatedAt: order.ReferenceTime(now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if city := usable(addr.City, masked); city != nil {
		geo.City = city
		norm := NormalizeText(*city)
		geo.CityNorm = &norm
	}
	geo.Zipcode = usable(addr.Zipcode, masked)
	geo.FullAddress = usable(addr.FullAddress, masked)

	return geo, true
}

func usable(v string, masked MaskPredicate) *string {
	v = strings.TrimSpace(v)
	if v == "" || masked.IsMasked(v) {
		return nil
	}
	return &v
}

// GeoStateCount aggregates orders per raw state value
type GeoStateCount struct {
	State     string
	StateNorm string
	Orders    int64
	GMVCents  int64
}

// GeoCityCount aggregates orders per city
type GeoCityCount struct {
	City     string
	CityNorm string
	Orders   int64
	GMVCents int64
}

// GeoAddressRepository persists geo projections
type GeoAddressRepository interface {
	// UpsertFillMissing inserts geo if the order has no row yet; otherwise
	// it only fills columns that are currently null.
	UpsertFillMissing(ctx context.Context, geo *GeoAddress) error

	// FindByOrderID returns nil when the order has no projection
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*GeoAddress, error)

	// CountByState groups the shop's projections created since the given
	// time by state
	CountByState(ctx context.Context, shopID uuid.UUID, since time.Time) ([]GeoStateCount, error)

	// CountByCity groups projections whose normalized state is one of
	// stateNorms by city. Rows without a city are excluded.
	CountByCity(ctx context.Context, shopID uuid.UUID, stateNorms []string, since time.Time) ([]GeoCityCount, error)
}
