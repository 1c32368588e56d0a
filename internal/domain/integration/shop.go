package integration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrShopNotFound  = errors.New("integration: shop not found")
	ErrInvalidShopID = errors.New("integration: invalid marketplace shop id")
)

// Shop is a marketplace shop registered locally. Orders are only synced for
// registered shops.
type Shop struct {
	ID          uuid.UUID
	ShopID      int64
	Name        string
	Region      string
	AccessToken string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewShop creates an active shop registration
func NewShop(shopID int64, name, region string) (*Shop, error) {
	if shopID <= 0 {
		return nil, ErrInvalidShopID
	}
	now := time.Now()
	return &Shop{
		ID:        uuid.New(),
		ShopID:    shopID,
		Name:      strings.TrimSpace(name),
		Region:    strings.ToUpper(strings.TrimSpace(region)),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ShopRepository persists shop registrations
type ShopRepository interface {
	// FindByShopID returns ErrShopNotFound when the shop is not registered
	FindByShopID(ctx context.Context, shopID int64) (*Shop, error)

	// ListActive returns all active shops ordered by marketplace shop id
	ListActive(ctx context.Context) ([]Shop, error)

	// Save inserts or updates the shop on its marketplace shop id
	Save(ctx context.Context, shop *Shop) error

	// UpdateAccessToken stores a new access token for the shop
	UpdateAccessToken(ctx context.Context, shopID int64, token string) error
}
