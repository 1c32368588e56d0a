package ecommerce

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ordersync/internal/domain/integration"
)

// ErrNoAccessToken is returned when a shop has no stored access token
var ErrNoAccessToken = errors.New("shopee: shop has no access token")

// DatabaseTokenSource serves the access token stored with the shop
// registration. Tokens are obtained and refreshed by the authorization
// service that owns the OAuth flow, so a forced refresh cannot be honored
// here and reports an authentication failure.
type DatabaseTokenSource struct {
	shops integration.ShopRepository
}

// NewDatabaseTokenSource creates a DatabaseTokenSource
func NewDatabaseTokenSource(shops integration.ShopRepository) *DatabaseTokenSource {
	return &DatabaseTokenSource{shops: shops}
}

// Token returns the stored token of the shop
func (s *DatabaseTokenSource) Token(ctx context.Context, shopID int64, forceRefresh bool) (string, error) {
	if forceRefresh {
		return "", fmt.Errorf("%w: access token of shop %d was rejected and must be re-authorized", integration.ErrPlatformAuthFailed, shopID)
	}
	shop, err := s.shops.FindByShopID(ctx, shopID)
	if err != nil {
		return "", err
	}
	if shop.AccessToken == "" {
		return "", fmt.Errorf("%w: %d: %w", integration.ErrPlatformAuthFailed, shopID, ErrNoAccessToken)
	}
	return shop.AccessToken, nil
}

var _ integration.TokenSource = (*DatabaseTokenSource)(nil)
