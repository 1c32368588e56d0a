package ordersync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"go.uber.org/zap"
)

// RegisterShopInput describes a shop registration or update
type RegisterShopInput struct {
	ShopID      int64
	Name        string
	Region      string
	AccessToken string
	IsActive    *bool
}

// ShopService manages local shop registrations
type ShopService struct {
	shops  integration.ShopRepository
	logger *zap.Logger
}

// NewShopService creates a ShopService
func NewShopService(shops integration.ShopRepository, logger *zap.Logger) *ShopService {
	return &ShopService{shops: shops, logger: logger}
}

// ListActive returns the shops that are synced
func (s *ShopService) ListActive(ctx context.Context) ([]integration.Shop, error) {
	return s.shops.ListActive(ctx)
}

// Register creates the shop or updates the existing registration. Fields
// left empty in input keep their stored value.
func (s *ShopService) Register(ctx context.Context, input RegisterShopInput) (*integration.Shop, error) {
	shop, err := s.shops.FindByShopID(ctx, input.ShopID)
	switch {
	case errors.Is(err, integration.ErrShopNotFound):
		shop, err = integration.NewShop(input.ShopID, input.Name, input.Region)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if name := strings.TrimSpace(input.Name); name != "" {
			shop.Name = name
		}
		if region := strings.TrimSpace(input.Region); region != "" {
			shop.Region = strings.ToUpper(region)
		}
		shop.UpdatedAt = time.Now()
	}

	if token := strings.TrimSpace(input.AccessToken); token != "" {
		shop.AccessToken = token
	}
	if input.IsActive != nil {
		shop.IsActive = *input.IsActive
	}

	if err := s.shops.Save(ctx, shop); err != nil {
		return nil, err
	}

	s.logger.Info("Shop registered",
		zap.Int64("shop_id", shop.ShopID),
		zap.Bool("active", shop.IsActive),
	)
	return shop, nil
}
