package ordersync

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultAlertListLimit = 200
	MaxAlertListLimit     = 500

	// OrderAlertLimit caps the alerts returned for a single order
	OrderAlertLimit = 10

	// DefaultSweepBatchSize is the page size of ResolveFalsePositives
	DefaultSweepBatchSize = 500
)

// ClampAlertLimit applies the default and maximum listing size
func ClampAlertLimit(limit int) int {
	if limit <= 0 {
		return DefaultAlertListLimit
	}
	return min(limit, MaxAlertListLimit)
}

// OrderAlerts is an order with its open alerts
type OrderAlerts struct {
	Order  *integration.Order
	Alerts []integration.AlertWithSnapshots
}

// SweepResult summarizes a false positive sweep
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Resolved int `json:"resolved"`
}

// AlertService serves the address change alert workflow
type AlertService struct {
	shops   integration.ShopRepository
	orders  integration.OrderRepository
	history integration.AddressHistoryRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewAlertService creates an AlertService
func NewAlertService(
	shops integration.ShopRepository,
	orders integration.OrderRepository,
	history integration.AddressHistoryRepository,
	logger *zap.Logger,
) *AlertService {
	return &AlertService{
		shops:   shops,
		orders:  orders,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

// ListOpen lists the open alerts of a shop, most recently detected first.
// Only the coarse location of each snapshot is returned.
func (s *AlertService) ListOpen(ctx context.Context, shopID int64, limit int) ([]integration.OpenAlertSummary, error) {
	shop, err := findShop(ctx, s.shops, shopID)
	if err != nil {
		return nil, err
	}
	return s.history.ListOpenAlertsByShop(ctx, shop.ID, ClampAlertLimit(limit))
}

// ForOrder returns an order of the shop with its open alerts and both
// snapshots of each alert
func (s *AlertService) ForOrder(ctx context.Context, shopID int64, orderSN string) (*OrderAlerts, error) {
	shop, err := findShop(ctx, s.shops, shopID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByOrderSN(ctx, shop.ID, orderSN)
	if err != nil {
		return nil, err
	}
	alerts, err := s.history.ListOpenAlertsByOrder(ctx, order.ID, OrderAlertLimit)
	if err != nil {
		return nil, fmt.Errorf("list alerts of %s: %w", orderSN, err)
	}
	return &OrderAlerts{Order: order, Alerts: alerts}, nil
}

// Resolve marks an alert of the shop as handled. Resolving an already
// resolved alert leaves it unchanged. Alerts of other shops are reported as
// not found.
func (s *AlertService) Resolve(ctx context.Context, shopID int64, alertID uuid.UUID) (*integration.AddressChangeAlert, error) {
	shop, err := findShop(ctx, s.shops, shopID)
	if err != nil {
		return nil, err
	}

	alert, err := s.history.FindAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, alert.OrderID)
	if err != nil {
		return nil, err
	}
	if order.ShopID != shop.ID {
		return nil, integration.ErrAlertNotFound
	}

	if !alert.IsOpen() {
		return alert, nil
	}

	now := s.now()
	if err := s.history.ResolveAlert(ctx, alertID, now); err != nil {
		return nil, err
	}
	alert.ResolvedAt = &now

	s.logger.Info("Address alert resolved",
		zap.Int64("shop_id", shopID),
		zap.String("order_sn", order.OrderSN),
		zap.String("alert_id", alertID.String()),
	)
	return alert, nil
}

// ResolveFalsePositives resolves every open alert whose snapshots normalize
// to the same comparison key. Such alerts were raised before normalization
// ignored the difference.
func (s *AlertService) ResolveFalsePositives(ctx context.Context, batchSize int) (SweepResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}

	var result SweepResult
	cursor := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.history.ListOpenAlertsAfter(ctx, cursor, batchSize)
		if err != nil {
			return result, fmt.Errorf("list open alerts: %w", err)
		}

		for i := range batch {
			result.Scanned++
			if !batch[i].IsFalsePositive() {
				continue
			}
			if err := s.history.ResolveAlert(ctx, batch[i].Alert.ID, s.now()); err != nil {
				return result, fmt.Errorf("resolve alert %s: %w", batch[i].Alert.ID, err)
			}
			result.Resolved++
		}

		if len(batch) < batchSize {
			break
		}
		cursor = batch[len(batch)-1].Alert.ID
	}

	s.logger.Info("False positive sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("resolved", result.Resolved),
	)
	return result, nil
}
