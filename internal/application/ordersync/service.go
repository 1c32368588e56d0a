package ordersync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	DefaultRangeDays = 7
	MinRangeDays     = 1
	MaxRangeDays     = 180

	// ListPageSize is the number of order identifiers requested per page
	ListPageSize = 50
	// DetailBatchSize is the number of orders per detail request
	DetailBatchSize = 20

	// SyncStatusOK is the status of a completed run
	SyncStatusOK = "ok"
)

// ErrShopNotRegistered is returned when a sync or query names a marketplace
// shop that has no local registration. It is a configuration error and is
// never retried.
var ErrShopNotRegistered = errors.New("ordersync: shop is not registered")

// SyncSummary counts what a sync run did
type SyncSummary struct {
	Processed      int `json:"processed"`
	AddressChanged int `json:"addressChanged"`
	Late           int `json:"late"`
	AtRisk         int `json:"atRisk"`
}

// SyncResult is returned by a successful sync run
type SyncResult struct {
	Status    string      `json:"status"`
	ShopID    int64       `json:"shop_id"`
	RangeDays int         `json:"rangeDays"`
	Summary   SyncSummary `json:"summary"`
}

// ReportInvalidator drops cached reports of a shop
type ReportInvalidator interface {
	InvalidateShop(ctx context.Context, shopID int64) error
}

// SyncObserver is notified once per run, successful or not
type SyncObserver interface {
	ObserveSync(ctx context.Context, run telemetry.SyncRun)
}

// ClampRangeDays bounds a sync window to [MinRangeDays, MaxRangeDays]
func ClampRangeDays(days int) int {
	return min(max(days, MinRangeDays), MaxRangeDays)
}

// ParseRangeDays parses a user supplied window. Fractions are floored;
// empty, non-numeric or non-finite input means DefaultRangeDays.
func ParseRangeDays(raw string) int {
	days, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(days) || math.IsInf(days, 0) {
		return DefaultRangeDays
	}
	return int(min(max(math.Floor(days), MinRangeDays), MaxRangeDays))
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithClock overrides time.Now
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithReportInvalidator invalidates cached reports after each run
func WithReportInvalidator(r ReportInvalidator) ServiceOption {
	return func(s *Service) {
		s.reports = r
	}
}

// WithSyncObserver reports every run to o
func WithSyncObserver(o SyncObserver) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

// Service runs order synchronization for registered shops
type Service struct {
	shops    integration.ShopRepository
	orders   integration.OrderRepository
	clients  integration.MarketplaceClientFactory
	detector *ChangeDetector
	geo      *GeoProjectionWriter
	reports  ReportInvalidator
	observer SyncObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a Service
func NewService(
	shops integration.ShopRepository,
	orders integration.OrderRepository,
	clients integration.MarketplaceClientFactory,
	detector *ChangeDetector,
	geo *GeoProjectionWriter,
	logger *zap.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		shops:    shops,
		orders:   orders,
		clients:  clients,
		detector: detector,
		geo:      geo,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync pulls every order of the shop updated in the last rangeDays days and
// processes it. Upstream errors abort the run; orders processed before the
// failure stay committed.
func (s *Service) Sync(ctx context.Context, shopID int64, rangeDays int) (*SyncResult, error) {
	rangeDays = ClampRangeDays(rangeDays)
	started := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "order_sync.sync",
		telemetry.WithAttribute(telemetry.SpanAttrShopID, shopID),
		telemetry.WithAttribute(telemetry.SpanAttrRangeDays, rangeDays),
	)
	defer span.End()

	var summary SyncSummary
	err := s.sync(ctx, shopID, rangeDays, &summary)

	telemetry.SetAttributes(span,
		"processed", summary.Processed,
		"address_changed", summary.AddressChanged,
	)
	if s.observer != nil {
		s.observer.ObserveSync(ctx, telemetry.SyncRun{
			ShopID:         shopID,
			Processed:      summary.Processed,
			AddressChanged: summary.AddressChanged,
			Late:           summary.Late,
			AtRisk:         summary.AtRisk,
			Elapsed:        time.Since(started),
			Err:            err,
		})
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("Order sync failed",
			zap.Int64("shop_id", shopID),
			zap.Int("range_days", rangeDays),
			zap.Int("processed", summary.Processed),
			zap.Error(err),
		)
		return nil, err
	}

	if s.reports != nil {
		if err := s.reports.InvalidateShop(ctx, shopID); err != nil {
			s.logger.Warn("Failed to invalidate report cache",
				zap.Int64("shop_id", shopID),
				zap.Error(err),
			)
		}
	}

	telemetry.SetOK(span)
	s.logger.Info("Order sync completed",
		zap.Int64("shop_id", shopID),
		zap.Int("range_days", rangeDays),
		zap.Int("processed", summary.Processed),
		zap.Int("address_changed", summary.AddressChanged),
		zap.Int("late", summary.Late),
		zap.Int("at_risk", summary.AtRisk),
		zap.Duration("duration", time.Since(started)),
	)

	return &SyncResult{
		Status:    SyncStatusOK,
		ShopID:    shopID,
		RangeDays: rangeDays,
		Summary:   summary,
	}, nil
}

func (s *Service) sync(ctx context.Context, shopID int64, rangeDays int, summary *SyncSummary) error {
	shop, err := findShop(ctx, s.shops, shopID)
	if err != nil {
		return err
	}

	client, err := s.clients.ForShop(ctx, shop)
	if err != nil {
		return fmt.Errorf("create marketplace client for shop %d: %w", shopID, err)
	}

	to := s.now()
	from := to.Add(-time.Duration(rangeDays) * 24 * time.Hour)

	fetch := func(ctx context.Context, cursor string) (Page[string], error) {
		page, err := client.ListOrderIdentifiers(ctx, integration.OrderListRequest{
			TimeRangeField: integration.TimeRangeFieldUpdateTime,
			TimeFrom:       from,
			TimeTo:         to,
			PageSize:       ListPageSize,
			Cursor:         cursor,
		})
		if err != nil {
			return Page[string]{}, fmt.Errorf("list orders of shop %d: %w", shopID, err)
		}
		return Page[string]{Items: page.OrderSNs, More: page.More, NextCursor: page.NextCursor}, nil
	}

	for page, err := range Paginate(ctx, fetch) {
		if err != nil {
			return err
		}
		if err := s.syncPage(ctx, shop, client, page.Items, summary); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) syncPage(ctx context.Context, shop *integration.Shop, client integration.MarketplaceClient, orderSNs []string, summary *SyncSummary) error {
	ctx, span := telemetry.StartSpan(ctx, "order_sync.page",
		telemetry.WithAttribute(telemetry.SpanAttrShopID, shop.ShopID),
		telemetry.WithAttribute("orders", len(orderSNs)),
	)
	defer span.End()

	for batch := range slices.Chunk(orderSNs, DetailBatchSize) {
		details, err := client.GetOrderDetails(ctx, batch, integration.OrderDetailOptionalFields)
		if err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("get order details of shop %d: %w", shop.ShopID, err)
		}
		for i := range details {
			if err := s.syncOrder(ctx, shop, &details[i], summary); err != nil {
				telemetry.RecordError(span, err)
				return err
			}
		}
	}
	return nil
}

func (s *Service) syncOrder(ctx context.Context, shop *integration.Shop, detail *integration.OrderDetail, summary *SyncSummary) error {
	if strings.TrimSpace(detail.OrderSN) == "" {
		s.logger.Debug("Skipping order detail without order_sn", zap.Int64("shop_id", shop.ShopID))
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "order_sync.order",
		telemetry.WithAttribute(telemetry.SpanAttrShopID, shop.ShopID),
		telemetry.WithAttribute(telemetry.SpanAttrOrderSN, detail.OrderSN),
	)
	defer span.End()

	now := s.now()
	order, err := integration.NewOrderFromDetail(shop.ID, *detail, now)
	if err != nil {
		return fmt.Errorf("map order %s: %w", detail.OrderSN, err)
	}
	if err := s.orders.Upsert(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("upsert order %s: %w", order.OrderSN, err)
	}

	addr := detail.RecipientAddress
	if addr != nil {
		if _, err := s.geo.Write(ctx, order, *addr); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
	}

	var outcome DetectionOutcome
	switch {
	case order.Status.IsTerminal():
		outcome, err = s.detector.Close(ctx, order)
	case addr != nil:
		outcome, err = s.detector.Observe(ctx, order, *addr)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if outcome.Changed {
		summary.AddressChanged++
		telemetry.AddEvent(span, "address_changed", "alert_id", outcome.Alert.ID.String())
		s.logger.Info("Address change detected",
			zap.Int64("shop_id", shop.ShopID),
			zap.String("order_sn", order.OrderSN),
			zap.String("alert_id", outcome.Alert.ID.String()),
		)
	}
	if outcome.ResolvedAlerts > 0 {
		s.logger.Debug("Resolved alerts of closed order",
			zap.String("order_sn", order.OrderSN),
			zap.Int64("resolved", outcome.ResolvedAlerts),
		)
	}

	risk := order.ShippingRisk(now)
	if risk.Late {
		summary.Late++
	}
	if risk.AtRisk {
		summary.AtRisk++
	}
	summary.Processed++
	return nil
}

// findShop resolves a marketplace shop id to its local registration
func findShop(ctx context.Context, shops integration.ShopRepository, shopID int64) (*integration.Shop, error) {
	shop, err := shops.FindByShopID(ctx, shopID)
	if err != nil {
		if errors.Is(err, integration.ErrShopNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrShopNotRegistered, shopID)
		}
		return nil, fmt.Errorf("load shop %d: %w", shopID, err)
	}
	return shop, nil
}
