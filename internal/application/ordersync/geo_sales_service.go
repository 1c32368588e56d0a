package ordersync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultReportMonths = 6
	MinReportMonths     = 1
	MaxReportMonths     = 12

	// DefaultReportCacheTTL applies when no TTL is configured
	DefaultReportCacheTTL = 10 * time.Minute
)

// ErrInvalidState is returned for a state that is not a known UF
var ErrInvalidState = errors.New("ordersync: invalid state")

// ReportCache stores computed reports. Keys of one shop share the prefix
// "geo:{shopID}:" so InvalidateShop can drop them together.
type ReportCache interface {
	ReportInvalidator

	// Get loads key into dest and reports whether it was present
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// ReportCacheKey builds the cache key of a geo report
func ReportCacheKey(shopID int64, scope string, months int, windowStart time.Time) string {
	return fmt.Sprintf("geo:%d:%s:%d:%s", shopID, scope, months, windowStart.Format("2006-01-02"))
}

// ParseMonths parses a report window in months. Invalid input means
// DefaultReportMonths.
func ParseMonths(raw string) int {
	months, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultReportMonths
	}
	return ClampMonths(months)
}

// ClampMonths bounds a report window to [MinReportMonths, MaxReportMonths]
func ClampMonths(months int) int {
	return min(max(months, MinReportMonths), MaxReportMonths)
}

// GeoSalesItem is one row of a geo sales report. UF is set in state
// reports, City and CityNorm in city reports.
type GeoSalesItem struct {
	UF       string          `json:"uf,omitempty"`
	City     string          `json:"city,omitempty"`
	CityNorm string          `json:"cityNorm,omitempty"`
	Orders   int64           `json:"orders"`
	GMV      decimal.Decimal `json:"gmv" swaggertype:"string"`
}

// GeoSalesTotal sums the items of a report
type GeoSalesTotal struct {
	Orders int64           `json:"orders"`
	GMV    decimal.Decimal `json:"gmv" swaggertype:"string"`
}

// GeoSalesReport is the order distribution of a shop over a window
type GeoSalesReport struct {
	UF     string         `json:"uf,omitempty"`
	Months int            `json:"months"`
	From   time.Time      `json:"from"`
	To     time.Time      `json:"to"`
	Total  GeoSalesTotal  `json:"total"`
	Items  []GeoSalesItem `json:"items"`
}

// GeoSalesService builds the geo sales reports
type GeoSalesService struct {
	shops  integration.ShopRepository
	geo    integration.GeoAddressRepository
	cache  ReportCache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewGeoSalesService creates a GeoSalesService. cache may be nil.
func NewGeoSalesService(
	shops integration.ShopRepository,
	geo integration.GeoAddressRepository,
	cache ReportCache,
	ttl time.Duration,
	logger *zap.Logger,
) *GeoSalesService {
	if ttl <= 0 {
		ttl = DefaultReportCacheTTL
	}
	return &GeoSalesService{
		shops:  shops,
		geo:    geo,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// ByState reports orders and GMV per Brazilian UF. Spellings of the same
// state ("SP", "São Paulo") are consolidated; unknown states are dropped.
func (s *GeoSalesService) ByState(ctx context.Context, shopID int64, months int) (*GeoSalesReport, error) {
	shop, err := findShop(ctx, s.shops, shopID)
	if err != nil {
		return nil, err
	}
	report := s.newReport(months)
	key := ReportCacheKey(shopID, "states", report.Months, report.From)

	return s.cached(ctx, key, report, func() error {
		rows, err := s.geo.CountByState(ctx, shop.ID, report.From)
		if err != nil {
			return fmt.Errorf("count orders by state: %w", err)
		}

		type agg struct{ orders, cents int64 }
		byUF := make(map[string]*agg)
		for _, row := range rows {
			uf, ok := integration.StateToUF(row.StateNorm)
			if !ok {
				continue
			}
			a := byUF[uf]
			if a == nil {
				a = &agg{}
				byUF[uf] = a
			}
			a.orders += row.Orders
			a.cents += row.GMVCents
		}

		for uf, a := range byUF {
			report.Items = append(report.Items, GeoSalesItem{
				UF:     uf,
				Orders: a.orders,
				GMV:    centsToDecimal(a.cents),
			})
		}
		sort.Slice(report.Items, func(i, j int) bool {
			if report.Items[i].Orders != report.Items[j].Orders {
				return report.Items[i].Orders > report.Items[j].Orders
			}
			return report.Items[i].UF < report.Items[j].UF
		})
		return nil
	})
}

// ByCity reports orders and GMV per city within one UF
func (s *GeoSalesService) ByCity(ctx context.Context, shopID int64, uf string, months int) (*GeoSalesReport, error) {
	uf = strings.ToUpper(strings.TrimSpace(uf))
	norms := integration.StateNormsForUF(uf)
	if norms == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, uf)
	}

	shop, err := findShop(ctx, s.shops, shopID)
	if err != nil {
		return nil, err
	}
	report := s.newReport(months)
	report.UF = uf
	key := ReportCacheKey(shopID, "cities:"+uf, report.Months, report.From)

	return s.cached(ctx, key, report, func() error {
		rows, err := s.geo.CountByCity(ctx, shop.ID, norms, report.From)
		if err != nil {
			return fmt.Errorf("count orders by city: %w", err)
		}
		for _, row := range rows {
			report.Items = append(report.Items, GeoSalesItem{
				City:     row.City,
				CityNorm: row.CityNorm,
				Orders:   row.Orders,
				GMV:      centsToDecimal(row.GMVCents),
			})
		}
		return nil
	})
}

func (s *GeoSalesService) newReport(months int) *GeoSalesReport {
	months = ClampMonths(months)
	to := s.now()
	return &GeoSalesReport{
		Months: months,
		From:   to.AddDate(0, -months, 0),
		To:     to,
		Total:  GeoSalesTotal{GMV: decimal.Zero},
		Items:  []GeoSalesItem{},
	}
}

// cached serves key from the cache or fills report with build and stores
// it. Cache failures only cost a recomputation.
func (s *GeoSalesService) cached(ctx context.Context, key string, report *GeoSalesReport, build func() error) (*GeoSalesReport, error) {
	if s.cache != nil {
		var hit GeoSalesReport
		found, err := s.cache.Get(ctx, key, &hit)
		if err != nil {
			s.logger.Warn("Report cache read failed", zap.String("key", key), zap.Error(err))
		} else if found {
			return &hit, nil
		}
	}

	if err := build(); err != nil {
		return nil, err
	}
	for _, item := range report.Items {
		report.Total.Orders += item.Orders
		report.Total.GMV = report.Total.GMV.Add(item.GMV)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.ttl); err != nil {
			s.logger.Warn("Report cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return report, nil
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
