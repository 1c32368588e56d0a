package ordersync

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ---------------------------------------------------------------------------
// Clock
// ---------------------------------------------------------------------------

// stepClock advances by one second on every reading so consecutive
// snapshots never share a timestamp
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{t: start}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *stepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// ---------------------------------------------------------------------------
// Fake marketplace
// ---------------------------------------------------------------------------

// fakeMarketplace serves a fixed set of orders with numeric cursors
type fakeMarketplace struct {
	mu        sync.Mutex
	sns       []string
	details   map[string]integration.OrderDetail
	batches   [][]string
	listCalls int
	detailErr error
	failAfter int
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{details: make(map[string]integration.OrderDetail)}
}

func (f *fakeMarketplace) Put(d integration.OrderDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.details[d.OrderSN]; !ok {
		f.sns = append(f.sns, d.OrderSN)
	}
	f.details[d.OrderSN] = d
}

func (f *fakeMarketplace) ForShop(_ context.Context, _ *integration.Shop) (integration.MarketplaceClient, error) {
	return f, nil
}

func (f *fakeMarketplace) ListOrderIdentifiers(_ context.Context, req integration.OrderListRequest) (*integration.OrderListPage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	start := 0
	if req.Cursor != "" {
		start, _ = strconv.Atoi(req.Cursor)
	}
	end := min(start+req.PageSize, len(f.sns))
	page := &integration.OrderListPage{
		OrderSNs: append([]string(nil), f.sns[start:end]...),
		More:     end < len(f.sns),
	}
	if page.More {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeMarketplace) GetOrderDetails(_ context.Context, orderSNs []string, _ []string) ([]integration.OrderDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(orderSNs) > integration.MaxOrderDetailBatch {
		return nil, integration.ErrOrderBatchTooLarge
	}
	if f.detailErr != nil && len(f.batches) >= f.failAfter {
		return nil, f.detailErr
	}
	f.batches = append(f.batches, append([]string(nil), orderSNs...))

	out := make([]integration.OrderDetail, 0, len(orderSNs))
	for _, sn := range orderSNs {
		if d, ok := f.details[sn]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Report cache
// ---------------------------------------------------------------------------

type memoryReportCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []int64
}

func newMemoryReportCache() *memoryReportCache {
	return &memoryReportCache{entries: make(map[string][]byte)}
}

func (c *memoryReportCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryReportCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memoryReportCache) InvalidateShop(_ context.Context, shopID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := "geo:" + strconv.FormatInt(shopID, 10) + ":"
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.invalidated = append(c.invalidated, shopID)
	return nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

const testShopID int64 = 880011

type syncFixture struct {
	db          *gorm.DB
	clock       *stepClock
	marketplace *fakeMarketplace
	cache       *memoryReportCache
	shops       *persistence.GormShopRepository
	orders      *persistence.GormOrderRepository
	history     *persistence.GormAddressHistoryRepository
	geo         *persistence.GormGeoAddressRepository
	service     *Service
	shop        *integration.Shop
}

func newSyncFixture(t *testing.T) *syncFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	f := &syncFixture{
		db:          db,
		clock:       newStepClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
		marketplace: newFakeMarketplace(),
		cache:       newMemoryReportCache(),
		shops:       persistence.NewGormShopRepository(db),
		orders:      persistence.NewGormOrderRepository(db),
		history:     persistence.NewGormAddressHistoryRepository(db),
		geo:         persistence.NewGormGeoAddressRepository(db),
	}

	shop, err := integration.NewShop(testShopID, "Loja Teste", "BR")
	require.NoError(t, err)
	require.NoError(t, f.shops.Save(context.Background(), shop))
	f.shop = shop

	f.service = NewService(
		f.shops,
		f.orders,
		f.marketplace,
		NewChangeDetector(f.history, f.clock.Now),
		NewGeoProjectionWriter(f.geo, integration.DefaultMaskPredicate(), f.clock.Now),
		zap.NewNop(),
		WithClock(f.clock.Now),
		WithReportInvalidator(f.cache),
	)
	return f
}

func (f *syncFixture) sync(t *testing.T) *SyncResult {
	result, err := f.service.Sync(context.Background(), testShopID, 7)
	require.NoError(t, err)
	return result
}

func (f *syncFixture) order(t *testing.T, orderSN string) *integration.Order {
	order, err := f.orders.FindByOrderSN(context.Background(), f.shop.ID, orderSN)
	require.NoError(t, err)
	return order
}

func (f *syncFixture) snapshotCount(t *testing.T, orderSN string) int64 {
	n, err := f.history.CountSnapshots(context.Background(), f.order(t, orderSN).ID)
	require.NoError(t, err)
	return n
}

func (f *syncFixture) openAlerts(t *testing.T, orderSN string) []integration.AlertWithSnapshots {
	alerts, err := f.history.ListOpenAlertsByOrder(context.Background(), f.order(t, orderSN).ID, 50)
	require.NoError(t, err)
	return alerts
}

func (f *syncFixture) allAlertCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&models.AddressChangeAlertModel{}).Count(&n).Error)
	return n
}

func detail(orderSN, status string, addr *integration.RecipientAddress) integration.OrderDetail {
	created := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	return integration.OrderDetail{
		OrderSN:          orderSN,
		Status:           status,
		Currency:         "BRL",
		Region:           "BR",
		CreateTime:       &created,
		UpdateTime:       &created,
		RecipientAddress: addr,
		Amounts:          map[string]any{"total_amount": 59.9},
	}
}
