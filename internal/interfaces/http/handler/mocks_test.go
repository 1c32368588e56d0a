package handler

import (
	"context"
	"io"
	"net/http/httptest"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockRunner struct{ mock.Mock }

func (m *mockRunner) Run(ctx context.Context, shopID int64, rangeDays int, trigger string) (*ordersync.SyncResult, error) {
	args := m.Called(ctx, shopID, rangeDays, trigger)
	res, _ := args.Get(0).(*ordersync.SyncResult)
	return res, args.Error(1)
}

type mockJobs struct{ mock.Mock }

func (m *mockJobs) Submit(ctx context.Context, req scheduler.JobRequest) (*scheduler.OrderSyncJob, error) {
	args := m.Called(ctx, req)
	job, _ := args.Get(0).(*scheduler.OrderSyncJob)
	return job, args.Error(1)
}

func (m *mockJobs) GetJob(id uuid.UUID) (*scheduler.OrderSyncJob, error) {
	args := m.Called(id)
	job, _ := args.Get(0).(*scheduler.OrderSyncJob)
	return job, args.Error(1)
}

func (m *mockJobs) GetJobHistory(limit int) []*scheduler.OrderSyncJob {
	args := m.Called(limit)
	jobs, _ := args.Get(0).([]*scheduler.OrderSyncJob)
	return jobs
}

func (m *mockJobs) Stats() scheduler.OrderSyncStats {
	return m.Called().Get(0).(scheduler.OrderSyncStats)
}

type mockAlerts struct{ mock.Mock }

func (m *mockAlerts) ListOpen(ctx context.Context, shopID int64, limit int) ([]integration.OpenAlertSummary, error) {
	args := m.Called(ctx, shopID, limit)
	list, _ := args.Get(0).([]integration.OpenAlertSummary)
	return list, args.Error(1)
}

func (m *mockAlerts) ForOrder(ctx context.Context, shopID int64, orderSN string) (*ordersync.OrderAlerts, error) {
	args := m.Called(ctx, shopID, orderSN)
	oa, _ := args.Get(0).(*ordersync.OrderAlerts)
	return oa, args.Error(1)
}

func (m *mockAlerts) Resolve(ctx context.Context, shopID int64, alertID uuid.UUID) (*integration.AddressChangeAlert, error) {
	args := m.Called(ctx, shopID, alertID)
	a, _ := args.Get(0).(*integration.AddressChangeAlert)
	return a, args.Error(1)
}

func (m *mockAlerts) ResolveFalsePositives(ctx context.Context, batchSize int) (ordersync.SweepResult, error) {
	args := m.Called(ctx, batchSize)
	return args.Get(0).(ordersync.SweepResult), args.Error(1)
}

type mockGeo struct{ mock.Mock }

func (m *mockGeo) ByState(ctx context.Context, shopID int64, months int) (*ordersync.GeoSalesReport, error) {
	args := m.Called(ctx, shopID, months)
	r, _ := args.Get(0).(*ordersync.GeoSalesReport)
	return r, args.Error(1)
}

func (m *mockGeo) ByCity(ctx context.Context, shopID int64, uf string, months int) (*ordersync.GeoSalesReport, error) {
	args := m.Called(ctx, shopID, uf, months)
	r, _ := args.Get(0).(*ordersync.GeoSalesReport)
	return r, args.Error(1)
}

type mockShops struct{ mock.Mock }

func (m *mockShops) ListActive(ctx context.Context) ([]integration.Shop, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]integration.Shop)
	return list, args.Error(1)
}

func (m *mockShops) Register(ctx context.Context, input ordersync.RegisterShopInput) (*integration.Shop, error) {
	args := m.Called(ctx, input)
	s, _ := args.Get(0).(*integration.Shop)
	return s, args.Error(1)
}

// request runs one request through a single route
func request(method, pattern string, h gin.HandlerFunc, target string, body io.Reader) *httptest.ResponseRecorder {
	engine := gin.New()
	engine.Handle(method, pattern, h)
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

