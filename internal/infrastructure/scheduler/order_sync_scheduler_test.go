package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

// mockOrderSyncExecutor implements OrderSyncExecutor for testing
type mockOrderSyncExecutor struct {
	execCount   int32
	executeFunc func(ctx context.Context, job *OrderSyncJob) (*ordersync.SyncResult, error)
}

func (m *mockOrderSyncExecutor) Execute(ctx context.Context, job *OrderSyncJob) (*ordersync.SyncResult, error) {
	atomic.AddInt32(&m.execCount, 1)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, job)
	}
	return okResult(job), nil
}

func (m *mockOrderSyncExecutor) calls() int32 {
	return atomic.LoadInt32(&m.execCount)
}

func okResult(job *OrderSyncJob) *ordersync.SyncResult {
	return &ordersync.SyncResult{
		Status:    ordersync.SyncStatusOK,
		ShopID:    job.ShopID,
		RangeDays: job.RangeDays,
		Summary:   ordersync.SyncSummary{Processed: 3},
	}
}

func testSchedulerConfig() OrderSyncSchedulerConfig {
	config := DefaultOrderSyncSchedulerConfig()
	config.RetryDelay = 5 * time.Millisecond
	config.JobTimeout = 5 * time.Second
	return config
}

func startScheduler(t *testing.T, config OrderSyncSchedulerConfig, executor OrderSyncExecutor) *OrderSyncScheduler {
	t.Helper()
	s, err := NewOrderSyncScheduler(config, executor, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func waitForStatus(t *testing.T, s *OrderSyncScheduler, job *OrderSyncJob, status OrderSyncJobStatus) *OrderSyncJob {
	t.Helper()
	var last *OrderSyncJob
	require.Eventually(t, func() bool {
		got, err := s.GetJob(job.ID)
		if err != nil {
			return false
		}
		last = got
		return got.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

// ---------------------------------------------------------------------------
// OrderSyncJob Tests
// ---------------------------------------------------------------------------

func TestNewOrderSyncJob(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	job := NewOrderSyncJob(JobRequest{ShopID: 990011, RangeDays: 30, Trigger: TriggerCron}, 3, now)

	assert.Equal(t, int64(990011), job.ShopID)
	assert.Equal(t, 30, job.RangeDays)
	assert.Equal(t, TriggerCron, job.Trigger)
	assert.Equal(t, OrderSyncJobStatusPending, job.Status)
	assert.Equal(t, 3, job.MaxRetries)
	assert.Equal(t, now, job.CreatedAt)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestNewOrderSyncJob_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		rangeDays int
		expected  int
	}{
		{"zero uses default window", 0, ordersync.DefaultRangeDays},
		{"negative clamps to minimum", -3, ordersync.MinRangeDays},
		{"large clamps to maximum", 1000, ordersync.MaxRangeDays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewOrderSyncJob(JobRequest{ShopID: 1, RangeDays: tt.rangeDays}, 0, time.Now())
			assert.Equal(t, tt.expected, job.RangeDays)
			assert.Equal(t, TriggerAPI, job.Trigger)
		})
	}
}

func TestRetryBackoff(t *testing.T) {
	base := time.Minute
	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{5, 16 * time.Minute},
		{6, MaxRetryDelay},
		{40, MaxRetryDelay},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("retry %d", tt.retry), func(t *testing.T) {
			assert.Equal(t, tt.expected, RetryBackoff(base, tt.retry))
		})
	}
}

func TestOrderSyncJob_ScheduleRetry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	job := NewOrderSyncJob(JobRequest{ShopID: 1}, 3, now)
	job.start(now)

	delay := job.scheduleRetry(errors.New("boom"), 30*time.Second, now)
	assert.Equal(t, 30*time.Second, delay)
	assert.Equal(t, OrderSyncJobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "boom", job.Error)
	require.NotNil(t, job.NextRetryAt)
	assert.Equal(t, now.Add(30*time.Second), *job.NextRetryAt)

	delay = job.scheduleRetry(errors.New("boom"), 30*time.Second, now)
	assert.Equal(t, time.Minute, delay)
}

func TestOrderSyncSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*OrderSyncSchedulerConfig)
		wantErr bool
	}{
		{"default is valid", func(*OrderSyncSchedulerConfig) {}, false},
		{"zero retries is valid", func(c *OrderSyncSchedulerConfig) { c.MaxRetries = 0 }, false},
		{"no workers", func(c *OrderSyncSchedulerConfig) { c.Workers = 0 }, true},
		{"no queue", func(c *OrderSyncSchedulerConfig) { c.QueueCapacity = 0 }, true},
		{"no timeout", func(c *OrderSyncSchedulerConfig) { c.JobTimeout = 0 }, true},
		{"negative retries", func(c *OrderSyncSchedulerConfig) { c.MaxRetries = -1 }, true},
		{"no retry delay", func(c *OrderSyncSchedulerConfig) { c.RetryDelay = 0 }, true},
		{"no history", func(c *OrderSyncSchedulerConfig) { c.HistorySize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultOrderSyncSchedulerConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"unavailable", fmt.Errorf("list orders: %w", integration.ErrPlatformUnavailable), true},
		{"rate limited", integration.ErrPlatformRateLimited, true},
		{"request failed", integration.ErrPlatformRequestFailed, true},
		{"deadline", context.DeadlineExceeded, true},
		{"database", errors.New("connection reset"), true},
		{"canceled", context.Canceled, false},
		{"shop not registered", fmt.Errorf("%w: 1", ordersync.ErrShopNotRegistered), false},
		{"auth failed", fmt.Errorf("shopee: %w", integration.ErrPlatformAuthFailed), false},
		{"not configured", integration.ErrPlatformNotConfigured, false},
		{"already running", ErrOrderSyncAlreadyInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

// ---------------------------------------------------------------------------
// OrderSyncScheduler Tests
// ---------------------------------------------------------------------------

func TestNewOrderSyncScheduler_InvalidConfig(t *testing.T) {
	config := DefaultOrderSyncSchedulerConfig()
	config.Workers = 0

	s, err := NewOrderSyncScheduler(config, &mockOrderSyncExecutor{}, newTestLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, s)
}

func TestOrderSyncScheduler_SubmitJob_NotRunning(t *testing.T) {
	s, err := NewOrderSyncScheduler(testSchedulerConfig(), &mockOrderSyncExecutor{}, newTestLogger())
	require.NoError(t, err)

	_, err = s.SubmitJob(context.Background(), 990011, 7)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestOrderSyncScheduler_SubmitJob_InvalidShop(t *testing.T) {
	s := startScheduler(t, testSchedulerConfig(), &mockOrderSyncExecutor{})

	_, err := s.SubmitJob(context.Background(), 0, 7)
	assert.ErrorIs(t, err, integration.ErrInvalidShopID)
}

func TestOrderSyncScheduler_StartStopIsIdempotent(t *testing.T) {
	s, err := NewOrderSyncScheduler(testSchedulerConfig(), &mockOrderSyncExecutor{}, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.Stats().Running)

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.Stats().Running)
}

func TestOrderSyncScheduler_RunsJob(t *testing.T) {
	executor := &mockOrderSyncExecutor{}
	s := startScheduler(t, testSchedulerConfig(), executor)

	submitted, err := s.SubmitJob(context.Background(), 990011, 14)
	require.NoError(t, err)
	assert.Equal(t, OrderSyncJobStatusPending, submitted.Status)

	job := waitForStatus(t, s, submitted, OrderSyncJobStatusSuccess)
	require.NotNil(t, job.Result)
	assert.Equal(t, int64(990011), job.Result.ShopID)
	assert.Equal(t, 14, job.Result.RangeDays)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, int32(1), executor.calls())

	stats := s.Stats()
	assert.Equal(t, 1, stats.Submitted)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 0, stats.Active)
}

func TestOrderSyncScheduler_RetriesTransientFailures(t *testing.T) {
	var attempts int32
	executor := &mockOrderSyncExecutor{
		executeFunc: func(ctx context.Context, job *OrderSyncJob) (*ordersync.SyncResult, error) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return nil, fmt.Errorf("list orders: %w", integration.ErrPlatformUnavailable)
			}
			return okResult(job), nil
		},
	}
	s := startScheduler(t, testSchedulerConfig(), executor)

	submitted, err := s.SubmitJob(context.Background(), 990011, 7)
	require.NoError(t, err)

	job := waitForStatus(t, s, submitted, OrderSyncJobStatusSuccess)
	assert.Equal(t, 2, job.RetryCount)
	assert.Equal(t, int32(3), executor.calls())
	assert.Equal(t, 2, s.Stats().Retried)
}

func TestOrderSyncScheduler_GivesUpAfterMaxRetries(t *testing.T) {
	executor := &mockOrderSyncExecutor{
		executeFunc: func(context.Context, *OrderSyncJob) (*ordersync.SyncResult, error) {
			return nil, integration.ErrPlatformRateLimited
		},
	}
	config := testSchedulerConfig()
	config.MaxRetries = 1
	s := startScheduler(t, config, executor)

	submitted, err := s.SubmitJob(context.Background(), 990011, 7)
	require.NoError(t, err)

	job := waitForStatus(t, s, submitted, OrderSyncJobStatusFailed)
	assert.Equal(t, 1, job.RetryCount)
	assert.Contains(t, job.Error, "rate limited")
	assert.Equal(t, int32(2), executor.calls())
}

func TestOrderSyncScheduler_DoesNotRetryConfigurationErrors(t *testing.T) {
	executor := &mockOrderSyncExecutor{
		executeFunc: func(context.Context, *OrderSyncJob) (*ordersync.SyncResult, error) {
			return nil, fmt.Errorf("%w: 990011", ordersync.ErrShopNotRegistered)
		},
	}
	s := startScheduler(t, testSchedulerConfig(), executor)

	submitted, err := s.SubmitJob(context.Background(), 990011, 7)
	require.NoError(t, err)

	job := waitForStatus(t, s, submitted, OrderSyncJobStatusFailed)
	assert.Equal(t, 0, job.RetryCount)
	assert.Equal(t, int32(1), executor.calls())
}

func TestOrderSyncScheduler_SkipsWhenShopAlreadySyncing(t *testing.T) {
	executor := &mockOrderSyncExecutor{
		executeFunc: func(context.Context, *OrderSyncJob) (*ordersync.SyncResult, error) {
			return nil, fmt.Errorf("%w: shop 990011", ErrOrderSyncAlreadyInProgress)
		},
	}
	s := startScheduler(t, testSchedulerConfig(), executor)

	submitted, err := s.SubmitJob(context.Background(), 990011, 7)
	require.NoError(t, err)

	waitForStatus(t, s, submitted, OrderSyncJobStatusSkipped)
	assert.Equal(t, 1, s.Stats().Skipped)
	assert.Equal(t, int32(1), executor.calls())
}

func TestOrderSyncScheduler_QueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	executor := &mockOrderSyncExecutor{
		executeFunc: func(ctx context.Context, job *OrderSyncJob) (*ordersync.SyncResult, error) {
			started <- struct{}{}
			<-release
			return okResult(job), nil
		},
	}
	config := testSchedulerConfig()
	config.Workers = 1
	config.QueueCapacity = 1
	s := startScheduler(t, config, executor)
	defer close(release)

	ctx := context.Background()
	_, err := s.SubmitJob(ctx, 1, 7)
	require.NoError(t, err)
	<-started // the only worker is busy

	_, err = s.SubmitJob(ctx, 2, 7)
	require.NoError(t, err)

	_, err = s.SubmitJob(ctx, 3, 7)
	assert.ErrorIs(t, err, ErrJobQueueFull)
	assert.Equal(t, 1, s.Stats().Queued)
}

func TestOrderSyncScheduler_StopCancelsQueuedJobs(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	executor := &mockOrderSyncExecutor{
		executeFunc: func(ctx context.Context, job *OrderSyncJob) (*ordersync.SyncResult, error) {
			started <- struct{}{}
			select {
			case <-release:
				return okResult(job), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	config := testSchedulerConfig()
	config.Workers = 1
	s, err := NewOrderSyncScheduler(config, executor, newTestLogger())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	running, err := s.SubmitJob(ctx, 1, 7)
	require.NoError(t, err)
	<-started
	queued, err := s.SubmitJob(ctx, 2, 7)
	require.NoError(t, err)

	require.NoError(t, s.Stop(ctx))
	close(release)

	for _, submitted := range []*OrderSyncJob{running, queued} {
		job, err := s.GetJob(submitted.ID)
		require.NoError(t, err)
		assert.Equal(t, OrderSyncJobStatusCancelled, job.Status)
	}
	assert.Equal(t, int32(1), executor.calls())
}

func TestOrderSyncScheduler_HistoryEviction(t *testing.T) {
	config := testSchedulerConfig()
	config.Workers = 1
	config.HistorySize = 2
	s := startScheduler(t, config, &mockOrderSyncExecutor{})

	ctx := context.Background()
	var jobs []*OrderSyncJob
	for shopID := int64(1); shopID <= 3; shopID++ {
		job, err := s.SubmitJob(ctx, shopID, 7)
		require.NoError(t, err)
		waitForStatus(t, s, job, OrderSyncJobStatusSuccess)
		jobs = append(jobs, job)
	}

	_, err := s.GetJob(jobs[0].ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.GetJobHistory(0)
	require.Len(t, history, 2)
	assert.Equal(t, jobs[2].ID, history[0].ID)
	assert.Equal(t, jobs[1].ID, history[1].ID)

	assert.Len(t, s.GetJobHistory(1), 1)
}

func TestOrderSyncScheduler_ConcurrentSubmit(t *testing.T) {
	executor := &mockOrderSyncExecutor{}
	s := startScheduler(t, testSchedulerConfig(), executor)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(shopID int64) {
			defer wg.Done()
			_, err := s.SubmitJob(context.Background(), shopID, 7)
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return s.Stats().Succeeded == 20
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(20), executor.calls())
}
