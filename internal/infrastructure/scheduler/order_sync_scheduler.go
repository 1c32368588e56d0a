package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Order Sync Job Types
// ---------------------------------------------------------------------------

// OrderSyncJobStatus represents the status of an order sync job
type OrderSyncJobStatus string

const (
	OrderSyncJobStatusPending   OrderSyncJobStatus = "PENDING"
	OrderSyncJobStatusRunning   OrderSyncJobStatus = "RUNNING"
	OrderSyncJobStatusSuccess   OrderSyncJobStatus = "SUCCESS"
	OrderSyncJobStatusFailed    OrderSyncJobStatus = "FAILED"
	OrderSyncJobStatusSkipped   OrderSyncJobStatus = "SKIPPED"
	OrderSyncJobStatusCancelled OrderSyncJobStatus = "CANCELLED"
)

// IsFinished reports whether the job will not run again
func (s OrderSyncJobStatus) IsFinished() bool {
	switch s {
	case OrderSyncJobStatusSuccess, OrderSyncJobStatusFailed,
		OrderSyncJobStatusSkipped, OrderSyncJobStatusCancelled:
		return true
	}
	return false
}

// Job triggers, used as log fields and profiling labels
const (
	TriggerAPI   = "api"
	TriggerCron  = "cron"
	TriggerQueue = "queue"
)

// MaxRetryDelay caps the exponential retry backoff
const MaxRetryDelay = 30 * time.Minute

// OrderSyncJob represents a scheduled order sync job. ShopID, RangeDays and
// Trigger never change after creation.
type OrderSyncJob struct {
	ID          uuid.UUID             `json:"id"`
	ShopID      int64                 `json:"shop_id"`
	RangeDays   int                   `json:"rangeDays"`
	Trigger     string                `json:"trigger"`
	Status      OrderSyncJobStatus    `json:"status"`
	Error       string                `json:"error,omitempty"`
	RetryCount  int                   `json:"retry_count"`
	MaxRetries  int                   `json:"max_retries"`
	CreatedAt   time.Time             `json:"created_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	NextRetryAt *time.Time            `json:"next_retry_at,omitempty"`
	Result      *ordersync.SyncResult `json:"result,omitempty"`
}

// JobRequest describes a job to submit
type JobRequest struct {
	ShopID    int64
	RangeDays int // 0 selects the default window
	Trigger   string
}

// NewOrderSyncJob creates a pending job. The range is clamped to the
// supported sync window.
func NewOrderSyncJob(req JobRequest, maxRetries int, now time.Time) *OrderSyncJob {
	rangeDays := req.RangeDays
	if rangeDays == 0 {
		rangeDays = ordersync.DefaultRangeDays
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerAPI
	}
	return &OrderSyncJob{
		ID:         uuid.New(),
		ShopID:     req.ShopID,
		RangeDays:  ordersync.ClampRangeDays(rangeDays),
		Trigger:    trigger,
		Status:     OrderSyncJobStatusPending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
	}
}

func (j *OrderSyncJob) start(now time.Time) {
	j.Status = OrderSyncJobStatusRunning
	j.StartedAt = &now
	j.NextRetryAt = nil
	j.Error = ""
}

func (j *OrderSyncJob) complete(result *ordersync.SyncResult, now time.Time) {
	j.Status = OrderSyncJobStatusSuccess
	j.Result = result
	j.CompletedAt = &now
}

func (j *OrderSyncJob) finish(status OrderSyncJobStatus, err error, now time.Time) {
	j.Status = status
	j.CompletedAt = &now
	if err != nil {
		j.Error = err.Error()
	}
}

// scheduleRetry moves the job back to pending and returns the backoff
func (j *OrderSyncJob) scheduleRetry(err error, baseDelay time.Duration, now time.Time) time.Duration {
	j.RetryCount++
	j.Status = OrderSyncJobStatusPending
	j.Error = err.Error()
	delay := RetryBackoff(baseDelay, j.RetryCount)
	next := now.Add(delay)
	j.NextRetryAt = &next
	return delay
}

// RetryBackoff returns baseDelay * 2^(retry-1), capped at MaxRetryDelay
func RetryBackoff(baseDelay time.Duration, retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := baseDelay
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	return min(delay, MaxRetryDelay)
}

// ---------------------------------------------------------------------------
// OrderSyncExecutor Interface
// ---------------------------------------------------------------------------

// OrderSyncExecutor executes order sync jobs
type OrderSyncExecutor interface {
	// Execute runs one attempt of the job
	Execute(ctx context.Context, job *OrderSyncJob) (*ordersync.SyncResult, error)
}

// ---------------------------------------------------------------------------
// OrderSyncSchedulerConfig
// ---------------------------------------------------------------------------

// OrderSyncSchedulerConfig holds configuration for order sync scheduler
type OrderSyncSchedulerConfig struct {
	// Workers is the maximum number of concurrent sync jobs
	Workers int
	// QueueCapacity bounds the number of jobs waiting for a worker
	QueueCapacity int
	// JobTimeout is the maximum time one attempt can run
	JobTimeout time.Duration
	// MaxRetries is the number of retry attempts for failed jobs
	MaxRetries int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// HistorySize is the number of finished jobs kept for GetJob
	HistorySize int
}

// DefaultOrderSyncSchedulerConfig returns default configuration
func DefaultOrderSyncSchedulerConfig() OrderSyncSchedulerConfig {
	return OrderSyncSchedulerConfig{
		Workers:       2,
		QueueCapacity: 100,
		JobTimeout:    30 * time.Minute,
		MaxRetries:    3,
		RetryDelay:    30 * time.Second,
		HistorySize:   100,
	}
}

// Validate validates the configuration
func (c *OrderSyncSchedulerConfig) Validate() error {
	if c.Workers <= 0 || c.QueueCapacity <= 0 || c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 || c.RetryDelay <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxRetries < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// OrderSyncStats summarizes scheduler activity
type OrderSyncStats struct {
	Running   bool `json:"running"`
	Workers   int  `json:"workers"`
	Queued    int  `json:"queued"`
	Active    int  `json:"active"`
	Waiting   int  `json:"waiting_retry"`
	Submitted int  `json:"submitted"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Retried   int  `json:"retried"`
}

// ---------------------------------------------------------------------------
// OrderSyncScheduler
// ---------------------------------------------------------------------------

// OrderSyncScheduler runs order sync jobs on a bounded worker pool
type OrderSyncScheduler struct {
	config   OrderSyncSchedulerConfig
	executor OrderSyncExecutor
	logger   *zap.Logger
	now      func() time.Time

	queue  chan *OrderSyncJob
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
	jobs      map[uuid.UUID]*OrderSyncJob
	finished  []uuid.UUID // newest first
	retries   map[uuid.UUID]*time.Timer
	stats     OrderSyncStats
}

// NewOrderSyncScheduler creates a new order sync scheduler
func NewOrderSyncScheduler(config OrderSyncSchedulerConfig, executor OrderSyncExecutor, logger *zap.Logger) (*OrderSyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &OrderSyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		now:      time.Now,
		queue:    make(chan *OrderSyncJob, config.QueueCapacity),
		jobs:     make(map[uuid.UUID]*OrderSyncJob),
		finished: make([]uuid.UUID, 0, config.HistorySize),
		retries:  make(map[uuid.UUID]*time.Timer),
	}, nil
}

// Start starts the worker pool
func (s *OrderSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Order sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Int("max_retries", s.config.MaxRetries),
	)

	return nil
}

// Stop gracefully stops the scheduler. Queued jobs and jobs waiting for a
// retry are cancelled.
func (s *OrderSyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	for id, timer := range s.retries {
		timer.Stop()
		delete(s.retries, id)
		s.cancelJobLocked(s.jobs[id])
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Order sync scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case job := <-s.queue:
			s.cancelJobLocked(job)
		default:
			s.logger.Info("Order sync scheduler stopped gracefully")
			return nil
		}
	}
}

// SubmitJob queues a sync of the shop's last rangeDays days
func (s *OrderSyncScheduler) SubmitJob(ctx context.Context, shopID int64, rangeDays int) (*OrderSyncJob, error) {
	return s.Submit(ctx, JobRequest{ShopID: shopID, RangeDays: rangeDays, Trigger: TriggerAPI})
}

// Submit queues a job and returns a snapshot of it
func (s *OrderSyncScheduler) Submit(ctx context.Context, req JobRequest) (*OrderSyncJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ShopID <= 0 {
		return nil, integration.ErrInvalidShopID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil, ErrSchedulerNotRunning
	}

	job := NewOrderSyncJob(req, s.config.MaxRetries, s.now())
	select {
	case s.queue <- job:
	default:
		return nil, ErrJobQueueFull
	}
	s.jobs[job.ID] = job
	s.stats.Submitted++

	s.logger.Debug("Order sync job submitted",
		zap.String("job_id", job.ID.String()),
		zap.Int64("shop_id", job.ShopID),
		zap.Int("range_days", job.RangeDays),
		zap.String("trigger", job.Trigger),
	)

	snapshot := *job
	return &snapshot, nil
}

// GetJob returns a snapshot of a pending, running or recently finished job
func (s *OrderSyncScheduler) GetJob(id uuid.UUID) (*OrderSyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// GetJobHistory returns up to limit finished jobs, newest first
func (s *OrderSyncScheduler) GetJobHistory(limit int) []*OrderSyncJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.finished) {
		limit = len(s.finished)
	}
	result := make([]*OrderSyncJob, 0, limit)
	for _, id := range s.finished[:limit] {
		snapshot := *s.jobs[id]
		result = append(result, &snapshot)
	}
	return result
}

// Stats returns a snapshot of the scheduler counters
func (s *OrderSyncScheduler) Stats() OrderSyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Running = s.isRunning
	stats.Workers = s.config.Workers
	stats.Queued = len(s.queue)
	stats.Waiting = len(s.retries)
	return stats
}

// worker processes jobs from the queue
func (s *OrderSyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			if ctx.Err() != nil {
				s.mu.Lock()
				s.cancelJobLocked(job)
				s.mu.Unlock()
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob runs one attempt of a job
func (s *OrderSyncScheduler) processJob(ctx context.Context, job *OrderSyncJob, workerID int) {
	s.mu.Lock()
	job.start(s.now())
	s.stats.Active++
	s.mu.Unlock()

	s.logger.Info("Processing order sync job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.Int64("shop_id", job.ShopID),
		zap.Int("range_days", job.RangeDays),
		zap.String("trigger", job.Trigger),
		zap.Int("attempt", job.RetryCount+1),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	result, err := s.executor.Execute(jobCtx, job)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Active--
	now := s.now()

	switch {
	case err == nil:
		job.complete(result, now)
		s.stats.Succeeded++
		var summary ordersync.SyncSummary
		if result != nil {
			summary = result.Summary
		}
		s.logger.Info("Order sync job completed",
			zap.String("job_id", job.ID.String()),
			zap.Int64("shop_id", job.ShopID),
			zap.Int("processed", summary.Processed),
			zap.Int("address_changed", summary.AddressChanged),
		)

	case errors.Is(err, ErrOrderSyncAlreadyInProgress):
		job.finish(OrderSyncJobStatusSkipped, err, now)
		s.stats.Skipped++
		s.logger.Info("Order sync job skipped, shop is already syncing",
			zap.String("job_id", job.ID.String()),
			zap.Int64("shop_id", job.ShopID),
		)

	case ctx.Err() != nil:
		s.cancelJobLocked(job)
		return

	case IsRetryable(err) && job.RetryCount < job.MaxRetries && s.isRunning:
		delay := job.scheduleRetry(err, s.config.RetryDelay, now)
		s.stats.Retried++
		s.retries[job.ID] = time.AfterFunc(delay, func() { s.requeue(job) })
		s.logger.Warn("Order sync job failed, scheduled for retry",
			zap.String("job_id", job.ID.String()),
			zap.Int64("shop_id", job.ShopID),
			zap.Int("retry_count", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		return

	default:
		job.finish(OrderSyncJobStatusFailed, err, now)
		s.stats.Failed++
		s.logger.Error("Order sync job failed",
			zap.String("job_id", job.ID.String()),
			zap.Int64("shop_id", job.ShopID),
			zap.Int("retry_count", job.RetryCount),
			zap.Bool("retryable", IsRetryable(err)),
			zap.Error(err),
		)
	}

	s.addToHistoryLocked(job)
}

// requeue puts a job waiting for its retry back on the queue
func (s *OrderSyncScheduler) requeue(job *OrderSyncJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, waiting := s.retries[job.ID]; !waiting {
		return
	}
	delete(s.retries, job.ID)

	if !s.isRunning {
		s.cancelJobLocked(job)
		return
	}
	select {
	case s.queue <- job:
	default:
		job.finish(OrderSyncJobStatusFailed, ErrJobQueueFull, s.now())
		s.stats.Failed++
		s.addToHistoryLocked(job)
		s.logger.Warn("Failed to re-queue order sync job for retry",
			zap.String("job_id", job.ID.String()),
		)
	}
}

func (s *OrderSyncScheduler) cancelJobLocked(job *OrderSyncJob) {
	if job == nil || job.Status.IsFinished() {
		return
	}
	job.finish(OrderSyncJobStatusCancelled, nil, s.now())
	s.addToHistoryLocked(job)
}

// addToHistoryLocked records a finished job and evicts the oldest ones
func (s *OrderSyncScheduler) addToHistoryLocked(job *OrderSyncJob) {
	s.finished = append([]uuid.UUID{job.ID}, s.finished...)
	if len(s.finished) > s.config.HistorySize {
		for _, id := range s.finished[s.config.HistorySize:] {
			delete(s.jobs, id)
		}
		s.finished = s.finished[:s.config.HistorySize]
	}
}
