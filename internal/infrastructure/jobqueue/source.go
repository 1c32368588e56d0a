package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
)

// MessageSource hands out queued messages
type MessageSource interface {
	// Consume returns nil, nil when no message arrived in time
	Consume() (*Message, error)
	Ack(msg *Message) error
}

// JobPublisher enqueues raw payloads
type JobPublisher interface {
	Publish(data []byte, delay time.Duration) (string, error)
}

// Submitter accepts sync jobs
type Submitter interface {
	Submit(ctx context.Context, req scheduler.JobRequest) (*scheduler.OrderSyncJob, error)
}

// SourceStats counts what the source did with consumed messages
type SourceStats struct {
	Consumed int64 `json:"consumed"`
	Accepted int64 `json:"accepted"`
	Dropped  int64 `json:"dropped"`
	Deferred int64 `json:"deferred"`
	Errors   int64 `json:"errors"`
}

// LmstfySource feeds jobs from a queue into the scheduler. A message is
// acked once the scheduler accepted it, or when it can never be accepted.
// Messages the scheduler cannot take right now are left for redelivery.
type LmstfySource struct {
	source       MessageSource
	submitter    Submitter
	logger       *zap.Logger
	errorBackoff time.Duration

	closing *atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	consumed *atomic.Int64
	accepted *atomic.Int64
	dropped  *atomic.Int64
	deferred *atomic.Int64
	errs     *atomic.Int64
}

// NewLmstfySource creates a source
func NewLmstfySource(source MessageSource, submitter Submitter, logger *zap.Logger) *LmstfySource {
	return &LmstfySource{
		source:       source,
		submitter:    submitter,
		logger:       logger,
		errorBackoff: time.Second,
		closing:      atomic.NewBool(false),
		consumed:     atomic.NewInt64(0),
		accepted:     atomic.NewInt64(0),
		dropped:      atomic.NewInt64(0),
		deferred:     atomic.NewInt64(0),
		errs:         atomic.NewInt64(0),
	}
}

// Start launches the consume loop
func (s *LmstfySource) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("Order sync queue consumer started")
}

// Stop ends the loop and waits for the in-flight consume call
func (s *LmstfySource) Stop() {
	if !s.closing.CAS(false, true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Order sync queue consumer stopped")
}

// Stats returns a snapshot of the counters
func (s *LmstfySource) Stats() SourceStats {
	return SourceStats{
		Consumed: s.consumed.Load(),
		Accepted: s.accepted.Load(),
		Dropped:  s.dropped.Load(),
		Deferred: s.deferred.Load(),
		Errors:   s.errs.Load(),
	}
}

func (s *LmstfySource) loop(ctx context.Context) {
	defer s.wg.Done()

	for ctx.Err() == nil {
		msg, err := s.source.Consume()
		if err != nil {
			s.errs.Inc()
			s.logger.Warn("Failed to consume order sync job", zap.Error(err))
			s.sleep(ctx, s.errorBackoff)
			continue
		}
		if msg == nil {
			continue
		}
		if ctx.Err() != nil {
			// not acked, lmstfy redelivers it after the TTR
			return
		}
		if deferred := s.Handle(ctx, msg); deferred {
			s.sleep(ctx, s.errorBackoff)
		}
	}
}

// Handle processes one message and reports whether it was left for
// redelivery
func (s *LmstfySource) Handle(ctx context.Context, msg *Message) bool {
	s.consumed.Inc()

	payload, err := DecodeSyncJob(msg.Data)
	if err != nil {
		s.dropped.Inc()
		s.logger.Error("Dropping malformed order sync job",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		s.ack(msg)
		return false
	}

	job, err := s.submitter.Submit(ctx, scheduler.JobRequest{
		ShopID:    payload.ShopID,
		RangeDays: payload.RangeDays,
		Trigger:   scheduler.TriggerQueue,
	})
	switch {
	case err == nil:
		s.accepted.Inc()
		s.logger.Info("Queued order sync job accepted",
			zap.String("message_id", msg.ID),
			zap.String("job_id", job.ID.String()),
			zap.Int64("shop_id", payload.ShopID),
		)
		s.ack(msg)
		return false

	case errors.Is(err, integration.ErrInvalidShopID):
		s.dropped.Inc()
		s.logger.Error("Dropping order sync job for invalid shop",
			zap.String("message_id", msg.ID),
			zap.Int64("shop_id", payload.ShopID),
		)
		s.ack(msg)
		return false

	default:
		s.deferred.Inc()
		s.logger.Warn("Scheduler did not accept queued order sync job, leaving it for redelivery",
			zap.String("message_id", msg.ID),
			zap.Int64("shop_id", payload.ShopID),
			zap.Error(err),
		)
		return true
	}
}

func (s *LmstfySource) ack(msg *Message) {
	if err := s.source.Ack(msg); err != nil {
		s.errs.Inc()
		s.logger.Warn("Failed to ack order sync job",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func (s *LmstfySource) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// LmstfyPublisher publishes sync jobs for any consumer of the queue
type LmstfyPublisher struct {
	publisher JobPublisher
	logger    *zap.Logger
}

// NewLmstfyPublisher creates a publisher
func NewLmstfyPublisher(publisher JobPublisher, logger *zap.Logger) *LmstfyPublisher {
	return &LmstfyPublisher{publisher: publisher, logger: logger}
}

// PublishSync enqueues a sync of the shop, run after delay
func (p *LmstfyPublisher) PublishSync(shopID int64, rangeDays int, delay time.Duration) (string, error) {
	if shopID <= 0 {
		return "", integration.ErrInvalidShopID
	}
	data, err := json.Marshal(SyncJobMessage{ShopID: shopID, RangeDays: rangeDays})
	if err != nil {
		return "", fmt.Errorf("encode sync job: %w", err)
	}
	jobID, err := p.publisher.Publish(data, delay)
	if err != nil {
		return "", err
	}
	p.logger.Debug("Published order sync job",
		zap.String("message_id", jobID),
		zap.Int64("shop_id", shopID),
		zap.Int("range_days", rangeDays),
	)
	return jobID, nil
}
