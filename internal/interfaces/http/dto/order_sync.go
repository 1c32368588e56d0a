package dto

import (
	"time"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
	"github.com/google/uuid"
)

// SyncQuery is the query of the synchronous sync endpoint. RangeDays is
// parsed leniently: anything unparseable selects the default window.
type SyncQuery struct {
	RangeDays string `form:"rangeDays"`
}

// SubmitSyncJobRequest is the optional body of POST .../orders/sync/jobs
type SubmitSyncJobRequest struct {
	RangeDays int `json:"rangeDays" binding:"omitempty,min=1"`
}

// JobListQuery bounds the job history listing
type JobListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// SyncJobResponse is the API view of a scheduled sync job
type SyncJobResponse struct {
	ID          uuid.UUID             `json:"id"`
	ShopID      int64                 `json:"shopId"`
	RangeDays   int                   `json:"rangeDays"`
	Trigger     string                `json:"trigger"`
	Status      string                `json:"status"`
	Error       string                `json:"error,omitempty"`
	Attempts    int                   `json:"attempts"`
	MaxRetries  int                   `json:"maxRetries"`
	CreatedAt   time.Time             `json:"createdAt"`
	StartedAt   *time.Time            `json:"startedAt,omitempty"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
	NextRetryAt *time.Time            `json:"nextRetryAt,omitempty"`
	Result      *ordersync.SyncResult `json:"result,omitempty"`
}

// ToSyncJobResponse converts a job. The job must not be mutated concurrently;
// the scheduler hands out copies.
func ToSyncJobResponse(job *scheduler.OrderSyncJob) SyncJobResponse {
	return SyncJobResponse{
		ID:          job.ID,
		ShopID:      job.ShopID,
		RangeDays:   job.RangeDays,
		Trigger:     job.Trigger,
		Status:      string(job.Status),
		Error:       job.Error,
		Attempts:    job.RetryCount,
		MaxRetries:  job.MaxRetries,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		NextRetryAt: job.NextRetryAt,
		Result:      job.Result,
	}
}

// ToSyncJobResponses converts a job list
func ToSyncJobResponses(jobs []*scheduler.OrderSyncJob) []SyncJobResponse {
	out := make([]SyncJobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, ToSyncJobResponse(job))
	}
	return out
}

// SyncStatsResponse combines scheduler and queue counters
type SyncStatsResponse struct {
	Scheduler scheduler.OrderSyncStats `json:"scheduler"`
	Queue     any                      `json:"queue,omitempty"`
}
