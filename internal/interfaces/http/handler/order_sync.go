package handler

import (
	"context"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultJobListLimit = 20

// SyncRunner runs one sync in the calling goroutine under the shop lock
type SyncRunner interface {
	Run(ctx context.Context, shopID int64, rangeDays int, trigger string) (*ordersync.SyncResult, error)
}

// JobScheduler queues background syncs and reports on them
type JobScheduler interface {
	Submit(ctx context.Context, req scheduler.JobRequest) (*scheduler.OrderSyncJob, error)
	GetJob(id uuid.UUID) (*scheduler.OrderSyncJob, error)
	GetJobHistory(limit int) []*scheduler.OrderSyncJob
	Stats() scheduler.OrderSyncStats
}

// OrderSyncHandler serves the sync endpoints
type OrderSyncHandler struct {
	BaseHandler
	runner     SyncRunner
	jobs       JobScheduler
	queueStats func() any
}

// NewOrderSyncHandler creates the handler. queueStats reports the external
// queue consumer and may be nil.
func NewOrderSyncHandler(runner SyncRunner, jobs JobScheduler, queueStats func() any) *OrderSyncHandler {
	return &OrderSyncHandler{runner: runner, jobs: jobs, queueStats: queueStats}
}

// Sync runs a sync of the shop and returns its summary.
// POST /shops/:shopId/orders/sync?rangeDays=N
//
//	@Summary		Sync shop orders
//	@Description	Pull orders updated in the window, record address changes and return the run summary
//	@Tags			order-sync
//	@Produce		json
//	@Param			shopId	path		int		true	"Marketplace shop id"
//	@Param			rangeDays	query		string	false	"Days of order updates, clamped to 1..180"	default(7)
//	@Success		200			{object}	dto.Response{data=ordersync.SyncResult}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		409	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		429	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		502	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		503	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/shops/{shopId}/orders/sync [post]
func (h *OrderSyncHandler) Sync(c *gin.Context) {
	shopID, err := parseShopID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var q dto.SyncQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.runner.Run(c.Request.Context(), shopID, ordersync.ParseRangeDays(q.RangeDays), scheduler.TriggerAPI)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SubmitJob queues a background sync of the shop.
// POST /shops/:shopId/orders/sync/jobs
//
//	@Summary		Queue a background sync
//	@Tags			order-sync
//	@Accept			json
//	@Produce		json
//	@Param			shopId	path		int		true	"Marketplace shop id"
//	@Param			request	body		dto.SubmitSyncJobRequest	false	"Sync window"
//	@Success		202		{object}	dto.Response{data=dto.SyncJobResponse}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		429	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		503	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/shops/{shopId}/orders/sync/jobs [post]
func (h *OrderSyncHandler) SubmitJob(c *gin.Context) {
	shopID, err := parseShopID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req dto.SubmitSyncJobRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}

	job, err := h.jobs.Submit(c.Request.Context(), scheduler.JobRequest{
		ShopID:    shopID,
		RangeDays: req.RangeDays,
		Trigger:   scheduler.TriggerAPI,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.ToSyncJobResponse(job))
}

// GetJob returns one job. GET /sync/jobs/:jobId
//
//	@Summary		Get a sync job
//	@Tags			order-sync
//	@Produce		json
//	@Param			jobId	path		string	true	"Job id"	format(uuid)
//	@Success		200		{object}	dto.Response{data=dto.SyncJobResponse}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/sync/jobs/{jobId} [get]
func (h *OrderSyncHandler) GetJob(c *gin.Context) {
	id, err := parseUUIDParam(c, "jobId")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	job, err := h.jobs.GetJob(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSyncJobResponse(job))
}

// ListJobs returns recently finished jobs, newest first. GET /sync/jobs
//
//	@Summary		List finished sync jobs
//	@Tags			order-sync
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum jobs"	default(20)	maximum(100)
//	@Success		200		{object}	dto.Response{data=[]dto.SyncJobResponse,meta=dto.Meta}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/sync/jobs [get]
func (h *OrderSyncHandler) ListJobs(c *gin.Context) {
	var q dto.JobListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultJobListLimit
	}
	jobs := dto.ToSyncJobResponses(h.jobs.GetJobHistory(limit))
	h.List(c, jobs, len(jobs), limit)
}

// Stats returns scheduler and queue counters. GET /sync/stats
//
//	@Summary		Sync scheduler statistics
//	@Tags			order-sync
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=dto.SyncStatsResponse}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/sync/stats [get]
func (h *OrderSyncHandler) Stats(c *gin.Context) {
	resp := dto.SyncStatsResponse{Scheduler: h.jobs.Stats()}
	if h.queueStats != nil {
		resp.Queue = h.queueStats()
	}
	h.Success(c, resp)
}
