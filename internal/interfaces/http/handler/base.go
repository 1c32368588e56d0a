// Package handler holds the gin handlers of the order sync API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides the response helpers shared by all handlers
type BaseHandler struct{}

// errorMapping maps a sentinel error to an API error code and the message
// sent to the client.
type errorMapping struct {
	target  error
	code    string
	message string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{ordersync.ErrShopNotRegistered, dto.ErrCodeNotFound, "shop is not registered"},
	{integration.ErrShopNotFound, dto.ErrCodeNotFound, "shop is not registered"},
	{integration.ErrOrderNotFound, dto.ErrCodeNotFound, "order not found"},
	{integration.ErrAlertNotFound, dto.ErrCodeNotFound, "address change alert not found"},
	{scheduler.ErrJobNotFound, dto.ErrCodeNotFound, "sync job not found"},
	{integration.ErrInvalidShopID, dto.ErrCodeInvalidInput, "shop id must be a positive integer"},
	{ordersync.ErrInvalidState, dto.ErrCodeInvalidInput, "unknown Brazilian state"},
	{scheduler.ErrOrderSyncAlreadyInProgress, dto.ErrCodeConflict, "a sync is already running for this shop"},
	{scheduler.ErrJobQueueFull, dto.ErrCodeUnavailable, "sync queue is full, try again later"},
	{scheduler.ErrSchedulerNotRunning, dto.ErrCodeUnavailable, "sync scheduler is not running"},
	{integration.ErrPlatformRateLimited, dto.ErrCodeUpstreamRateLimited, "marketplace rate limit reached"},
	{integration.ErrPlatformAuthFailed, dto.ErrCodeUpstream, "marketplace rejected the shop credentials"},
	{integration.ErrPlatformNotConfigured, dto.ErrCodeUpstream, "marketplace client is not configured"},
	{integration.ErrPlatformUnavailable, dto.ErrCodeUpstream, "marketplace is unavailable"},
	{integration.ErrPlatformRequestFailed, dto.ErrCodeUpstream, "marketplace request failed"},
	{integration.ErrPlatformInvalidResponse, dto.ErrCodeUpstream, "marketplace returned an invalid response"},
}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// List sends a 200 response carrying the item count and applied limit
func (h *BaseHandler) List(c *gin.Context, data any, count, limit int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, count, limit))
}

// Accepted sends a 202 response for work queued in the background
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response, deriving the status from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// ValidationError sends a 400 response describing binding failures
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError converts err to an API response. Unknown errors become 500
// and are logged; their text is never sent to the client.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if dto.GetHTTPStatus(m.code) >= http.StatusInternalServerError {
				logger.GetGinLogger(c).Warn("Request failed", zap.String("code", m.code), zap.Error(err))
			}
			h.Error(c, m.code, m.message)
			return
		}
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, domainErr.Code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("Unhandled request error", zap.Error(err))
	h.Error(c, dto.ErrCodeInternal, "an unexpected error occurred")
}

// parseShopID reads the :shopId path parameter
func parseShopID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("shopId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewDomainError(dto.ErrCodeInvalidInput, "shop id must be a positive integer")
	}
	return id, nil
}

// parseUUIDParam reads a UUID path parameter
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, shared.NewDomainError(dto.ErrCodeInvalidInput, name+" must be a UUID")
	}
	return id, nil
}
