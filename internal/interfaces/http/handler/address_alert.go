package handler

import (
	"context"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AlertQueries is the alert workflow used by the API
type AlertQueries interface {
	ListOpen(ctx context.Context, shopID int64, limit int) ([]integration.OpenAlertSummary, error)
	ForOrder(ctx context.Context, shopID int64, orderSN string) (*ordersync.OrderAlerts, error)
	Resolve(ctx context.Context, shopID int64, alertID uuid.UUID) (*integration.AddressChangeAlert, error)
}

// AddressAlertHandler serves the address change alert endpoints
type AddressAlertHandler struct {
	BaseHandler
	alerts AlertQueries
}

// NewAddressAlertHandler creates an AddressAlertHandler
func NewAddressAlertHandler(alerts AlertQueries) *AddressAlertHandler {
	return &AddressAlertHandler{alerts: alerts}
}

// ListOpen lists the shop's open alerts without personal data.
// GET /shops/:shopId/address-alerts?limit=
//
//	@Summary		List open address alerts
//	@Description	Open alerts of the shop with coarse old and new locations, newest first
//	@Tags			address-alerts
//	@Produce		json
//	@Param			shopId	path		int		true	"Marketplace shop id"
//	@Param			limit	query		int	false	"Maximum alerts"	default(200)	maximum(500)
//	@Success		200		{object}	dto.Response{data=[]dto.OpenAlertResponse,meta=dto.Meta}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/shops/{shopId}/address-alerts [get]
func (h *AddressAlertHandler) ListOpen(c *gin.Context) {
	shopID, err := parseShopID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var q dto.AlertListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	limit := ordersync.ClampAlertLimit(q.Limit)
	alerts, err := h.alerts.ListOpen(c.Request.Context(), shopID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, dto.ToOpenAlertResponses(alerts), len(alerts), limit)
}

// ForOrder returns an order with its open alerts and full snapshots.
// GET /shops/:shopId/orders/:orderSn/address-alerts
//
//	@Summary		Get the open alerts of an order
//	@Tags			address-alerts
//	@Produce		json
//	@Param			shopId	path		int		true	"Marketplace shop id"
//	@Param			orderSn	path		string	true	"Order serial number"
//	@Success		200		{object}	dto.Response{data=dto.OrderAlertsResponse}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/shops/{shopId}/orders/{orderSn}/address-alerts [get]
func (h *AddressAlertHandler) ForOrder(c *gin.Context) {
	shopID, err := parseShopID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	oa, err := h.alerts.ForOrder(c.Request.Context(), shopID, c.Param("orderSn"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToOrderAlertsResponse(oa))
}

// Resolve closes an alert. POST /shops/:shopId/address-alerts/:alertId/resolve
//
//	@Summary		Resolve an address alert
//	@Tags			address-alerts
//	@Produce		json
//	@Param			shopId	path		int		true	"Marketplace shop id"
//	@Param			alertId	path		string	true	"Alert id"	format(uuid)
//	@Success		200		{object}	dto.Response{data=dto.ResolvedAlertResponse}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/shops/{shopId}/address-alerts/{alertId}/resolve [post]
func (h *AddressAlertHandler) Resolve(c *gin.Context) {
	shopID, err := parseShopID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	alertID, err := parseUUIDParam(c, "alertId")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	alert, err := h.alerts.Resolve(c.Request.Context(), shopID, alertID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToResolvedAlertResponse(alert))
}
