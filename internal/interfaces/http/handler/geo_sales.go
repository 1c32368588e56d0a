package handler

import (
	"context"
	"strings"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// GeoReports builds geo sales reports
type GeoReports interface {
	ByState(ctx context.Context, shopID int64, months int) (*ordersync.GeoSalesReport, error)
	ByCity(ctx context.Context, shopID int64, uf string, months int) (*ordersync.GeoSalesReport, error)
}

// GeoSalesHandler serves the geo sales reports
type GeoSalesHandler struct {
	BaseHandler
	reports GeoReports
}

// NewGeoSalesHandler creates a GeoSalesHandler
func NewGeoSalesHandler(reports GeoReports) *GeoSalesHandler {
	return &GeoSalesHandler{reports: reports}
}

// ByState reports orders and GMV per UF.
// GET /shops/:shopId/geo-sales/states?months=
//
//	@Summary		Geo sales by state
//	@Tags			geo-sales
//	@Produce		json
//	@Param			shopId	path		int		true	"Marketplace shop id"
//	@Param			months	query		string	false	"Months back, clamped to 1..12"	default(6)
//	@Success		200		{object}	dto.Response{data=ordersync.GeoSalesReport}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/shops/{shopId}/geo-sales/states [get]
func (h *GeoSalesHandler) ByState(c *gin.Context) {
	shopID, err := parseShopID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var q dto.GeoSalesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	report, err := h.reports.ByState(c.Request.Context(), shopID, ordersync.ParseMonths(q.Months))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// ByCity reports orders and GMV per city of one UF.
// GET /shops/:shopId/geo-sales/states/:uf/cities?months=
//
//	@Summary		Geo sales by city of a state
//	@Tags			geo-sales
//	@Produce		json
//	@Param			shopId	path		int		true	"Marketplace shop id"
//	@Param			uf		path		string	true	"Brazilian state code"
//	@Param			months	query		string	false	"Months back, clamped to 1..12"	default(6)
//	@Success		200		{object}	dto.Response{data=ordersync.GeoSalesReport}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/shops/{shopId}/geo-sales/states/{uf}/cities [get]
func (h *GeoSalesHandler) ByCity(c *gin.Context) {
	shopID, err := parseShopID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var path dto.GeoCityPath
	if err := c.ShouldBindUri(&path); err != nil {
		h.ValidationError(c, err)
		return
	}
	var q dto.GeoSalesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	report, err := h.reports.ByCity(c.Request.Context(), shopID, strings.ToUpper(path.UF), ordersync.ParseMonths(q.Months))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
