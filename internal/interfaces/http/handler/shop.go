package handler

import (
	"context"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ShopRegistry manages shop registrations
type ShopRegistry interface {
	ListActive(ctx context.Context) ([]integration.Shop, error)
	Register(ctx context.Context, input ordersync.RegisterShopInput) (*integration.Shop, error)
}

// ShopHandler serves the shop registration endpoints
type ShopHandler struct {
	BaseHandler
	shops ShopRegistry
}

// NewShopHandler creates a ShopHandler
func NewShopHandler(shops ShopRegistry) *ShopHandler {
	return &ShopHandler{shops: shops}
}

// ListActive lists the shops that are synced. GET /shops
//
//	@Summary		List active shops
//	@Description	Shops that are synced by the scheduler, without their access tokens
//	@Tags			shops
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=[]dto.ShopResponse,meta=dto.Meta}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		500	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/shops [get]
func (h *ShopHandler) ListActive(c *gin.Context) {
	shops, err := h.shops.ListActive(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, dto.ToShopResponses(shops), len(shops), 0)
}

// Register creates or updates a shop registration. PUT /shops/:shopId
//
//	@Summary		Register a shop
//	@Description	Create or update a shop registration. Empty fields keep their stored value.
//	@Tags			shops
//	@Accept			json
//	@Produce		json
//	@Param			shopId	path		int		true	"Marketplace shop id"
//	@Param			request	body		dto.RegisterShopRequest	true	"Shop registration"
//	@Success		200		{object}	dto.Response{data=dto.ShopResponse}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		500	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/shops/{shopId} [put]
func (h *ShopHandler) Register(c *gin.Context) {
	shopID, err := parseShopID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req dto.RegisterShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	shop, err := h.shops.Register(c.Request.Context(), ordersync.RegisterShopInput{
		ShopID:      shopID,
		Name:        req.Name,
		Region:      req.Region,
		AccessToken: req.AccessToken,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToShopResponse(shop))
}
