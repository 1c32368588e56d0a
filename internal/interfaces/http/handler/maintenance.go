package handler

import (
	"context"
	"strings"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FalsePositiveSweeper resolves alerts whose snapshots normalize equally
type FalsePositiveSweeper interface {
	ResolveFalsePositives(ctx context.Context, batchSize int) (ordersync.SweepResult, error)
}

// MaintenanceHandler serves the admin endpoints
type MaintenanceHandler struct {
	BaseHandler
	sweeper     FalsePositiveSweeper
	revocations auth.RevocationList
}

// NewMaintenanceHandler creates a MaintenanceHandler. revocations may be
// nil when operator auth is disabled.
func NewMaintenanceHandler(sweeper FalsePositiveSweeper, revocations auth.RevocationList) *MaintenanceHandler {
	return &MaintenanceHandler{sweeper: sweeper, revocations: revocations}
}

// ResolveFalsePositives runs the sweep once.
// POST /maintenance/address-alerts/resolve-false-positives
//
//	@Summary		Resolve false positive alerts
//	@Description	Resolve open alerts whose snapshots normalize to the same address
//	@Tags			maintenance
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.ResolveFalsePositivesRequest	false	"Sweep options"
//	@Success		200		{object}	dto.Response{data=ordersync.SweepResult}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		500	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/maintenance/address-alerts/resolve-false-positives [post]
func (h *MaintenanceHandler) ResolveFalsePositives(c *gin.Context) {
	var req dto.ResolveFalsePositivesRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}
	batch := req.BatchSize
	if batch == 0 {
		batch = ordersync.DefaultSweepBatchSize
	}

	result, err := h.sweeper.ResolveFalsePositives(c.Request.Context(), batch)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.GetGinLogger(c).Info("False positive sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("resolved", result.Resolved),
	)
	h.Success(c, result)
}

// RevokeToken revokes one token or every token of a subject.
// POST /maintenance/tokens/revoke
//
//	@Summary		Revoke operator tokens
//	@Description	Revoke one token by jti or every token issued so far to a subject
//	@Tags			maintenance
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.RevokeTokenRequest	true	"Token or subject"
//	@Success		200		{object}	dto.Response{data=dto.RevokeTokenResponse}
//	@Failure		400	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		503	{object}	dto.Response{error=dto.ErrorInfo}
//	@Security		BearerAuth
//	@Router			/maintenance/tokens/revoke [post]
func (h *MaintenanceHandler) RevokeToken(c *gin.Context) {
	if h.revocations == nil {
		h.HandleError(c, shared.NewDomainError(dto.ErrCodeUnavailable, "operator auth is disabled"))
		return
	}
	var req dto.RevokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	jti, subject := strings.TrimSpace(req.JTI), strings.TrimSpace(req.Subject)
	if (jti == "") == (subject == "") {
		h.HandleError(c, shared.NewDomainError(dto.ErrCodeInvalidInput, "exactly one of jti or subject is required"))
		return
	}

	ctx := c.Request.Context()
	var err error
	if jti != "" {
		err = h.revocations.RevokeToken(ctx, jti, auth.MaxTokenTTL)
	} else {
		err = h.revocations.RevokeSubject(ctx, subject, auth.MaxTokenTTL)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	operator := ""
	if claims := middleware.GetClaims(c); claims != nil {
		operator = claims.Subject
	}
	logger.GetGinLogger(c).Info("Operator token revoked",
		zap.String("jti", jti),
		zap.String("subject", subject),
		zap.String("revoked_by", operator),
	)
	h.Success(c, dto.RevokeTokenResponse{JTI: jti, Subject: subject, Revoked: true})
}
