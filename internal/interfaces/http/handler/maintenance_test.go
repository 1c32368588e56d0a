package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceHandler_ResolveFalsePositives(t *testing.T) {
	sweeper := new(mockAlerts)
	sweeper.On("ResolveFalsePositives", mock.Anything, ordersync.DefaultSweepBatchSize).Return(ordersync.SweepResult{Scanned: 10, Resolved: 2}, nil)
	sweeper.On("ResolveFalsePositives", mock.Anything, 50).Return(ordersync.SweepResult{}, nil)
	h := NewMaintenanceHandler(sweeper, nil)

	w := request(http.MethodPost, "/sweep", h.ResolveFalsePositives, "/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"resolved":2`)

	w = request(http.MethodPost, "/sweep", h.ResolveFalsePositives, "/sweep", strings.NewReader(`{"batchSize":50}`))
	require.Equal(t, http.StatusOK, w.Code)

	sweeper.AssertExpectations(t)
}

func TestMaintenanceHandler_RevokeToken(t *testing.T) {
	revocations := auth.NewInMemoryRevocationList()
	h := NewMaintenanceHandler(new(mockAlerts), revocations)

	w := request(http.MethodPost, "/revoke", h.RevokeToken, "/revoke", strings.NewReader(`{"subject":"ci-bot"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:       "any",
		Subject:  "ci-bot",
		IssuedAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	revoked, err := revocations.IsRevoked(context.Background(), claims)
	require.NoError(t, err)
	assert.True(t, revoked)

	w = request(http.MethodPost, "/revoke", h.RevokeToken, "/revoke", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	disabled := NewMaintenanceHandler(new(mockAlerts), nil)
	w = request(http.MethodPost, "/revoke", disabled.RevokeToken, "/revoke", strings.NewReader(`{"jti":"x"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
