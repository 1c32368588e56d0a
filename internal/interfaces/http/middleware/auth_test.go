package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingRevocations struct{}

func (failingRevocations) RevokeToken(context.Context, string, time.Duration) error   { return nil }
func (failingRevocations) RevokeSubject(context.Context, string, time.Duration) error { return nil }
func (failingRevocations) IsRevoked(context.Context, *auth.Claims) (bool, error) {
	return false, errors.New("redis down")
}

func newTokens() *auth.TokenService {
	return auth.NewTokenService(config.AuthConfig{
		Secret:   "middleware-test-secret-0123456789abcdef",
		Issuer:   "ordersync",
		TokenTTL: time.Hour,
	})
}

func authRouter(tokens *auth.TokenService, revocations auth.RevocationList, scope string, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinMiddleware(log), OperatorAuth(tokens, revocations, log))
	router.GET("/test", RequireScope(scope), func(c *gin.Context) {
		subject := ""
		if claims := GetClaims(c); claims != nil {
			subject = claims.Subject
		}
		logger.GetGinLogger(c).Info("handled")
		c.String(http.StatusOK, subject)
	})
	return router
}

func bearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestOperatorAuth(t *testing.T) {
	tokens := newTokens()
	revocations := auth.NewInMemoryRevocationList()
	router := authRouter(tokens, revocations, auth.ScopeWrite, zap.NewNop())

	writer, err := tokens.Issue("ops", []string{auth.ScopeWrite}, 0)
	require.NoError(t, err)
	reader, err := tokens.Issue("viewer", []string{auth.ScopeRead}, 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"missing header", bearer(""), http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"garbage token", bearer("nope"), http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"insufficient scope", bearer(reader.Token), http.StatusForbidden, dto.ErrCodeForbidden},
		{"granted", bearer(writer.Token), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, tt.req)
			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			} else {
				assert.Equal(t, "ops", w.Body.String())
			}
		})
	}

	t.Run("basic scheme rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Basic "+writer.Token)
		assert.Equal(t, http.StatusUnauthorized, serve(router, req).Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		require.NoError(t, revocations.RevokeToken(context.Background(), writer.ID, time.Hour))
		w := serve(router, bearer(writer.Token))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), auth.ErrTokenRevoked.Error())
	})
}

func TestOperatorAuth_RevocationBackendDown(t *testing.T) {
	tokens := newTokens()
	router := authRouter(tokens, failingRevocations{}, auth.ScopeRead, zap.NewNop())

	issued, err := tokens.Issue("ops", []string{auth.ScopeAdmin}, 0)
	require.NoError(t, err)

	w := serve(router, bearer(issued.Token))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeUnavailable)
}

func TestOperatorAuth_Disabled(t *testing.T) {
	router := authRouter(auth.NewTokenService(config.AuthConfig{}), nil, auth.ScopeAdmin, zap.NewNop())

	w := serve(router, bearer(""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestOperatorAuth_LogsOperator(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tokens := newTokens()
	router := authRouter(tokens, nil, auth.ScopeRead, zap.New(core))

	issued, err := tokens.Issue("ci-bot", []string{auth.ScopeRead}, 0)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, serve(router, bearer(issued.Token)).Code)

	handled := logs.FilterMessage("handled").All()
	require.Len(t, handled, 1)
	assert.Equal(t, "ci-bot", handled[0].ContextMap()["operator"])
}

func TestRequireScope_WithoutAuthMiddleware(t *testing.T) {
	router := gin.New()
	router.GET("/test", RequireScope(auth.ScopeRead), okHandler)

	assert.Equal(t, http.StatusUnauthorized, serve(router, bearer("")).Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Bearer", "", false},
		{"Bearer  ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}
