package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfiling_Labels(t *testing.T) {
	var route, shop string
	var hasRoute bool

	router := gin.New()
	router.Use(Profiling(true))
	handler := func(c *gin.Context) {
		route, hasRoute = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
		shop, _ = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelShopID)
		c.Status(http.StatusOK)
	}
	router.POST("/shops/:shopId/sync", handler)
	router.GET("/health", handler)
	router.GET("/shops", handler)

	serve(router, httptest.NewRequest(http.MethodPost, "/shops/12/sync", nil))
	assert.True(t, hasRoute)
	assert.Equal(t, "/shops/:shopId/sync", route)
	assert.Equal(t, "12", shop)

	serve(router, httptest.NewRequest(http.MethodGet, "/shops", nil))
	assert.Equal(t, "/shops", route)
	assert.Empty(t, shop, "empty labels are dropped")

	serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.False(t, hasRoute, "probes are not labelled")
}

func TestProfiling_Disabled(t *testing.T) {
	var hasRoute bool
	router := gin.New()
	router.Use(Profiling(false))
	router.GET("/shops", func(c *gin.Context) {
		_, hasRoute = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
		c.Status(http.StatusOK)
	})

	serve(router, httptest.NewRequest(http.MethodGet, "/shops", nil))
	assert.False(t, hasRoute)
}
