package middleware

import (
	"context"

	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling tags the CPU work of API requests with the route pattern and
// shop so profiles can be split per endpoint. Unmatched routes are not
// labelled.
func Profiling(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if !enabled || route == "" || route == "/health" || route == "/ready" {
			c.Next()
			return
		}
		telemetry.WithProfilingLabels(c.Request.Context(), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		},
			telemetry.ProfilingLabelRoute, route,
			telemetry.ProfilingLabelShopID, c.Param("shopId"),
		)
	}
}
