package router

import (
	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/interfaces/http/handler"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers are the API handlers mounted by RegisterAPI
type Handlers struct {
	Shops       *handler.ShopHandler
	OrderSync   *handler.OrderSyncHandler
	Alerts      *handler.AddressAlertHandler
	GeoSales    *handler.GeoSalesHandler
	Maintenance *handler.MaintenanceHandler
}

// RegisterAPI queues the order sync API groups on r. syncLimit guards the
// sync endpoints and may be nil.
func RegisterAPI(r *Router, h Handlers, syncLimit gin.HandlerFunc) {
	read := middleware.RequireScope(auth.ScopeRead)
	write := middleware.RequireScope(auth.ScopeWrite)
	admin := middleware.RequireScope(auth.ScopeAdmin)

	syncChain := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		if syncLimit == nil {
			return []gin.HandlerFunc{write, fn}
		}
		return []gin.HandlerFunc{write, syncLimit, fn}
	}

	shops := NewResource("/shops")
	shops.GET("", read, h.Shops.ListActive)
	shops.PUT("/:shopId", write, h.Shops.Register)
	shops.POST("/:shopId/orders/sync", syncChain(h.OrderSync.Sync)...)
	shops.POST("/:shopId/orders/sync/jobs", syncChain(h.OrderSync.SubmitJob)...)
	shops.GET("/:shopId/address-alerts", read, h.Alerts.ListOpen)
	shops.POST("/:shopId/address-alerts/:alertId/resolve", write, h.Alerts.Resolve)
	shops.GET("/:shopId/orders/:orderSn/address-alerts", read, h.Alerts.ForOrder)
	shops.GET("/:shopId/geo-sales/states", read, h.GeoSales.ByState)
	shops.GET("/:shopId/geo-sales/states/:uf/cities", read, h.GeoSales.ByCity)

	jobs := NewResource("/sync", read)
	jobs.GET("/jobs", h.OrderSync.ListJobs)
	jobs.GET("/jobs/:jobId", h.OrderSync.GetJob)
	jobs.GET("/stats", h.OrderSync.Stats)

	maintenance := NewResource("/maintenance", admin)
	maintenance.POST("/address-alerts/resolve-false-positives", h.Maintenance.ResolveFalsePositives)
	maintenance.POST("/tokens/revoke", h.Maintenance.RevokeToken)

	r.Register(shops, jobs, maintenance)
}
