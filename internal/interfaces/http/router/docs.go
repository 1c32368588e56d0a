package router

import (
	"slices"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// DocsPath is where the Swagger UI and doc.json are served
const DocsPath = "/swagger/*any"

// RegisterDocs serves the registered OpenAPI document and its UI outside the
// versioned API group. guards run before the UI handler, typically
// middleware.SwaggerAccess followed by operator auth.
func RegisterDocs(engine *gin.Engine, guards ...gin.HandlerFunc) {
	chain := append(slices.Clip(guards), ginSwagger.WrapHandler(swaggerFiles.Handler))
	engine.GET(DocsPath, chain...)
}
