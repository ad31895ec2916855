package api

import (
	echoSwagger "github.com/swaggo/echo-swagger"
	_ "github.com/talkincode/storefront/docs"
	"github.com/talkincode/storefront/internal/webserver"
)

// registerDocsRoutes serves the swagger UI and doc.json under /api/docs
func registerDocsRoutes() {
	webserver.ApiGET("/docs/*", echoSwagger.WrapHandler)
}
