package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/webserver"
)

func registerHealthRoutes() {
	webserver.ApiGET("/health", health)
}

// health reports database reachability and version
// @Summary service health
// @Tags System
// @Success 200 {object} map[string]interface{}
// @Router /api/health [get]
func health(c echo.Context) error {
	appctx := GetAppContext(c)
	status := "healthy"
	ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
	defer cancel()
	if sqlDB, err := appctx.DB().DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status = "degraded"
	}
	return ok(c, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   appctx.Config().System.Version,
	})
}
