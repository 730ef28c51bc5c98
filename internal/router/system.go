package router

import (
	"github.com/deppfellow/users-api/internal/handler"
	"github.com/deppfellow/users-api/static"
	"github.com/labstack/echo/v4"
)

// registerSystemRoutes registers the endpoints that sit outside the API
// prefix: dependency status, docs UI and its static assets.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)

	r.StaticFS("/static", static.FS)

	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
