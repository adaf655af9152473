package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OFFIS-RIT/stencil/internal/server/middleware"
	"github.com/OFFIS-RIT/stencil/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Template routes
	apiRoutes.GET("/templates/:name", routes.GetTemplateHandler, middleware.RequirePermission(middleware.PermTemplateView))
	apiRoutes.GET("/templates/:name/snapshot", routes.GetTemplateSnapshotHandler, middleware.RequirePermission(middleware.PermTemplateLearn))
	apiRoutes.POST("/templates/:name/documents", routes.AddDocumentsHandler, middleware.RequirePermission(middleware.PermTemplateLearn))
	apiRoutes.POST("/templates/:name/harvest", routes.HarvestHandler, middleware.RequirePermission(middleware.PermTemplateHarvest))
}
