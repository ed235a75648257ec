package server

import (
	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)
	graphRoutes := apiRoutes.Group("/tenants/:tenant/graph", middleware.RequireTenant)

	// Build and maintenance
	graphRoutes.POST("/build", routes.BuildGraphHandler, middleware.RequirePermission("graph.build"))
	graphRoutes.DELETE("", routes.DeleteGraphHandler, middleware.RequirePermission("graph.delete"))
	graphRoutes.GET("/stats", routes.GraphStatsHandler, middleware.RequirePermission("graph.view"))
	graphRoutes.GET("/export", routes.ExportGraphHandler, middleware.RequirePermission("graph.view"))

	// Search
	graphRoutes.POST("/context", routes.GraphContextHandler, middleware.RequirePermission("graph.view"))

	// Browsing
	graphRoutes.GET("/entities", routes.ListEntitiesHandler, middleware.RequirePermission("graph.view"))
	graphRoutes.GET("/entities/:entity_id", routes.GetEntityHandler, middleware.RequirePermission("graph.view"))
	graphRoutes.GET("/entities/:entity_id/neighborhood", routes.EntityNeighborhoodHandler, middleware.RequirePermission("graph.view"))
	graphRoutes.GET("/communities", routes.ListCommunitiesHandler, middleware.RequirePermission("graph.view"))
	graphRoutes.GET("/visualization", routes.VisualizationHandler, middleware.RequirePermission("graph.view"))
}
