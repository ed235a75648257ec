package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DeleteGraphHandler wipes the graph of a tenant together with its
// snapshot. Documents are left untouched.
func DeleteGraphHandler(c echo.Context) error {
	tenantID := c.Param("tenant")
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if err := app.Graph.DeleteGraph(ctx, tenantID); err != nil {
		return graphError(c, err)
	}

	if app.Snapshots != nil {
		if err := app.Snapshots.Delete(ctx, tenantID); err != nil {
			logger.Warn("[Server] Failed to delete snapshot", "tenant_id", tenantID, "err", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Graph deleted"})
}
