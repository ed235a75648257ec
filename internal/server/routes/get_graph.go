package routes

import (
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	"github.com/labstack/echo/v4"
)

const (
	defaultEntityPage         = 50
	defaultVisualizationNodes = 200
	defaultNeighborhoodDepth  = 1
)

func GraphStatsHandler(c echo.Context) error {
	client := c.(*middleware.AppContext).App.Graph
	stats, err := client.Stats(c.Request().Context(), c.Param("tenant"))
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func ListEntitiesHandler(c echo.Context) error {
	type listData struct {
		TenantID string `param:"tenant" validate:"required"`
		Type     string `query:"type"`
		Limit    int    `query:"limit" validate:"min=0,max=1000"`
		Offset   int    `query:"offset" validate:"min=0"`
	}

	data := new(listData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	limit := defaultEntityPage
	if data.Limit > 0 {
		limit = data.Limit
	}

	client := c.(*middleware.AppContext).App.Graph
	entities, err := client.ListEntities(c.Request().Context(), data.TenantID, store.EntityFilter{
		Type:   common.EntityType(data.Type),
		Limit:  limit,
		Offset: data.Offset,
	})
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"entities": entities})
}

func GetEntityHandler(c echo.Context) error {
	client := c.(*middleware.AppContext).App.Graph
	detail, err := client.GetEntity(c.Request().Context(), c.Param("tenant"), c.Param("entity_id"))
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// EntityNeighborhoodHandler traverses from one entity. depth=0 is valid and
// yields an empty neighborhood, so an absent depth is told apart from zero.
func EntityNeighborhoodHandler(c echo.Context) error {
	depth := defaultNeighborhoodDepth
	if raw := c.QueryParam("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
		}
		depth = d
	}

	client := c.(*middleware.AppContext).App.Graph
	n, err := client.Neighborhood(c.Request().Context(), c.Param("tenant"), c.Param("entity_id"), depth)
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

func ListCommunitiesHandler(c echo.Context) error {
	client := c.(*middleware.AppContext).App.Graph
	communities, err := client.ListCommunities(c.Request().Context(), c.Param("tenant"))
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"communities": communities})
}

func VisualizationHandler(c echo.Context) error {
	type visualizationData struct {
		TenantID string `param:"tenant" validate:"required"`
		Limit    int    `query:"limit" validate:"min=0,max=5000"`
	}

	data := new(visualizationData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	limit := defaultVisualizationNodes
	if data.Limit > 0 {
		limit = data.Limit
	}

	client := c.(*middleware.AppContext).App.Graph
	v, err := client.Visualize(c.Request().Context(), data.TenantID, limit)
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// ExportGraphHandler returns a presigned link to the latest snapshot written
// by the worker.
func ExportGraphHandler(c echo.Context) error {
	tenantID := c.Param("tenant")
	snapshots := c.(*middleware.AppContext).App.Snapshots
	if snapshots == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Snapshot export is disabled"})
	}

	ctx := c.Request().Context()
	ok, err := snapshots.Exists(ctx, tenantID)
	if err != nil {
		logger.Error("[Server] Failed to check snapshot", "tenant_id", tenantID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No snapshot available, build the graph first"})
	}

	link, err := snapshots.DownloadLink(ctx, tenantID)
	if err != nil {
		logger.Error("[Server] Failed to create download link", "tenant_id", tenantID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"url": link})
}
