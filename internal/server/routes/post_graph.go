package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgraph/internal/queue"
	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BuildGraphHandler enqueues a build of the tenant graph. The build itself
// runs in the worker.
func BuildGraphHandler(c echo.Context) error {
	type buildData struct {
		TenantID string `param:"tenant" validate:"required"`
		Force    bool   `json:"force"`
	}

	type buildResponse struct {
		Message  string `json:"message"`
		TenantID string `json:"tenant_id,omitempty"`
	}

	data := new(buildData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, buildResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, buildResponse{Message: "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	err := app.Enqueue(queue.BuildMessage{TenantID: data.TenantID, Force: data.Force})
	if err != nil {
		logger.Error("[Server] Failed to enqueue build", "tenant_id", data.TenantID, "err", err)
		return c.JSON(http.StatusInternalServerError, buildResponse{Message: "Failed to enqueue build"})
	}

	return c.JSON(http.StatusAccepted, buildResponse{
		Message:  "Build enqueued",
		TenantID: data.TenantID,
	})
}

// GraphContextHandler answers a query with graph-derived context. Omitted
// bounds fall back to graph.DefaultContextOptions.
func GraphContextHandler(c echo.Context) error {
	type contextData struct {
		TenantID    string `param:"tenant" validate:"required"`
		Query       string `json:"query" validate:"required"`
		MaxDepth    *int   `json:"max_depth"`
		MaxEntities *int   `json:"max_entities"`
	}

	data := new(contextData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	opts := graph.DefaultContextOptions()
	if data.MaxDepth != nil {
		opts.MaxDepth = *data.MaxDepth
	}
	if data.MaxEntities != nil {
		opts.MaxEntities = *data.MaxEntities
	}

	client := c.(*middleware.AppContext).App.Graph
	gc, err := client.GetContext(c.Request().Context(), data.TenantID, data.Query, opts)
	if err != nil {
		return graphError(c, err)
	}
	return c.JSON(http.StatusOK, gc)
}
