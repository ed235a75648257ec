package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	"github.com/labstack/echo/v4"
)

// graphError maps errors of the graph client to HTTP responses.
func graphError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, graph.ErrTenantRequired),
		errors.Is(err, graph.ErrInvalidLimit),
		errors.Is(err, graph.ErrInvalidDepth),
		errors.Is(err, graph.ErrInvalidType):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	logger.Error("[Server] Request failed", "path", c.Path(), "tenant_id", c.Param("tenant"), "err", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
