package middleware

import (
	"context"

	"github.com/OFFIS-RIT/kgraph/internal/queue"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AppUser is the authenticated caller. A master caller may access every
// tenant.
type AppUser struct {
	Subject     string
	Tenants     []string
	Permissions []string
	Master      bool
}

// SnapshotStore gives read access to exported graph snapshots.
// *storage.Snapshots implements it.
type SnapshotStore interface {
	Exists(ctx context.Context, tenantID string) (bool, error)
	DownloadLink(ctx context.Context, tenantID string) (string, error)
	Delete(ctx context.Context, tenantID string) error
}

type App struct {
	Graph *graph.GraphClient
	// Enqueue hands a build job to the worker.
	Enqueue func(msg queue.BuildMessage) error
	// Snapshots is nil when snapshot export is disabled.
	Snapshots SnapshotStore
	Keyfunc   jwt.Keyfunc

	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
