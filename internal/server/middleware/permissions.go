package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

func HasPermission(user *AppUser, permission string) bool {
	if user == nil {
		return false
	}
	return slices.Contains(user.Permissions, permission)
}

// CanAccessTenant reports whether user may act on tenantID.
func CanAccessTenant(user *AppUser, tenantID string) bool {
	if user == nil || tenantID == "" {
		return false
	}
	return user.Master || slices.Contains(user.Tenants, tenantID)
}

func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			if !HasPermission(user, permission) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: missing permission " + permission})
			}

			return next(c)
		}
	}
}

// RequireTenant rejects callers whose token does not list the :tenant path
// parameter.
func RequireTenant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := c.(*AppContext).User
		if user == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		if !CanAccessTenant(user, c.Param("tenant")) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: no access to tenant"})
		}
		return next(c)
	}
}
