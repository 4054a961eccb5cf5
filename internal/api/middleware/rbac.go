package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
)

// RBAC enforces role-based access control. Must run after Auth so the role
// claim in context comes from a verified token.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[string(r)] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if _, ok := allowed[role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
