package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
)

func runRBAC(t *testing.T, role string, allowed ...domain.Role) (int, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != "" {
		c.Set("role", role)
	}

	called := false
	handler := RBAC(allowed...)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec.Code, called
}

func TestRBAC_AllowsMatchingRole(t *testing.T) {
	code, called := runRBAC(t, "DEFAULT_ADMIN", domain.RoleDefaultAdmin)
	if !called || code != http.StatusOK {
		t.Fatalf("expected pass-through, got code=%d called=%v", code, called)
	}
}

func TestRBAC_AllowsAnyOfSet(t *testing.T) {
	code, called := runRBAC(t, "PLATFORM_ADMIN", domain.RoleDefaultAdmin, domain.RolePlatformAdmin)
	if !called || code != http.StatusOK {
		t.Fatalf("expected pass-through for role in set, got code=%d called=%v", code, called)
	}
}

func TestRBAC_RejectsWrongRole(t *testing.T) {
	code, called := runRBAC(t, "USER", domain.RoleDefaultAdmin)
	if called || code != http.StatusForbidden {
		t.Fatalf("expected 403 without handler call, got code=%d called=%v", code, called)
	}
}

func TestRBAC_RejectsMissingRole(t *testing.T) {
	code, called := runRBAC(t, "", domain.RoleDefaultAdmin)
	if called || code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing claims, got code=%d called=%v", code, called)
	}
}
