package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func pathContext(path string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath(path)
	return c
}

func TestAuthSkipper_PublicPaths(t *testing.T) {
	for _, path := range []string{
		"/health",
		"/health/db",
		"/metrics",
		"/api/v1/auth/register",
		"/api/v1/auth/login",
		"/api/v1/pregnancy/preview",
	} {
		if !AuthSkipper(pathContext(path)) {
			t.Errorf("expected AuthSkipper to return true for %s", path)
		}
	}
}

func TestAuthSkipper_ProtectedPaths(t *testing.T) {
	for _, path := range []string{
		"/api/v1/users/profile",
		"/api/v1/appointments",
		"/api/v1/appointments/:id",
		"/api/v1/auth/logout",
		"/",
		"/health/extra",
	} {
		if AuthSkipper(pathContext(path)) {
			t.Errorf("expected AuthSkipper to return false for %s", path)
		}
		if IsPublicPath(path) {
			t.Errorf("expected IsPublicPath to return false for %s", path)
		}
	}
}
