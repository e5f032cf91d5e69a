package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are route patterns reachable without a bearer token.
var publicPaths = map[string]bool{
	"/health":                   true,
	"/health/db":                true,
	"/metrics":                  true,
	"/api/v1/auth/register":     true,
	"/api/v1/auth/login":        true,
	"/api/v1/pregnancy/preview": true,
}

// AuthSkipper reports whether the matched route is public. It keys on
// c.Path(), the registered pattern, so query strings never matter.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
