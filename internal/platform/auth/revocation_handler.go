package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// LogoutHandler revokes the bearer token that authenticated the request.
func LogoutHandler(store RevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		info, ok := TokenFromContext(ctx)
		if !ok || info.ID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "no token to revoke")
		}
		if err := store.Revoke(ctx, info.ID, info.ExpiresAt); err != nil {
			// the local mirror still holds the revocation
			log.Error().Err(err).Str("jti", info.ID).Msg("revoke token")
		}
		return c.NoContent(http.StatusNoContent)
	}
}
