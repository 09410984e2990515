package middleware

import (
	"net/http"

	"service-auction/internal/auth"
	"service-auction/internal/domain"
	"service-auction/pkg/logger"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

type Authenticator interface {
	Authenticate(token string) (domain.Identity, error)
}

// RequireIdentity rejects requests without a valid bearer token and stores
// the caller's identity on the context.
func RequireIdentity(authenticator Authenticator, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			identity, err := authenticator.Authenticate(token)
			if err != nil {
				log.Debug("Rejected token", "path", c.Path(), "error", err)
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by RequireIdentity. Without one
// the zero Identity is returned, which signs nothing.
func IdentityFrom(c echo.Context) domain.Identity {
	identity, _ := c.Get(identityKey).(domain.Identity)
	return identity
}
