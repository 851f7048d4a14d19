package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/logging"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxUserID   = "user_id"
	ctxRole     = "role"
	ctxTokenID  = "token_id"
	ctxTokenExp = "token_exp"
)

// RevocationChecker reports whether an access token was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers
// read the values back with UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return JWTAuthWithRevocations(secret, nil)
}

// JWTAuthWithRevocations is JWTAuth that also refuses tokens revoked by
// logout.  A nil checker disables the lookup.
func JWTAuthWithRevocations(secret string, revoked RevocationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			if revoked != nil {
				gone, err := revoked.IsRevoked(c.Request().Context(), claims.TokenID)
				if err != nil {
					logging.FromContext(c.Request().Context()).WithError(err).
						WithField("user_id", claims.UserID).Error("token revocation lookup failed")
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
				}
				if gone {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token revoked"})
				}
			}

			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxRole, string(claims.Role))
			c.Set(ctxTokenID, claims.TokenID)
			c.Set(ctxTokenExp, claims.Expires)

			// Tag every log line of the request with the caller.
			req := c.Request()
			ctx := req.Context()
			ctx = logging.ToContext(ctx, logging.FromContext(ctx).WithField("user_id", claims.UserID))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
