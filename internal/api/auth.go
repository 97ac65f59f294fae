package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Authenticator derives the requesting user from the request. Real
// deployments plug in their session or token verification here.
type Authenticator interface {
	Authenticate(ctx echo.Context) (userID string, err error)
}

// QuotaGate checks whether a user may spend the requested mix minutes.
// Billing owns the accounting; this is only the check-gate call.
type QuotaGate interface {
	CheckMix(userID string, targetDurationSeconds int) error
}

// userIDKey is the echo context key the auth middleware fills.
const userIDKey = "automix.userID"

// DevAuthenticator trusts the X-User-ID header and defaults to a fixed
// user, which is what local development wants and production must not.
type DevAuthenticator struct{}

func (DevAuthenticator) Authenticate(ctx echo.Context) (string, error) {
	if id := ctx.Request().Header.Get("X-User-ID"); id != "" {
		return id, nil
	}
	return "dev-user", nil
}

// AllowAllQuota accepts every request.
type AllowAllQuota struct{}

func (AllowAllQuota) CheckMix(string, int) error { return nil }

func (c *Controller) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			userID, err := c.auth.Authenticate(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			ctx.Set(userIDKey, userID)
			return next(ctx)
		}
	}
}

// currentUser reads the user set by the auth middleware.
func currentUser(ctx echo.Context) string {
	if id, ok := ctx.Get(userIDKey).(string); ok {
		return id
	}
	return ""
}
