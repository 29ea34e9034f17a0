package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ree-portal/agent-onboarding/internal/portal"
)

const (
	ClientCookie = "portal_client"
	VisitorKey   = "visitor"

	clientCookieMaxAge = 30 * 24 * time.Hour
)

// VisitorSource resolves the per-client state of a request.
type VisitorSource interface {
	Get(ctx context.Context, clientID string) (*portal.Visitor, error)
}

// Visitor identifies the browser client by cookie, issuing a new id when the
// cookie is missing or malformed, and injects its visitor into the context.
func Visitor(source VisitorSource, secureCookie bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID := ""
			if ck, err := c.Cookie(ClientCookie); err == nil {
				if id, err := uuid.Parse(ck.Value); err == nil {
					clientID = id.String()
				}
			}
			if clientID == "" {
				clientID = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     ClientCookie,
					Value:    clientID,
					Path:     "/",
					MaxAge:   int(clientCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}

			v, err := source.Get(c.Request().Context(), clientID)
			if err != nil {
				return err
			}
			c.Set(VisitorKey, v)
			return next(c)
		}
	}
}

func visitorFrom(c echo.Context) (*portal.Visitor, bool) {
	v, ok := c.Get(VisitorKey).(*portal.Visitor)
	return v, ok && v != nil
}
