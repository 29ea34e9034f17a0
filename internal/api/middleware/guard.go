package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ree-portal/agent-onboarding/internal/api/metrics"
	"github.com/ree-portal/agent-onboarding/internal/core/access"
)

// Guard lets the request through only when the access router allows view for
// the visitor's current state; otherwise it answers 303 to the router's
// target. It waits for the visitor's first session resolve so no decision is
// taken on a half-loaded state.
func Guard(view access.View) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v, ok := visitorFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusInternalServerError, "visitor not resolved")
			}
			if err := v.Store.Ready(c.Request().Context()); err != nil {
				return err
			}

			d := access.Resolve(view, access.StateOf(v.Store.Snapshot()))
			if !d.Allowed {
				metrics.ViewRedirectsTotal.WithLabelValues(string(view), string(d.Redirect)).Inc()
				return c.Redirect(http.StatusSeeOther, d.Redirect.Path())
			}
			return next(c)
		}
	}
}
