package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ree-portal/agent-onboarding/internal/api/httperr"
	"github.com/ree-portal/agent-onboarding/internal/api/middleware"
	"github.com/ree-portal/agent-onboarding/internal/portal"
)

// visitorOf extracts the visitor injected by the Visitor middleware. A
// missing visitor means the route was registered outside the visitor group.
func visitorOf(c echo.Context) (*portal.Visitor, error) {
	v, ok := c.Get(middleware.VisitorKey).(*portal.Visitor)
	if !ok || v == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "visitor not resolved")
	}
	return v, nil
}

// respond drains the visitor's outbox into an action response.
func respond(c echo.Context, v *portal.Visitor, status int) error {
	notes, view := v.Outbox.Drain()
	resp := actionResponse{Notifications: notes}
	if view != "" {
		resp.Redirect = view.Path()
	}
	return c.JSON(status, resp)
}

// fail renders err with its mapped status alongside the notifications the
// failed operation produced.
func fail(c echo.Context, v *portal.Visitor, err error) error {
	code, msg, _ := httperr.Status(err)
	notes, _ := v.Outbox.Drain()
	return c.JSON(code, errorResponse{Error: msg, Notifications: notes})
}

func badRequest(c echo.Context, v *portal.Visitor, msg string) error {
	notes, _ := v.Outbox.Drain()
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Notifications: notes})
}
