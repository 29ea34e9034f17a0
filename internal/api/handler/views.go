package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ree-portal/agent-onboarding/internal/api/metrics"
	"github.com/ree-portal/agent-onboarding/internal/core/access"
	"github.com/ree-portal/agent-onboarding/internal/portal"
)

// ViewHandler serves the portal pages. Each route is registered behind
// middleware.Guard, so a handler only runs when its view is reachable.
type ViewHandler struct{}

func NewViewHandler() *ViewHandler {
	return &ViewHandler{}
}

// Landing serves the public landing page.
//
// @Summary      Landing page
// @Tags         views
// @Produce      json
// @Success      200  {object}  viewResponse
// @Success      303  "Redirect to the visitor's view"
// @Router       / [get]
func (h *ViewHandler) Landing(c echo.Context) error {
	return h.render(c, access.ViewLanding, func(*portal.Visitor, *viewResponse) {})
}

// Auth serves the sign-in / sign-up page.
//
// @Summary      Authentication page
// @Tags         views
// @Produce      json
// @Param        tab  query     string  false  "Active tab"  Enums(login, signup)
// @Success      200  {object}  viewResponse
// @Success      303  "Redirect to the visitor's view"
// @Router       /auth [get]
func (h *ViewHandler) Auth(c echo.Context) error {
	return h.render(c, access.ViewAuth, func(v *portal.Visitor, resp *viewResponse) {
		resp.Tab = "login"
		if c.QueryParam("tab") == "signup" {
			resp.Tab = "signup"
		}
		resp.ReceiptURL = v.Receipt.URL()
	})
}

// Pending serves the page agents see until an admin approves them.
//
// @Summary      Pending approval page
// @Tags         views
// @Produce      json
// @Success      200  {object}  viewResponse
// @Success      303  "Redirect to the visitor's view"
// @Router       /pending [get]
func (h *ViewHandler) Pending(c echo.Context) error {
	return h.render(c, access.ViewPending, func(*portal.Visitor, *viewResponse) {})
}

// AgentDashboard serves the approved agent's profile page.
//
// @Summary      Agent dashboard
// @Tags         views
// @Produce      json
// @Success      200  {object}  viewResponse
// @Success      303  "Redirect to the visitor's view"
// @Router       /agent-dashboard [get]
func (h *ViewHandler) AgentDashboard(c echo.Context) error {
	return h.render(c, access.ViewAgentDashboard, func(*portal.Visitor, *viewResponse) {})
}

// AdminDashboard serves the agent review list. A failed listing still
// renders the page with an empty list and an error notification.
//
// @Summary      Admin dashboard
// @Tags         views
// @Produce      json
// @Success      200  {object}  adminDashboardResponse
// @Success      303  "Redirect to the visitor's view"
// @Router       /admin-dashboard [get]
func (h *ViewHandler) AdminDashboard(c echo.Context) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	agents, _ := v.Board.Load(c.Request().Context())
	if agents == nil {
		agents = v.Board.Agents()
	}
	notes, _ := v.Outbox.Drain()
	return c.JSON(http.StatusOK, adminDashboardResponse{
		View:          string(access.ViewAdminDashboard),
		Profile:       v.Store.Snapshot().Profile,
		Agents:        agents,
		Notifications: notes,
	})
}

func (h *ViewHandler) render(c echo.Context, view access.View, fill func(*portal.Visitor, *viewResponse)) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	snap := v.Store.Snapshot()
	if snap.Authenticated() && !access.StateOf(snap).Resolved {
		metrics.ProfileUnresolvedTotal.Inc()
	}

	resp := viewResponse{View: string(view), Profile: snap.Profile}
	fill(v, &resp)
	// A pending navigation is meaningless once the page is rendered.
	resp.Notifications, _ = v.Outbox.Drain()
	return c.JSON(http.StatusOK, resp)
}
