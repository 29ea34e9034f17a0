package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ree-portal/agent-onboarding/internal/api/metrics"
	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

type AdminHandler struct{}

func NewAdminHandler() *AdminHandler {
	return &AdminHandler{}
}

type agentStatusResponse struct {
	actionResponse
	Agents []domain.Profile `json:"agents"`
}

// Approve marks an agent as approved.
//
// @Summary      Approve agent
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "Agent ID"
// @Success      200  {object}  agentStatusResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /admin/agents/{id}/approve [post]
func (h *AdminHandler) Approve(c echo.Context) error {
	return h.setStatus(c, domain.StatusApproved)
}

// Reject marks an agent as rejected.
//
// @Summary      Reject agent
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "Agent ID"
// @Success      200  {object}  agentStatusResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /admin/agents/{id}/reject [post]
func (h *AdminHandler) Reject(c echo.Context) error {
	return h.setStatus(c, domain.StatusRejected)
}

func (h *AdminHandler) setStatus(c echo.Context, status domain.Status) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	err = v.Board.SetStatus(c.Request().Context(), c.Param("id"), status)
	metrics.AgentReviewsTotal.WithLabelValues(string(status), metrics.Result(err)).Inc()
	if err != nil {
		return fail(c, v, err)
	}

	notes, _ := v.Outbox.Drain()
	return c.JSON(http.StatusOK, agentStatusResponse{
		actionResponse: actionResponse{Notifications: notes},
		Agents:         v.Board.Agents(),
	})
}

// Receipt redirects to an agent's payment receipt. The agent list is loaded
// first when the admin opens the link without visiting the dashboard.
//
// @Summary      View agent receipt
// @Tags         admin
// @Param        id   path  string  true  "Agent ID"
// @Success      302  "Redirect to the receipt"
// @Failure      404  {object}  errorResponse
// @Router       /admin/agents/{id}/receipt [get]
func (h *AdminHandler) Receipt(c echo.Context) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	if len(v.Board.Agents()) == 0 {
		if _, err := v.Board.Load(c.Request().Context()); err != nil {
			return fail(c, v, err)
		}
	}

	url, err := v.Board.ReceiptURL(c.Param("id"))
	if err != nil {
		return fail(c, v, err)
	}
	return c.Redirect(http.StatusFound, url)
}
