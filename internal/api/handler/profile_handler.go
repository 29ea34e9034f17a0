package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ree-portal/agent-onboarding/internal/api/metrics"
	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

type ProfileHandler struct{}

func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

type profileResponse struct {
	actionResponse
	Profile *domain.Profile `json:"profile,omitempty"`
}

// Update patches the signed-in user's own profile.
//
// @Summary      Update own profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        body  body      profilePatchRequest  true  "Fields to change"
// @Success      200   {object}  profileResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /profile [patch]
func (h *ProfileHandler) Update(c echo.Context) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	var req profilePatchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, v, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, v, err.Error())
	}

	err = v.Store.UpdateProfile(c.Request().Context(), req.toPatch())
	metrics.ProfileUpdatesTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return fail(c, v, err)
	}

	notes, view := v.Outbox.Drain()
	resp := profileResponse{actionResponse: actionResponse{Notifications: notes}}
	if view != "" {
		resp.Redirect = view.Path()
	}
	resp.Profile = v.Store.Snapshot().Profile
	return c.JSON(http.StatusOK, resp)
}
