package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ree-portal/agent-onboarding/internal/api/metrics"
	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// SignUp registers a new agent with the receipt previously uploaded by the
// same visitor.
//
// @Summary      Sign up as an agent
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Agent registration details"
// @Success      201   {object}  actionResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, v, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, v, err.Error())
	}

	err = v.Store.SignUp(c.Request().Context(), req.Email, req.Password, domain.ProfileAttributes{
		Name:              req.Name,
		PhoneNumber:       req.PhoneNumber,
		Career:            req.Career,
		PaymentReceiptURL: v.Receipt.URL(),
	})
	metrics.SignUpsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return fail(c, v, err)
	}

	v.Receipt.Remove()
	return respond(c, v, http.StatusCreated)
}

// Login authenticates the visitor and points it at its landing view.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  actionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, v, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, v, err.Error())
	}

	err = v.Store.SignIn(c.Request().Context(), req.Email, req.Password)
	metrics.SignInsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return fail(c, v, err)
	}
	return respond(c, v, http.StatusOK)
}

// Logout ends the visitor's session.
//
// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  actionResponse
// @Failure      500  {object}  errorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	if err := v.Store.SignOut(c.Request().Context()); err != nil {
		return fail(c, v, err)
	}
	return respond(c, v, http.StatusOK)
}

// Refresh renews the visitor's access token.
//
// @Summary      Refresh session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  actionResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	if err := v.Store.RefreshSession(c.Request().Context()); err != nil {
		return fail(c, v, err)
	}
	return respond(c, v, http.StatusOK)
}
