package handler

import (
	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/portal"
)

// ─── Requests ─────────────────────────────────────────────────────────────────

type signUpRequest struct {
	Name        string `json:"name"         validate:"required,min=2"`
	Email       string `json:"email"        validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"required,min=10"`
	Password    string `json:"password"     validate:"required,min=6"`
	Career      string `json:"career,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// profilePatchRequest carries only the fields a user may change on their own
// profile. Absent fields are left untouched.
type profilePatchRequest struct {
	Name        *string `json:"name,omitempty"         validate:"omitempty,min=2"`
	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,min=10"`
	Career      *string `json:"career,omitempty"`
}

func (r profilePatchRequest) toPatch() domain.ProfilePatch {
	return domain.ProfilePatch{
		Name:        r.Name,
		PhoneNumber: r.PhoneNumber,
		Career:      r.Career,
	}
}

// ─── Responses ────────────────────────────────────────────────────────────────

type actionResponse struct {
	Redirect      string                `json:"redirect,omitempty"`
	Notifications []portal.Notification `json:"notifications"`
}

type errorResponse struct {
	Error         string                `json:"error"`
	Notifications []portal.Notification `json:"notifications"`
}

type viewResponse struct {
	View          string                `json:"view"`
	Profile       *domain.Profile       `json:"profile,omitempty"`
	Tab           string                `json:"tab,omitempty"`
	ReceiptURL    string                `json:"receipt_url,omitempty"`
	Notifications []portal.Notification `json:"notifications"`
}

type adminDashboardResponse struct {
	View          string                `json:"view"`
	Profile       *domain.Profile       `json:"profile,omitempty"`
	Agents        []domain.Profile      `json:"agents"`
	Notifications []portal.Notification `json:"notifications"`
}

type uploadResponse struct {
	URL           string                `json:"url,omitempty"`
	Notifications []portal.Notification `json:"notifications"`
}
