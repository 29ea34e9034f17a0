package domain

import (
	"errors"
	"time"
)

// Role is the coarse capability class of a profile.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAgent || r == RoleSuperAdmin
}

// Status is the approval state that gates agent access.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsReviewOutcome reports whether s is a status an admin may assign.
func (s Status) IsReviewOutcome() bool {
	return s == StatusApproved || s == StatusRejected
}

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrForbidden       = errors.New("access forbidden")
	ErrReceiptRequired = errors.New("payment receipt is required")
)

// Profile is the application's own record describing a user's role and status.
// Its ID equals the identity's user ID.
type Profile struct {
	ID                string    `json:"id" bson:"_id"`
	Name              string    `json:"name" bson:"name"`
	PhoneNumber       string    `json:"phone_number" bson:"phone_number"`
	Career            string    `json:"career,omitempty" bson:"career,omitempty"`
	Role              Role      `json:"role" bson:"role"`
	Status            Status    `json:"status" bson:"status"`
	PaymentReceiptURL string    `json:"payment_receipt_url,omitempty" bson:"payment_receipt_url,omitempty"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" bson:"updated_at"`
}

// ProfileAttributes is the sign-up metadata the backend turns into the initial Profile.
type ProfileAttributes struct {
	Name              string
	PhoneNumber       string
	Career            string
	PaymentReceiptURL string
	Role              Role
	Status            Status
}

// ProfileUpdate is a partial update. Nil fields are left untouched.
// Role is deliberately absent: nothing in this system rewrites it.
type ProfileUpdate struct {
	Name              *string
	PhoneNumber       *string
	Career            *string
	PaymentReceiptURL *string
	Status            *Status
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.PhoneNumber == nil && u.Career == nil &&
		u.PaymentReceiptURL == nil && u.Status == nil
}

// ProfilePatch is the subset of fields a user may change on their own profile.
type ProfilePatch struct {
	Name              *string
	PhoneNumber       *string
	Career            *string
	PaymentReceiptURL *string
}

// AsUpdate converts the patch into a ProfileUpdate that never touches status.
func (p ProfilePatch) AsUpdate() ProfileUpdate {
	return ProfileUpdate{
		Name:              p.Name,
		PhoneNumber:       p.PhoneNumber,
		Career:            p.Career,
		PaymentReceiptURL: p.PaymentReceiptURL,
	}
}

// ProfileFilter narrows a profile listing. Results are ordered newest first.
type ProfileFilter struct {
	Role Role // empty = any role
}
