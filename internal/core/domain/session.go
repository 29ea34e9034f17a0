package domain

import (
	"errors"
	"time"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUserExists         = errors.New("user already registered")
)

// AuthUser is the identity carried by a session.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the proof of authentication issued by the identity provider.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        AuthUser  `json:"user"`
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// SessionEventType names a session-change notification.
type SessionEventType string

const (
	EventSignedIn       SessionEventType = "SIGNED_IN"
	EventSignedOut      SessionEventType = "SIGNED_OUT"
	EventTokenRefreshed SessionEventType = "TOKEN_REFRESHED"
	EventUserUpdated    SessionEventType = "USER_UPDATED"
)

// SessionEvent is delivered to subscribers whenever the session changes.
// Session is nil for EventSignedOut.
type SessionEvent struct {
	Type    SessionEventType `json:"type"`
	Session *Session         `json:"session,omitempty"`
}

// AuthResult is returned by sign-up and sign-in.
type AuthResult struct {
	User    AuthUser
	Session *Session // nil when the provider did not open a session
}

// Credential is the identity record kept by the auth provider.
type Credential struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// Snapshot is the Store's in-memory view of session and profile at one instant.
type Snapshot struct {
	Session   *Session `json:"-"`
	Profile   *Profile `json:"profile,omitempty"`
	IsLoading bool     `json:"is_loading"`
}

// Authenticated reports whether the snapshot holds a session.
func (s Snapshot) Authenticated() bool {
	return s.Session != nil
}

// UserID returns the session's user id, or "" when signed out.
func (s Snapshot) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.User.ID
}
