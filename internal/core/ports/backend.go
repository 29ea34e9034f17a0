package ports

import (
	"context"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

// Subscription is a live session-change feed. Events are delivered in order
// on the channel until Unsubscribe is called.
type Subscription interface {
	Events() <-chan domain.SessionEvent
	Unsubscribe() error
}

// AuthClient is the identity half of the backend collaborator.
type AuthClient interface {
	SignUp(ctx context.Context, email, password string, attrs domain.ProfileAttributes) (*domain.AuthResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthResult, error)
	SignOut(ctx context.Context) error
	// GetSession returns the persisted session, or nil when there is none.
	GetSession(ctx context.Context) (*domain.Session, error)
	RefreshSession(ctx context.Context) (*domain.Session, error)
	// OnSessionChange returns once the subscription is installed, so a
	// session read issued afterwards cannot miss an event.
	OnSessionChange(ctx context.Context) (Subscription, error)
}

// RecordClient is the row-storage half of the backend collaborator,
// restricted to the profiles table.
type RecordClient interface {
	ReadProfile(ctx context.Context, id string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error
	ListProfiles(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error)
}

// ObjectClient uploads files and returns a publicly resolvable URL.
type ObjectClient interface {
	UploadObject(ctx context.Context, bucket, path, contentType string, data []byte) (string, error)
}

// Backend is everything the core consumes from the backend-as-a-service.
type Backend interface {
	AuthClient
	RecordClient
	ObjectClient
}
