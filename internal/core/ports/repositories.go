package ports

import (
	"context"
	"time"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

// CredentialRepository persists identity records.
type CredentialRepository interface {
	Create(ctx context.Context, cred *domain.Credential) error
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	Delete(ctx context.Context, id string) error
}

// ProfileRepository persists profile rows.
type ProfileRepository interface {
	Create(ctx context.Context, p *domain.Profile) error
	FindByID(ctx context.Context, id string) (*domain.Profile, error)
	// Update applies the non-nil fields and stamps updated_at.
	Update(ctx context.Context, id string, update domain.ProfileUpdate, now time.Time) error
	// List returns matching profiles ordered by created_at descending.
	List(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error)
}

// ObjectRepository stores uploaded files.
type ObjectRepository interface {
	Put(ctx context.Context, obj domain.Object) error
	Get(ctx context.Context, bucket, path string) (*domain.Object, error)
}

// SessionRepository persists the session of one client, the server-side
// equivalent of browser storage.
type SessionRepository interface {
	Save(ctx context.Context, clientID string, s *domain.Session) error
	// Load returns nil, nil when the client has no session.
	Load(ctx context.Context, clientID string) (*domain.Session, error)
	Delete(ctx context.Context, clientID string) error
	// ClientsOf lists the clients currently holding a session of userID.
	ClientsOf(ctx context.Context, userID string) ([]string, error)
}

// SessionBus fans session-change events out to one client's subscribers.
type SessionBus interface {
	Publish(ctx context.Context, clientID string, event domain.SessionEvent) error
	Subscribe(ctx context.Context, clientID string) (Subscription, error)
}

// LifecyclePublisher announces onboarding events to other systems.
type LifecyclePublisher interface {
	AgentRegistered(ctx context.Context, p *domain.Profile, email string) error
	AgentStatusChanged(ctx context.Context, agentID string, from, to domain.Status, actorID string) error
}
