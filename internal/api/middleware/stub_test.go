package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
	"github.com/ree-portal/agent-onboarding/internal/portal"
)

type stubSub struct{ ch chan domain.SessionEvent }

func (s *stubSub) Events() <-chan domain.SessionEvent { return s.ch }
func (s *stubSub) Unsubscribe() error                 { return nil }

// stubBackend restores a fixed session and profile for every client.
type stubBackend struct {
	profile *domain.Profile
}

func (b *stubBackend) SignUp(context.Context, string, string, domain.ProfileAttributes) (*domain.AuthResult, error) {
	return nil, domain.ErrUserExists
}
func (b *stubBackend) SignInWithPassword(context.Context, string, string) (*domain.AuthResult, error) {
	return nil, domain.ErrInvalidCredentials
}
func (b *stubBackend) SignOut(context.Context) error { return nil }
func (b *stubBackend) GetSession(context.Context) (*domain.Session, error) {
	if b.profile == nil {
		return nil, nil
	}
	return &domain.Session{
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        domain.AuthUser{ID: b.profile.ID, Email: "user@example.com"},
	}, nil
}
func (b *stubBackend) RefreshSession(ctx context.Context) (*domain.Session, error) {
	return b.GetSession(ctx)
}
func (b *stubBackend) OnSessionChange(context.Context) (ports.Subscription, error) {
	return &stubSub{ch: make(chan domain.SessionEvent)}, nil
}
func (b *stubBackend) ReadProfile(_ context.Context, id string) (*domain.Profile, error) {
	if b.profile == nil || b.profile.ID != id {
		return nil, domain.ErrProfileNotFound
	}
	p := *b.profile
	return &p, nil
}
func (b *stubBackend) UpdateProfile(context.Context, string, domain.ProfileUpdate) error { return nil }
func (b *stubBackend) ListProfiles(context.Context, domain.ProfileFilter) ([]domain.Profile, error) {
	return nil, nil
}
func (b *stubBackend) UploadObject(context.Context, string, string, string, []byte) (string, error) {
	return "", nil
}

type stubFactory struct{ backend ports.Backend }

func (f stubFactory) Client(string) ports.Backend { return f.backend }

func newRegistry(t *testing.T, profile *domain.Profile) *portal.Registry {
	t.Helper()
	reg := portal.NewRegistry(stubFactory{backend: &stubBackend{profile: profile}}, portal.Options{}, zerolog.Nop())
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func visitorWith(t *testing.T, profile *domain.Profile) *portal.Visitor {
	t.Helper()
	v, err := newRegistry(t, profile).Get(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("get visitor: %v", err)
	}
	return v
}
