// Package backend is the self-hosted implementation of the auth, record and
// object-storage collaborator the portal core talks to.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

const minPasswordLength = 6

// Deps are the stores and channels the hub is built on.
type Deps struct {
	Credentials ports.CredentialRepository
	Profiles    ports.ProfileRepository
	Objects     ports.ObjectRepository
	Sessions    ports.SessionRepository
	Bus         ports.SessionBus
	Lifecycle   ports.LifecyclePublisher
	Tokens      *TokenIssuer
}

type Config struct {
	PublicBaseURL string
	BcryptCost    int
}

// Hub owns the shared state. Per-visitor views are obtained with Client.
type Hub struct {
	Deps
	publicBaseURL string
	bcryptCost    int
	validate      *validator.Validate
	now           func() time.Time
	log           zerolog.Logger
}

func NewHub(deps Deps, cfg Config, log zerolog.Logger) *Hub {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Hub{
		Deps:          deps,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		bcryptCost:    cfg.BcryptCost,
		validate:      validator.New(),
		now:           time.Now,
		log:           log,
	}
}

// Client returns the backend as seen by one browser client. Its session is
// persisted under clientID.
func (h *Hub) Client(clientID string) ports.Backend {
	return &client{hub: h, id: clientID}
}

// EnsureSuperAdmin creates the bootstrap admin account when it does not exist.
func (h *Hub) EnsureSuperAdmin(ctx context.Context, email, password, name string) error {
	email = normalizeEmail(email)
	if _, err := h.Credentials.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrInvalidCredentials) {
		return fmt.Errorf("ensure super admin: %w", err)
	}

	_, err := h.register(ctx, email, password, domain.Profile{Name: name, Role: domain.RoleSuperAdmin, Status: domain.StatusApproved})
	if err != nil && !errors.Is(err, domain.ErrUserExists) {
		return fmt.Errorf("ensure super admin: %w", err)
	}
	h.log.Info().Str("email", email).Msg("super admin account ready")
	return nil
}

// OpenObject serves stored files for the public download route.
func (h *Hub) OpenObject(ctx context.Context, bucket, path string) (*domain.Object, error) {
	return h.Objects.Get(ctx, bucket, path)
}

// PublicURL is the address a stored object is served from.
func (h *Hub) PublicURL(bucket, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", h.publicBaseURL, url.PathEscape(bucket), strings.Join(segments, "/"))
}

// register creates the credential and the profile. The credential is removed
// again if the profile cannot be stored.
func (h *Hub) register(ctx context.Context, email, password string, profile domain.Profile) (domain.AuthUser, error) {
	if err := h.validate.Var(email, "required,email"); err != nil {
		return domain.AuthUser{}, domain.ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return domain.AuthUser{}, domain.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return domain.AuthUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := h.now().UTC()
	user := domain.AuthUser{ID: uuid.NewString(), Email: email}
	cred := &domain.Credential{ID: user.ID, Email: email, PasswordHash: string(hash), CreatedAt: now, UpdatedAt: now}
	if err := h.Credentials.Create(ctx, cred); err != nil {
		return domain.AuthUser{}, err
	}

	profile.ID = user.ID
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if err := h.Profiles.Create(ctx, &profile); err != nil {
		if delErr := h.Credentials.Delete(ctx, user.ID); delErr != nil {
			h.log.Error().Err(delErr).Str("user_id", user.ID).Msg("failed to roll back credential")
		}
		return domain.AuthUser{}, fmt.Errorf("create profile: %w", err)
	}
	return user, nil
}

func (h *Hub) openSession(ctx context.Context, clientID string, user domain.AuthUser, kind domain.SessionEventType) (*domain.Session, error) {
	sess, err := h.Tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	if err := h.Sessions.Save(ctx, clientID, sess); err != nil {
		return nil, err
	}
	h.notify(ctx, clientID, domain.SessionEvent{Type: kind, Session: sess})
	return sess, nil
}

// notifyUser tells every other client signed in as userID that the user
// record changed, so their stores reload the profile.
func (h *Hub) notifyUser(ctx context.Context, userID, except string) {
	clients, err := h.Sessions.ClientsOf(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("user clients not resolved")
		return
	}
	for _, clientID := range clients {
		if clientID == except {
			continue
		}
		sess, err := h.Sessions.Load(ctx, clientID)
		if err != nil {
			h.log.Warn().Err(err).Str("client_id", clientID).Msg("session not loaded for user update")
			continue
		}
		if sess == nil || sess.User.ID != userID {
			continue
		}
		h.notify(ctx, clientID, domain.SessionEvent{Type: domain.EventUserUpdated, Session: sess})
	}
}

// notify publishes a session change. Delivery problems are logged only: the
// state change itself has already been persisted.
func (h *Hub) notify(ctx context.Context, clientID string, ev domain.SessionEvent) {
	if err := h.Bus.Publish(ctx, clientID, ev); err != nil {
		h.log.Warn().Err(err).Str("client_id", clientID).Str("event", string(ev.Type)).Msg("session event not delivered")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
