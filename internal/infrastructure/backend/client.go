package backend

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

// client is the hub seen through one browser client's session.
type client struct {
	hub *Hub
	id  string
}

var _ ports.Backend = (*client)(nil)

// SignUp registers an agent and signs the client in. Role and status from
// attrs are ignored: new accounts are always pending agents.
func (c *client) SignUp(ctx context.Context, email, password string, attrs domain.ProfileAttributes) (*domain.AuthResult, error) {
	email = normalizeEmail(email)
	profile := domain.Profile{
		Name:              attrs.Name,
		PhoneNumber:       attrs.PhoneNumber,
		Career:            attrs.Career,
		PaymentReceiptURL: attrs.PaymentReceiptURL,
		Role:              domain.RoleAgent,
		Status:            domain.StatusPendingApproval,
	}

	user, err := c.hub.register(ctx, email, password, profile)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	profile.ID = user.ID
	if err := c.hub.Lifecycle.AgentRegistered(ctx, &profile, email); err != nil {
		c.hub.log.Warn().Err(err).Str("user_id", user.ID).Msg("agent.registered not published")
	}

	sess, err := c.hub.openSession(ctx, c.id, user, domain.EventSignedIn)
	if err != nil {
		return nil, fmt.Errorf("sign up: open session: %w", err)
	}
	return &domain.AuthResult{User: user, Session: sess}, nil
}

func (c *client) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	cred, err := c.hub.Credentials.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("sign in: %w", domain.ErrInvalidCredentials)
	}

	user := domain.AuthUser{ID: cred.ID, Email: cred.Email}
	sess, err := c.hub.openSession(ctx, c.id, user, domain.EventSignedIn)
	if err != nil {
		return nil, fmt.Errorf("sign in: open session: %w", err)
	}
	return &domain.AuthResult{User: user, Session: sess}, nil
}

func (c *client) SignOut(ctx context.Context) error {
	if err := c.hub.Sessions.Delete(ctx, c.id); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	c.hub.notify(ctx, c.id, domain.SessionEvent{Type: domain.EventSignedOut})
	return nil
}

// GetSession returns the persisted session, or nil. Expired sessions and
// sessions whose token no longer verifies are dropped.
func (c *client) GetSession(ctx context.Context) (*domain.Session, error) {
	sess, err := c.hub.Sessions.Load(ctx, c.id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(c.hub.now()) {
		c.dropSession(ctx)
		return nil, nil
	}

	user, err := c.hub.Tokens.Verify(sess.AccessToken)
	if err != nil {
		c.dropSession(ctx)
		return nil, nil
	}
	sess.User = user
	return sess, nil
}

func (c *client) dropSession(ctx context.Context) {
	if err := c.hub.Sessions.Delete(ctx, c.id); err != nil {
		c.hub.log.Warn().Err(err).Str("client_id", c.id).Msg("stale session not removed")
	}
}

func (c *client) RefreshSession(ctx context.Context) (*domain.Session, error) {
	current, err := c.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("refresh session: %w", domain.ErrNotAuthenticated)
	}

	sess, err := c.hub.openSession(ctx, c.id, current.User, domain.EventTokenRefreshed)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return sess, nil
}

func (c *client) OnSessionChange(ctx context.Context) (ports.Subscription, error) {
	return c.hub.Bus.Subscribe(ctx, c.id)
}

// ReadProfile lets users read their own profile and super admins read any.
func (c *client) ReadProfile(ctx context.Context, id string) (*domain.Profile, error) {
	actor, err := c.actor(ctx)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if actor.ID != id {
		if err := c.requireAdmin(ctx, actor); err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
	}

	p, err := c.hub.Profiles.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return p, nil
}

// UpdateProfile lets owners change their own contact fields. Status changes
// and edits of other profiles need a super admin. Other clients signed in as
// the target user receive USER_UPDATED.
func (c *client) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error {
	if update.Empty() {
		return nil
	}
	actor, err := c.actor(ctx)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if update.Status != nil || actor.ID != id {
		if err := c.requireAdmin(ctx, actor); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
	}
	if update.Status != nil && !update.Status.Valid() {
		return fmt.Errorf("update profile: %w", domain.ErrInvalidStatus)
	}

	var previous domain.Status
	if update.Status != nil {
		before, err := c.hub.Profiles.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		previous = before.Status
	}

	if err := c.hub.Profiles.Update(ctx, id, update, c.hub.now().UTC()); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if update.Status != nil && *update.Status != previous {
		if err := c.hub.Lifecycle.AgentStatusChanged(ctx, id, previous, *update.Status, actor.ID); err != nil {
			c.hub.log.Warn().Err(err).Str("agent_id", id).Msg("agent.status_changed not published")
		}
	}
	c.hub.notifyUser(ctx, id, c.id)
	return nil
}

// ListProfiles is restricted to super admins.
func (c *client) ListProfiles(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	actor, err := c.actor(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if err := c.requireAdmin(ctx, actor); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	out, err := c.hub.Profiles.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

// UploadObject needs no session: receipts are uploaded before the account exists.
func (c *client) UploadObject(ctx context.Context, bucket, path, contentType string, data []byte) (string, error) {
	obj := domain.Object{Bucket: bucket, Path: path, ContentType: contentType, Data: data}
	if err := c.hub.Objects.Put(ctx, obj); err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	return c.hub.PublicURL(bucket, path), nil
}

func (c *client) actor(ctx context.Context) (domain.AuthUser, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return domain.AuthUser{}, err
	}
	if sess == nil {
		return domain.AuthUser{}, domain.ErrNotAuthenticated
	}
	return sess.User, nil
}

func (c *client) requireAdmin(ctx context.Context, actor domain.AuthUser) error {
	p, err := c.hub.Profiles.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return domain.ErrForbidden
		}
		return err
	}
	if p.Role != domain.RoleSuperAdmin {
		return domain.ErrForbidden
	}
	return nil
}
