package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ree-portal/agent-onboarding/internal/core/access"
	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

const defaultEventWait = 5 * time.Second

var errAlreadyInitialized = errors.New("session store already initialized")

// SessionStore owns the authenticated identity and the fetched profile of one
// visitor and keeps them in step with the backend's session notifications.
// Views read it through Snapshot and never mutate it.
type SessionStore struct {
	backend   ports.Backend
	notifier  ports.Notifier
	nav       ports.Navigator
	eventWait time.Duration
	log       zerolog.Logger

	mu          sync.RWMutex
	session     *domain.Session
	profile     *domain.Profile
	loading     bool
	resolvedFor string // user whose profile load last completed
	eventSeen   bool
	changed     chan struct{} // closed and replaced after every resolution

	loadedOnce sync.Once
	ready      chan struct{}

	sub    ports.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSessionStore builds a store. eventWait bounds how long sign-in waits for
// the session notification before loading the profile itself.
func NewSessionStore(backend ports.Backend, notifier ports.Notifier, nav ports.Navigator, eventWait time.Duration, log zerolog.Logger) *SessionStore {
	if eventWait <= 0 {
		eventWait = defaultEventWait
	}
	return &SessionStore{
		backend:   backend,
		notifier:  notifier,
		nav:       nav,
		eventWait: eventWait,
		log:       log,
		loading:   true,
		changed:   make(chan struct{}),
		ready:     make(chan struct{}),
	}
}

// Initialize subscribes to session changes and then restores any persisted
// session. The subscription lives until Close.
func (s *SessionStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return errAlreadyInitialized
	}
	s.mu.Unlock()

	// Subscribe before polling so an event fired during startup is not lost.
	sub, err := s.backend.OnSessionChange(ctx)
	if err != nil {
		s.markLoaded()
		return s.fail(err, "initialize: subscribe", "Failed to connect to the authentication service")
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.sub = sub
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()
	go s.consume(loopCtx, sub.Events())

	sess, err := s.backend.GetSession(ctx)
	if err != nil {
		s.markLoaded()
		return s.fail(err, "initialize: get session", "Failed to restore your session")
	}

	s.mu.Lock()
	if s.eventSeen {
		// A notification already described a newer state.
		s.mu.Unlock()
		return nil
	}
	s.session = sess
	s.mu.Unlock()

	if sess == nil {
		s.markLoaded()
		return nil
	}
	_ = s.LoadProfile(ctx, sess.User.ID)
	return nil
}

// Close releases the session subscription.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	sub, cancel, done := s.sub, s.cancel, s.done
	s.mu.Unlock()
	if sub == nil {
		return nil
	}
	cancel()
	err := sub.Unsubscribe()
	<-done
	return err
}

// Snapshot returns a copy of the current state.
func (s *SessionStore) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.Snapshot{IsLoading: s.loading}
	if s.session != nil {
		sess := *s.session
		snap.Session = &sess
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

// Ready blocks until the first resolve has finished.
func (s *SessionStore) Ready(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadProfile fetches the profile of userID. A failed fetch is surfaced but
// never leaves the store loading.
func (s *SessionStore) LoadProfile(ctx context.Context, userID string) error {
	p, err := s.backend.ReadProfile(ctx, userID)

	s.mu.Lock()
	current := s.session != nil && s.session.User.ID == userID
	if current {
		if err == nil {
			s.profile = p
		}
		s.resolvedFor = userID
	}
	s.broadcastLocked()
	s.mu.Unlock()

	s.markLoaded()

	if err != nil {
		return s.fail(err, "load profile", "Failed to fetch user profile")
	}
	if !current {
		s.log.Debug().Str("user_id", userID).Msg("discarded profile of a session that is no longer current")
	}
	return nil
}

// SignUp registers a new agent. Role and status are always forced to
// agent/pending_approval whatever the caller put in attrs.
func (s *SessionStore) SignUp(ctx context.Context, email, password string, attrs domain.ProfileAttributes) error {
	if strings.TrimSpace(attrs.PaymentReceiptURL) == "" {
		return s.reject(domain.ErrReceiptRequired, "sign up", "Please upload your payment receipt")
	}
	attrs.Role = domain.RoleAgent
	attrs.Status = domain.StatusPendingApproval

	res, err := s.backend.SignUp(ctx, email, password, attrs)
	if err != nil {
		return s.fail(err, "sign up", "Failed to sign up")
	}
	if res.Session != nil {
		s.settle(ctx, res)
	}

	s.log.Info().Str("user_id", res.User.ID).Msg("agent signed up")
	s.nav.Navigate(access.ViewPending)
	s.notifier.Notify(ports.LevelSuccess, "Sign up successful! Your account is pending approval.")
	return nil
}

// SignIn authenticates. The profile arrives through the session notification;
// navigation waits for it so the router never sees a missing profile.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	res, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return s.fail(err, "sign in", "Failed to sign in")
	}
	s.settle(ctx, res)

	s.log.Info().Str("user_id", res.User.ID).Msg("signed in")
	s.notifier.Notify(ports.LevelSuccess, "Signed in successfully!")
	s.nav.Navigate(access.Target(access.StateOf(s.Snapshot())))
	return nil
}

// SignOut ends the session and returns to the landing view.
func (s *SessionStore) SignOut(ctx context.Context) error {
	if err := s.backend.SignOut(ctx); err != nil {
		return s.fail(err, "sign out", "Failed to sign out")
	}
	s.clear()

	s.nav.Navigate(access.ViewLanding)
	s.notifier.Notify(ports.LevelSuccess, "Signed out successfully")
	return nil
}

// RefreshSession renews the access token of the current session.
func (s *SessionStore) RefreshSession(ctx context.Context) error {
	sess, err := s.backend.RefreshSession(ctx)
	if err != nil {
		return s.fail(err, "refresh session", "Failed to refresh your session")
	}
	s.mu.Lock()
	if s.session != nil && s.session.User.ID == sess.User.ID {
		s.session = sess
	}
	s.mu.Unlock()
	return nil
}

// UpdateProfile writes patch for the current user and then re-reads the
// profile so server-computed fields are reflected.
func (s *SessionStore) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) error {
	userID := s.Snapshot().UserID()
	if userID == "" {
		return s.reject(domain.ErrNotAuthenticated, "update profile", "You must be signed in to update your profile")
	}

	if err := s.backend.UpdateProfile(ctx, userID, patch.AsUpdate()); err != nil {
		return s.fail(err, "update profile", "Failed to update profile")
	}
	if err := s.LoadProfile(ctx, userID); err != nil {
		return err
	}

	s.notifier.Notify(ports.LevelSuccess, "Profile updated successfully")
	return nil
}

func (s *SessionStore) consume(ctx context.Context, events <-chan domain.SessionEvent) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.apply(ctx, ev)
		}
	}
}

func (s *SessionStore) apply(ctx context.Context, ev domain.SessionEvent) {
	s.log.Debug().Str("event", string(ev.Type)).Msg("session change")

	if ev.Type == domain.EventSignedOut || ev.Session == nil {
		s.mu.Lock()
		s.eventSeen = true
		s.mu.Unlock()
		s.clear()
		s.markLoaded()
		return
	}

	userID := ev.Session.User.ID
	s.mu.Lock()
	s.eventSeen = true
	if s.session == nil || s.session.User.ID != userID {
		s.profile = nil
		s.resolvedFor = ""
	}
	s.session = ev.Session
	stale := s.profile == nil || s.profile.ID != userID
	s.mu.Unlock()

	if stale || ev.Type == domain.EventSignedIn || ev.Type == domain.EventUserUpdated {
		_ = s.LoadProfile(ctx, userID)
		return
	}
	s.markLoaded()
}

// settle waits until the profile of the freshly authenticated user has been
// resolved by the notification path. If no notification shows up in time it
// adopts the session itself.
func (s *SessionStore) settle(ctx context.Context, res *domain.AuthResult) {
	waitCtx, cancel := context.WithTimeout(ctx, s.eventWait)
	err := s.awaitProfile(waitCtx, res.User.ID)
	cancel()
	if err == nil || ctx.Err() != nil || res.Session == nil {
		return
	}

	s.log.Warn().Str("user_id", res.User.ID).Msg("no session notification received, loading profile directly")
	s.mu.Lock()
	if s.session == nil || s.session.User.ID != res.User.ID {
		s.profile = nil
	}
	s.session = res.Session
	s.mu.Unlock()
	_ = s.LoadProfile(ctx, res.User.ID)
}

func (s *SessionStore) awaitProfile(ctx context.Context, userID string) error {
	for {
		s.mu.RLock()
		done := s.resolvedFor == userID
		ch := s.changed
		s.mu.RUnlock()
		if done {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *SessionStore) clear() {
	s.mu.Lock()
	s.session = nil
	s.profile = nil
	s.resolvedFor = ""
	s.broadcastLocked()
	s.mu.Unlock()
}

func (s *SessionStore) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *SessionStore) markLoaded() {
	s.loadedOnce.Do(func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		close(s.ready)
	})
}

// fail logs err, surfaces exactly one notification and returns the wrapped error.
func (s *SessionStore) fail(err error, op, fallback string) error {
	s.log.Error().Err(err).Str("op", op).Msg("session store operation failed")
	s.notifier.Notify(ports.LevelError, domain.UserMessage(err, fallback))
	return fmt.Errorf("%s: %w", op, err)
}

// reject refuses a call before it reaches the backend.
func (s *SessionStore) reject(err error, op, message string) error {
	s.log.Warn().Err(err).Str("op", op).Msg("session store operation rejected")
	s.notifier.Notify(ports.LevelError, message)
	return fmt.Errorf("%s: %w", op, err)
}
