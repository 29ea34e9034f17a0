package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ree-portal/agent-onboarding/internal/core/access"
	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

var errBackendDown = errors.New("backend unavailable")

type account struct {
	id       string
	password string
}

type fakeSub struct {
	ch chan domain.SessionEvent
}

func (s *fakeSub) Events() <-chan domain.SessionEvent { return s.ch }
func (s *fakeSub) Unsubscribe() error                 { return nil }

// fakeBackend is an in-memory ports.Backend. Sign-in and sign-up emit
// SIGNED_IN on the subscription unless silent is set.
type fakeBackend struct {
	mu       sync.Mutex
	sub      *fakeSub
	session  *domain.Session
	profiles map[string]domain.Profile
	accounts map[string]account

	silent       bool
	eventDelay   time.Duration
	onGetSession func(b *fakeBackend)
	readErr      error
	updateErr    error
	listErr      error
	uploadErr    error
	reads        int
	lastAttrs    domain.ProfileAttributes
	updates      []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sub:      &fakeSub{ch: make(chan domain.SessionEvent, 16)},
		profiles: make(map[string]domain.Profile),
		accounts: make(map[string]account),
	}
}

func sessionFor(id, email string) *domain.Session {
	return &domain.Session{
		AccessToken: "token-" + id,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        domain.AuthUser{ID: id, Email: email},
	}
}

func (b *fakeBackend) addUser(id, email, password string, p domain.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.ID = id
	b.profiles[id] = p
	b.accounts[email] = account{id: id, password: password}
}

func (b *fakeBackend) emit(ev domain.SessionEvent) {
	if b.silent {
		return
	}
	if b.eventDelay > 0 {
		go func() {
			time.Sleep(b.eventDelay)
			b.sub.ch <- ev
		}()
		return
	}
	b.sub.ch <- ev
}

func (b *fakeBackend) SignUp(_ context.Context, email, _ string, attrs domain.ProfileAttributes) (*domain.AuthResult, error) {
	b.mu.Lock()
	b.lastAttrs = attrs
	id := "user-" + email
	b.profiles[id] = domain.Profile{
		ID:                id,
		Name:              attrs.Name,
		PhoneNumber:       attrs.PhoneNumber,
		Role:              attrs.Role,
		Status:            attrs.Status,
		PaymentReceiptURL: attrs.PaymentReceiptURL,
	}
	sess := sessionFor(id, email)
	b.session = sess
	b.mu.Unlock()

	b.emit(domain.SessionEvent{Type: domain.EventSignedIn, Session: sess})
	return &domain.AuthResult{User: sess.User, Session: sess}, nil
}

func (b *fakeBackend) SignInWithPassword(_ context.Context, email, password string) (*domain.AuthResult, error) {
	b.mu.Lock()
	acc, ok := b.accounts[email]
	if !ok || acc.password != password {
		b.mu.Unlock()
		return nil, domain.ErrInvalidCredentials
	}
	sess := sessionFor(acc.id, email)
	b.session = sess
	b.mu.Unlock()

	b.emit(domain.SessionEvent{Type: domain.EventSignedIn, Session: sess})
	return &domain.AuthResult{User: sess.User, Session: sess}, nil
}

func (b *fakeBackend) SignOut(context.Context) error {
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
	b.emit(domain.SessionEvent{Type: domain.EventSignedOut})
	return nil
}

func (b *fakeBackend) GetSession(context.Context) (*domain.Session, error) {
	if b.onGetSession != nil {
		b.onGetSession(b)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session, nil
}

func (b *fakeBackend) RefreshSession(context.Context) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil, domain.ErrNotAuthenticated
	}
	sess := sessionFor(b.session.User.ID, b.session.User.Email)
	sess.AccessToken += "-refreshed"
	b.session = sess
	return sess, nil
}

func (b *fakeBackend) OnSessionChange(context.Context) (ports.Subscription, error) {
	return b.sub, nil
}

func (b *fakeBackend) ReadProfile(_ context.Context, id string) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.readErr != nil {
		return nil, b.readErr
	}
	p, ok := b.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (b *fakeBackend) UpdateProfile(_ context.Context, id string, u domain.ProfileUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateErr != nil {
		return b.updateErr
	}
	p, ok := b.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p = applyUpdate(p, u)
	p.UpdatedAt = time.Now()
	b.profiles[id] = p
	b.updates = append(b.updates, id)
	return nil
}

func (b *fakeBackend) ListProfiles(_ context.Context, f domain.ProfileFilter) ([]domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []domain.Profile
	for _, p := range b.profiles {
		if f.Role == "" || p.Role == f.Role {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *fakeBackend) UploadObject(_ context.Context, bucket, path, _ string, _ []byte) (string, error) {
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	return "https://files.test/" + bucket + "/" + path, nil
}

type note struct {
	level   ports.Level
	message string
}

// recorder captures notifications and navigations.
type recorder struct {
	mu    sync.Mutex
	notes []note
	views []access.View
}

func (r *recorder) Notify(level ports.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{level, message})
}

func (r *recorder) Navigate(v access.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recorder) count(level ports.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notes {
		if x.level == level {
			n++
		}
	}
	return n
}

func (r *recorder) last() note {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return note{}
	}
	return r.notes[len(r.notes)-1]
}

func (r *recorder) lastView() access.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return ""
	}
	return r.views[len(r.views)-1]
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// applyUpdate mirrors what the profile repositories do with the non-nil fields.
func applyUpdate(p domain.Profile, u domain.ProfileUpdate) domain.Profile {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.PhoneNumber != nil {
		p.PhoneNumber = *u.PhoneNumber
	}
	if u.Career != nil {
		p.Career = *u.Career
	}
	if u.PaymentReceiptURL != nil {
		p.PaymentReceiptURL = *u.PaymentReceiptURL
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	return p
}
