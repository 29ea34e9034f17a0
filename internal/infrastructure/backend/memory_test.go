package backend

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

type memCredentials struct {
	mu   sync.Mutex
	byID map[string]domain.Credential
}

func (m *memCredentials) Create(_ context.Context, c *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == c.Email {
			return domain.ErrUserExists
		}
	}
	m.byID[c.ID] = *c
	return nil
}

func (m *memCredentials) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Email == email {
			return &c, nil
		}
	}
	return nil, domain.ErrInvalidCredentials
}

func (m *memCredentials) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

type memProfiles struct {
	mu        sync.Mutex
	byID      map[string]domain.Profile
	createErr error
}

func (m *memProfiles) Create(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.byID[p.ID] = *p
	return nil
}

func (m *memProfiles) FindByID(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (m *memProfiles) Update(_ context.Context, id string, u domain.ProfileUpdate, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p = applyUpdate(p, u)
	p.UpdatedAt = now
	m.byID[id] = p
	return nil
}

func (m *memProfiles) List(_ context.Context, f domain.ProfileFilter) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Profile
	for _, p := range m.byID {
		if f.Role == "" || p.Role == f.Role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memObjects struct {
	mu   sync.Mutex
	objs map[string]domain.Object
}

func (m *memObjects) Put(_ context.Context, o domain.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[o.Bucket+"/"+o.Path] = o
	return nil
}

func (m *memObjects) Get(_ context.Context, bucket, path string) (*domain.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objs[bucket+"/"+path]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return &o, nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func (m *memSessions) Save(_ context.Context, clientID string, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[clientID] = *s
	return nil
}

func (m *memSessions) Load(_ context.Context, clientID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memSessions) Delete(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, clientID)
	return nil
}

func (m *memSessions) ClientsOf(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for clientID, s := range m.sessions {
		if s.User.ID == userID {
			out = append(out, clientID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memSub struct{ ch chan domain.SessionEvent }

func (s *memSub) Events() <-chan domain.SessionEvent { return s.ch }
func (s *memSub) Unsubscribe() error                 { return nil }

type memBus struct {
	mu   sync.Mutex
	subs map[string][]*memSub
}

func (b *memBus) Publish(_ context.Context, clientID string, ev domain.SessionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[clientID] {
		select {
		case s.ch <- ev:
		default:
		}
	}
	return nil
}

func (b *memBus) Subscribe(_ context.Context, clientID string) (ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &memSub{ch: make(chan domain.SessionEvent, 16)}
	b.subs[clientID] = append(b.subs[clientID], s)
	return s, nil
}

type statusChange struct {
	id, actor string
	from, to  domain.Status
}

type memLifecycle struct {
	mu         sync.Mutex
	registered []string
	changes    []statusChange
}

func (l *memLifecycle) AgentRegistered(_ context.Context, p *domain.Profile, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registered = append(l.registered, p.ID)
	return nil
}

func (l *memLifecycle) AgentStatusChanged(_ context.Context, id string, from, to domain.Status, actor string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, statusChange{id: id, actor: actor, from: from, to: to})
	return nil
}

type testHub struct {
	*Hub
	credentials *memCredentials
	profiles    *memProfiles
	sessions    *memSessions
	bus         *memBus
	lifecycle   *memLifecycle
}

func newTestHub() *testHub {
	th := &testHub{
		credentials: &memCredentials{byID: make(map[string]domain.Credential)},
		profiles:    &memProfiles{byID: make(map[string]domain.Profile)},
		sessions:    &memSessions{sessions: make(map[string]domain.Session)},
		bus:         &memBus{subs: make(map[string][]*memSub)},
		lifecycle:   &memLifecycle{},
	}
	th.Hub = NewHub(Deps{
		Credentials: th.credentials,
		Profiles:    th.profiles,
		Objects:     &memObjects{objs: make(map[string]domain.Object)},
		Sessions:    th.sessions,
		Bus:         th.bus,
		Lifecycle:   th.lifecycle,
		Tokens:      NewTokenIssuer("test-secret", time.Hour),
	}, Config{PublicBaseURL: "http://portal.test/", BcryptCost: bcrypt.MinCost}, zerolog.Nop())
	return th
}

var errStoreDown = errors.New("store down")

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
