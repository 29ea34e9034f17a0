package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ree-portal/agent-onboarding/internal/api/middleware"
	"github.com/ree-portal/agent-onboarding/internal/core/access"
	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
	"github.com/ree-portal/agent-onboarding/internal/portal"
)

const testClient = "6f1c2b9e-1d3a-4a57-9d1e-3c2b7a8f9e10"

var errStorageDown = errors.New("storage unavailable")

type stubSub struct{ ch chan domain.SessionEvent }

func (s *stubSub) Events() <-chan domain.SessionEvent { return s.ch }
func (s *stubSub) Unsubscribe() error                 { return nil }

type account struct {
	id       string
	password string
}

// memBackend is a single-client backend that announces every session change
// on its subscription, like the real hub does.
type memBackend struct {
	mu        sync.Mutex
	accounts  map[string]account
	profiles  map[string]domain.Profile
	session   *domain.Session
	events    chan domain.SessionEvent
	nextID    int
	uploadErr error
	listErr   error
}

func newMemBackend() *memBackend {
	return &memBackend{
		accounts: make(map[string]account),
		profiles: make(map[string]domain.Profile),
		events:   make(chan domain.SessionEvent, 16),
	}
}

func (b *memBackend) addUser(email, password string, p domain.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[email] = account{id: p.ID, password: password}
	b.profiles[p.ID] = p
}

func (b *memBackend) profile(id string) domain.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profiles[id]
}

func (b *memBackend) open(user domain.AuthUser) *domain.Session {
	sess := &domain.Session{AccessToken: "token-" + user.ID, ExpiresAt: time.Now().Add(time.Hour), User: user}
	b.session = sess
	b.events <- domain.SessionEvent{Type: domain.EventSignedIn, Session: sess}
	return sess
}

func (b *memBackend) SignUp(_ context.Context, email, password string, attrs domain.ProfileAttributes) (*domain.AuthResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[email]; ok {
		return nil, domain.ErrUserExists
	}
	b.nextID++
	id := "agent-" + strconv.Itoa(b.nextID)
	b.accounts[email] = account{id: id, password: password}
	b.profiles[id] = domain.Profile{
		ID:                id,
		Name:              attrs.Name,
		PhoneNumber:       attrs.PhoneNumber,
		Career:            attrs.Career,
		Role:              attrs.Role,
		Status:            attrs.Status,
		PaymentReceiptURL: attrs.PaymentReceiptURL,
		CreatedAt:         time.Now(),
	}
	user := domain.AuthUser{ID: id, Email: email}
	return &domain.AuthResult{User: user, Session: b.open(user)}, nil
}

func (b *memBackend) SignInWithPassword(_ context.Context, email, password string) (*domain.AuthResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[email]
	if !ok || acc.password != password {
		return nil, domain.ErrInvalidCredentials
	}
	user := domain.AuthUser{ID: acc.id, Email: email}
	return &domain.AuthResult{User: user, Session: b.open(user)}, nil
}

func (b *memBackend) SignOut(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = nil
	b.events <- domain.SessionEvent{Type: domain.EventSignedOut}
	return nil
}

func (b *memBackend) GetSession(context.Context) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session, nil
}

func (b *memBackend) RefreshSession(context.Context) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil, domain.ErrNotAuthenticated
	}
	sess := *b.session
	sess.ExpiresAt = time.Now().Add(2 * time.Hour)
	b.session = &sess
	return &sess, nil
}

func (b *memBackend) OnSessionChange(context.Context) (ports.Subscription, error) {
	return &stubSub{ch: b.events}, nil
}

func (b *memBackend) ReadProfile(_ context.Context, id string) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (b *memBackend) UpdateProfile(_ context.Context, id string, u domain.ProfileUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	b.profiles[id] = applyUpdate(p, u)
	return nil
}

func (b *memBackend) ListProfiles(_ context.Context, f domain.ProfileFilter) ([]domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := []domain.Profile{}
	for _, p := range b.profiles {
		if f.Role == "" || p.Role == f.Role {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *memBackend) UploadObject(_ context.Context, bucket, path, _ string, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	return "http://portal.test/storage/v1/object/public/" + bucket + "/" + path, nil
}

type singleFactory struct{ backend ports.Backend }

func (f singleFactory) Client(string) ports.Backend { return f.backend }

// testPortal wires the handlers the same way the router does.
type testPortal struct {
	e       *echo.Echo
	reg     *portal.Registry
	backend *memBackend
}

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()
	backend := newMemBackend()
	reg := portal.NewRegistry(singleFactory{backend: backend}, portal.Options{EventWait: time.Second, MaxReceiptBytes: 1024}, zerolog.Nop())
	t.Cleanup(func() { _ = reg.Close() })

	e := echo.New()
	e.Validator = NewValidator()
	visitor := middleware.Visitor(reg, false)

	views := NewViewHandler()
	authH := NewAuthHandler()
	uploads := NewUploadHandler(1024)
	profiles := NewProfileHandler()
	admin := NewAdminHandler()

	e.GET("/", views.Landing, visitor, middleware.Guard(access.ViewLanding))
	e.GET("/auth", views.Auth, visitor, middleware.Guard(access.ViewAuth))
	e.GET("/pending", views.Pending, visitor, middleware.Guard(access.ViewPending))
	e.GET("/agent-dashboard", views.AgentDashboard, visitor, middleware.Guard(access.ViewAgentDashboard))
	e.GET("/admin-dashboard", views.AdminDashboard, visitor, middleware.Guard(access.ViewAdminDashboard))
	e.POST("/auth/signup", authH.SignUp, visitor)
	e.POST("/auth/login", authH.Login, visitor)
	e.POST("/auth/logout", authH.Logout, visitor)
	e.POST("/auth/refresh", authH.Refresh, visitor)
	e.POST("/uploads/receipt", uploads.UploadReceipt, visitor)
	e.DELETE("/uploads/receipt", uploads.RemoveReceipt, visitor)
	e.PATCH("/profile", profiles.Update, visitor)

	ag := e.Group("/admin", visitor, middleware.RBAC(domain.RoleSuperAdmin))
	ag.POST("/agents/:id/approve", admin.Approve)
	ag.POST("/agents/:id/reject", admin.Reject)
	ag.GET("/agents/:id/receipt", admin.Receipt)

	return &testPortal{e: e, reg: reg, backend: backend}
}

func (p *testPortal) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookie, Value: testClient})
	rec := httptest.NewRecorder()
	p.e.ServeHTTP(rec, req)
	return rec
}

func (p *testPortal) get(t *testing.T, path string) *httptest.ResponseRecorder {
	return p.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (p *testPortal) send(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return p.do(t, req)
}

func (p *testPortal) upload(t *testing.T, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write(data)
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/uploads/receipt", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return p.do(t, req)
}

func (p *testPortal) visitor(t *testing.T) *portal.Visitor {
	t.Helper()
	v, err := p.reg.Get(context.Background(), testClient)
	if err != nil {
		t.Fatalf("get visitor: %v", err)
	}
	return v
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return out
}

func hasNote(notes []portal.Notification, level ports.Level, message string) bool {
	for _, n := range notes {
		if n.Level == level && n.Message == message {
			return true
		}
	}
	return false
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
