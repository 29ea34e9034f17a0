// Package portal keeps the per-visitor state of the web portal: one session
// store, receipt slot, agent board and outbox per browser client.
package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ree-portal/agent-onboarding/internal/core/ports"
	"github.com/ree-portal/agent-onboarding/internal/core/service"
)

const (
	defaultIdleTTL = 30 * time.Minute
	sweepInterval  = time.Minute
)

var ErrRegistryClosed = errors.New("visitor registry closed")

// BackendFactory hands out the backend as seen by one client.
type BackendFactory interface {
	Client(clientID string) ports.Backend
}

type Options struct {
	IdleTTL         time.Duration
	EventWait       time.Duration
	MaxReceiptBytes int64
}

type entry struct {
	ready   chan struct{}
	visitor *Visitor
	err     error
}

// Registry creates visitors on first use and evicts idle ones.
type Registry struct {
	backends BackendFactory
	opts     Options
	now      func() time.Time
	log      zerolog.Logger

	mu       sync.Mutex
	visitors map[string]*entry
	closed   bool
}

func NewRegistry(backends BackendFactory, opts Options, log zerolog.Logger) *Registry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	return &Registry{
		backends: backends,
		opts:     opts,
		now:      time.Now,
		log:      log,
		visitors: make(map[string]*entry),
	}
}

// Get returns the visitor for clientID, initialising its session store on
// first use. Concurrent first requests share one initialisation.
func (r *Registry) Get(ctx context.Context, clientID string) (*Visitor, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	e, ok := r.visitors[clientID]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		r.visitors[clientID] = e
	}
	r.mu.Unlock()

	if !ok {
		e.visitor, e.err = r.build(ctx, clientID)
		if e.err != nil {
			r.mu.Lock()
			delete(r.visitors, clientID)
			r.mu.Unlock()
		}
		close(e.ready)
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	e.visitor.touch(r.now())
	return e.visitor, nil
}

func (r *Registry) build(ctx context.Context, clientID string) (*Visitor, error) {
	backend := r.backends.Client(clientID)
	log := r.log.With().Str("client_id", clientID).Logger()
	out := &Outbox{}

	v := &Visitor{
		ID:      clientID,
		Store:   service.NewSessionStore(backend, out, out, r.opts.EventWait, log),
		Receipt: service.NewReceiptSlot(backend, out, uuid.NewString(), r.opts.MaxReceiptBytes, log),
		Board:   service.NewAgentBoard(backend, out, log),
		Outbox:  out,
	}
	if err := v.Store.Initialize(ctx); err != nil {
		_ = v.Store.Close()
		return nil, fmt.Errorf("initialize visitor: %w", err)
	}
	v.touch(r.now())
	log.Debug().Msg("visitor created")
	return v, nil
}

// Run evicts idle visitors until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug().Int("evicted", n).Msg("idle visitors evicted")
			}
		}
	}
}

// Sweep closes visitors idle for longer than the configured TTL and returns
// how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	var idle []*Visitor

	r.mu.Lock()
	for id, e := range r.visitors {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.visitor != nil && e.visitor.idleSince(now) > r.opts.IdleTTL {
			idle = append(idle, e.visitor)
			delete(r.visitors, id)
		}
	}
	r.mu.Unlock()

	for _, v := range idle {
		if err := v.Store.Close(); err != nil {
			r.log.Warn().Err(err).Str("client_id", v.ID).Msg("closing idle visitor")
		}
	}
	return len(idle)
}

// Len reports how many visitors are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Close releases every visitor. Later Get calls fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	entries := r.visitors
	r.visitors = make(map[string]*entry)
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		<-e.ready
		if e.visitor != nil {
			errs = append(errs, e.visitor.Store.Close())
		}
	}
	return errors.Join(errs...)
}
