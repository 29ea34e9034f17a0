package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

const eventBuffer = 16

// SessionBus carries session changes of one client over Redis pub/sub so that
// every replica serving that client observes them.
type SessionBus struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewSessionBus(client *redis.Client, log zerolog.Logger) *SessionBus {
	return &SessionBus{client: client, log: log}
}

func (b *SessionBus) Publish(ctx context.Context, clientID string, event domain.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode session event: %w", err)
	}
	if err := b.client.Publish(ctx, sessionChannel(clientID), data).Err(); err != nil {
		return fmt.Errorf("publish session event: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so no event
// published after it returns is missed.
func (b *SessionBus) Subscribe(ctx context.Context, clientID string) (ports.Subscription, error) {
	ps := b.client.Subscribe(ctx, sessionChannel(clientID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe session events: %w", err)
	}

	sub := &subscription{
		ps:     ps,
		events: make(chan domain.SessionEvent, eventBuffer),
		done:   make(chan struct{}),
	}
	go sub.forward(ps.Channel(), b.log.With().Str("client_id", clientID).Logger())
	return sub, nil
}

type subscription struct {
	ps     *redis.PubSub
	events chan domain.SessionEvent
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan domain.SessionEvent { return s.events }

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *subscription) forward(messages <-chan *redis.Message, log zerolog.Logger) {
	defer close(s.events)
	for {
		var msg *redis.Message
		select {
		case <-s.done:
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			msg = m
		}

		var ev domain.SessionEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Warn().Err(err).Msg("dropping malformed session event")
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
