package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

const minSessionTTL = time.Second

// SessionRepository persists one session per client id and indexes the
// clients of every user.
type SessionRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client, now: time.Now}
}

// Save stores s until its token expires and adds the client to the user's index.
func (r *SessionRepository) Save(ctx context.Context, clientID string, s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ttl := sessionTTL(s, r.now())
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(clientID), data, ttl)
		if s.User.ID != "" {
			pipe.SAdd(ctx, userClientsKey(s.User.ID), clientID)
			pipe.Expire(ctx, userClientsKey(s.User.ID), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Load(ctx context.Context, clientID string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Delete removes the session and its index entry. An undecodable session is
// removed all the same.
func (r *SessionRepository) Delete(ctx context.Context, clientID string) error {
	var userID string
	data, err := r.client.Get(ctx, sessionKey(clientID)).Bytes()
	switch {
	case err == nil:
		var s domain.Session
		if json.Unmarshal(data, &s) == nil {
			userID = s.User.ID
		}
	case !errors.Is(err, redis.Nil):
		return fmt.Errorf("delete session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(clientID))
		if userID != "" {
			pipe.SRem(ctx, userClientsKey(userID), clientID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ClientsOf returns the indexed clients of userID whose session is still
// live and still belongs to that user. Stale entries are pruned.
func (r *SessionRepository) ClientsOf(ctx context.Context, userID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, userClientsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user clients: %w", err)
	}

	var live []string
	var stale []any
	for _, clientID := range members {
		s, err := r.Load(ctx, clientID)
		if err != nil {
			return nil, fmt.Errorf("list user clients: %w", err)
		}
		if s == nil || s.User.ID != userID {
			stale = append(stale, clientID)
			continue
		}
		live = append(live, clientID)
	}

	if len(stale) > 0 {
		if err := r.client.SRem(ctx, userClientsKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune user clients: %w", err)
		}
	}
	slices.Sort(live)
	return live, nil
}

func sessionTTL(s *domain.Session, now time.Time) time.Duration {
	ttl := s.ExpiresAt.Sub(now)
	if ttl < minSessionTTL {
		return minSessionTTL
	}
	return ttl
}
