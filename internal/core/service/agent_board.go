package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

var ErrNoReceipt = errors.New("no payment receipt available")

// AgentBoard is the admin's working copy of the agent list.
type AgentBoard struct {
	records  ports.RecordClient
	notifier ports.Notifier
	log      zerolog.Logger

	mu     sync.RWMutex
	agents []domain.Profile
}

func NewAgentBoard(records ports.RecordClient, notifier ports.Notifier, log zerolog.Logger) *AgentBoard {
	return &AgentBoard{records: records, notifier: notifier, log: log}
}

// Load replaces the list with every agent profile, newest first.
func (b *AgentBoard) Load(ctx context.Context) ([]domain.Profile, error) {
	agents, err := b.records.ListProfiles(ctx, domain.ProfileFilter{Role: domain.RoleAgent})
	if err != nil {
		b.log.Error().Err(err).Msg("list agents failed")
		b.notifier.Notify(ports.LevelError, domain.UserMessage(err, "Failed to fetch agents"))
		return nil, fmt.Errorf("load agents: %w", err)
	}

	b.mu.Lock()
	b.agents = agents
	b.mu.Unlock()
	return b.Agents(), nil
}

// SetStatus records an admin decision. The local list changes only after the
// backend has accepted the update.
func (b *AgentBoard) SetStatus(ctx context.Context, id string, status domain.Status) error {
	if !status.IsReviewOutcome() {
		b.notifier.Notify(ports.LevelError, "Failed to update agent status")
		return fmt.Errorf("set status %q: %w", status, domain.ErrInvalidStatus)
	}

	if err := b.records.UpdateProfile(ctx, id, domain.ProfileUpdate{Status: &status}); err != nil {
		b.log.Error().Err(err).Str("agent_id", id).Msg("update agent status failed")
		b.notifier.Notify(ports.LevelError, domain.UserMessage(err, "Failed to update agent status"))
		return fmt.Errorf("set status: %w", err)
	}

	b.mu.Lock()
	for i := range b.agents {
		if b.agents[i].ID == id {
			b.agents[i].Status = status
			break
		}
	}
	b.mu.Unlock()

	b.log.Info().Str("agent_id", id).Str("status", string(status)).Msg("agent status updated")
	b.notifier.Notify(ports.LevelSuccess, fmt.Sprintf("Agent %s successfully", status))
	return nil
}

// ReceiptURL returns the receipt of a listed agent.
func (b *AgentBoard) ReceiptURL(id string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, a := range b.agents {
		if a.ID == id && a.PaymentReceiptURL != "" {
			return a.PaymentReceiptURL, nil
		}
	}
	b.notifier.Notify(ports.LevelError, "No payment receipt available")
	return "", ErrNoReceipt
}

// Agents returns a copy of the current list.
func (b *AgentBoard) Agents() []domain.Profile {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Profile, len(b.agents))
	copy(out, b.agents)
	return out
}
