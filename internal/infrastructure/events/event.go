package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	AggregateAgent = "agent"
	Source         = "agent-onboarding"

	TypeAgentRegistered    = "agent.registered"
	TypeAgentStatusChanged = "agent.status_changed"
)

// Event is the envelope of every message written to Kafka.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	Data          json.RawMessage `json:"data"`
}

func newEvent(eventType, aggregateID string, data any, now time.Time) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: AggregateAgent,
		Version:       1,
		Timestamp:     now.UTC(),
		Source:        Source,
		Data:          raw,
	}, nil
}

type AgentRegisteredData struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Status      string `json:"status"`
	HasReceipt  bool   `json:"has_receipt"`
}

type AgentStatusChangedData struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	ActorID string `json:"actor_id"`
}
