package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

type Topics struct {
	AgentRegistered    string
	AgentStatusChanged string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes agent lifecycle events to Kafka.
type Producer struct {
	writer messageWriter
	topics Topics
	now    func() time.Time
	log    zerolog.Logger
}

func NewProducer(brokers []string, topics Topics, log zerolog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: w, topics: topics, now: time.Now, log: log}
}

func (p *Producer) AgentRegistered(ctx context.Context, profile *domain.Profile, email string) error {
	data := AgentRegisteredData{
		ID:          profile.ID,
		Email:       email,
		Name:        profile.Name,
		PhoneNumber: profile.PhoneNumber,
		Status:      string(profile.Status),
		HasReceipt:  profile.PaymentReceiptURL != "",
	}
	return p.publish(ctx, p.topics.AgentRegistered, TypeAgentRegistered, profile.ID, data)
}

func (p *Producer) AgentStatusChanged(ctx context.Context, agentID string, from, to domain.Status, actorID string) error {
	data := AgentStatusChangedData{ID: agentID, From: string(from), To: string(to), ActorID: actorID}
	return p.publish(ctx, p.topics.AgentStatusChanged, TypeAgentStatusChanged, agentID, data)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID string, data any) error {
	ev, err := newEvent(eventType, aggregateID, data, p.now())
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(aggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(Source)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, topic, err)
	}

	p.log.Debug().Str("topic", topic).Str("event_type", eventType).Str("aggregate_id", aggregateID).Msg("event published")
	return nil
}

// Ping dials the first reachable broker.
func Ping(ctx context.Context, brokers []string) error {
	var lastErr error
	for _, b := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no kafka brokers configured")
	}
	return fmt.Errorf("kafka ping: %w", lastErr)
}

// Nop discards lifecycle events. Used when no brokers are configured.
type Nop struct{}

func (Nop) AgentRegistered(context.Context, *domain.Profile, string) error { return nil }
func (Nop) AgentStatusChanged(context.Context, string, domain.Status, domain.Status, string) error {
	return nil
}
