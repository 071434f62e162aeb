package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avelora/storefront/internal/domain"
	pkgkafka "github.com/avelora/storefront/pkg/kafka"
)

// Kafka topic constants for checkout session lifecycle events.
const (
	TopicSessionCreated  = "storefront.checkout.session_created"
	TopicSessionSettled  = "storefront.checkout.session_settled"
	TopicSessionReleased = "storefront.checkout.session_released"
)

// Aggregate type and source identifiers.
const (
	AggregateTypeSession = "reservation_session"
	SourceCheckout       = "checkout-coordinator"
)

// SessionCreatedData is the payload for a session_created event.
type SessionCreatedData struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	OrderIDs  []string `json:"order_ids"`
	HasHold   bool     `json:"has_hold"`
}

// SessionSettledData is the payload for a session_settled event.
type SessionSettledData struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	OrderIDs  []string `json:"order_ids"`
}

// SessionReleasedData is the payload for a session_released event.
type SessionReleasedData struct {
	SessionID   string          `json:"session_id"`
	UserID      string          `json:"user_id"`
	Exit        domain.ExitKind `json:"exit"`
	DeclineCode string          `json:"decline_code,omitempty"`
}

// Producer publishes checkout session lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the checkout coordinator.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishSessionCreated publishes a session_created event.
func (p *Producer) PublishSessionCreated(ctx context.Context, session *domain.ReservationSession) error {
	data := SessionCreatedData{
		SessionID: session.ID,
		UserID:    session.UserID,
		OrderIDs:  session.OrderIDs,
		HasHold:   session.HasHold(),
	}

	event, err := pkgkafka.NewEvent(TopicSessionCreated, session.ID, AggregateTypeSession, SourceCheckout, data)
	if err != nil {
		return fmt.Errorf("create session_created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionCreated, event); err != nil {
		return fmt.Errorf("publish session_created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session_created event",
		slog.String("session_id", session.ID),
	)

	return nil
}

// PublishSessionSettled publishes a session_settled event for a session that
// reached a successful payment.
func (p *Producer) PublishSessionSettled(ctx context.Context, session *domain.ReservationSession) error {
	data := SessionSettledData{
		SessionID: session.ID,
		UserID:    session.UserID,
		OrderIDs:  session.OrderIDs,
	}

	event, err := pkgkafka.NewEvent(TopicSessionSettled, session.ID, AggregateTypeSession, SourceCheckout, data)
	if err != nil {
		return fmt.Errorf("create session_settled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionSettled, event); err != nil {
		return fmt.Errorf("publish session_settled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session_settled event",
		slog.String("session_id", session.ID),
	)

	return nil
}

// PublishSessionReleased publishes a session_released event for a session
// that ended without payment (cancel, decline, timeout, explicit exit).
func (p *Producer) PublishSessionReleased(ctx context.Context, session *domain.ReservationSession, exit domain.ExitClassification) error {
	data := SessionReleasedData{
		SessionID:   session.ID,
		UserID:      session.UserID,
		Exit:        exit.Kind,
		DeclineCode: exit.DeclineCode,
	}

	event, err := pkgkafka.NewEvent(TopicSessionReleased, session.ID, AggregateTypeSession, SourceCheckout, data)
	if err != nil {
		return fmt.Errorf("create session_released event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionReleased, event); err != nil {
		return fmt.Errorf("publish session_released event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session_released event",
		slog.String("session_id", session.ID),
		slog.String("exit", string(exit.Kind)),
	)

	return nil
}
