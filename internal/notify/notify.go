// Package notify hands domain events to whoever delivers emails and SMS.
// Delivery itself happens elsewhere; this package only publishes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-boxoffice/internal/logger"
)

type EventType string

const (
	PurchaseCompleted EventType = "purchase.completed"
	PaymentConfirmed  EventType = "payment.confirmed"
	PaymentRefunded   EventType = "payment.refunded"
	TicketCheckedIn   EventType = "ticket.checked_in"
)

type Recipient struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
}

// Message is the envelope published for every event.
type Message struct {
	Type       EventType   `json:"type"`
	Recipient  Recipient   `json:"recipient"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, recipient Recipient, eventType EventType, payload interface{}) error
}

// Publisher is satisfied by the kafka producer and the rabbitmq publisher.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
}

// BrokerNotifier publishes JSON envelopes. The destination is
// Prefix + "." + event type, or just the event type without a prefix.
type BrokerNotifier struct {
	Publisher Publisher
	Prefix    string
	Now       func() time.Time
}

func (b *BrokerNotifier) Notify(ctx context.Context, recipient Recipient, eventType EventType, payload interface{}) error {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	body, err := json.Marshal(Message{
		Type:       eventType,
		Recipient:  recipient,
		Payload:    payload,
		OccurredAt: now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", eventType, err)
	}

	topic := string(eventType)
	if b.Prefix != "" {
		topic = b.Prefix + "." + topic
	}
	return b.Publisher.Publish(ctx, topic, recipient.UserID, body)
}

// LogNotifier only logs, for local runs without a broker.
type LogNotifier struct {
	Logger *logger.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, recipient Recipient, eventType EventType, payload interface{}) error {
	n.Logger.Info("NOTIFY", fmt.Sprintf("%s for %s <%s>", eventType, recipient.UserID, recipient.Email))
	return nil
}

// Async wraps a notifier so callers never wait on or fail because of
// delivery. Errors are logged.
type Async struct {
	Next    Notifier
	Timeout time.Duration
	Logger  *logger.Logger
}

func NewAsync(next Notifier, timeout time.Duration, l *logger.Logger) *Async {
	return &Async{Next: next, Timeout: timeout, Logger: l}
}

func (a *Async) Notify(_ context.Context, recipient Recipient, eventType EventType, payload interface{}) error {
	go func() {
		ctx := context.Background()
		if a.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.Timeout)
			defer cancel()
		}
		if err := a.Next.Notify(ctx, recipient, eventType, payload); err != nil {
			a.Logger.Error("NOTIFY", fmt.Sprintf("%s for %s not delivered: %v", eventType, recipient.UserID, err))
		}
	}()
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Recipient, EventType, interface{}) error { return nil }
