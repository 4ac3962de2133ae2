package broker

import (
	"context"
	"time"
)

// Notification describes a billing lifecycle event for downstream consumers
type Notification struct {
	Type           string    // Stripe event type (e.g. invoice.payment_failed)
	EventID        string    // Stripe event ID
	UserID         string    // Local user ID recovered from metadata, if any
	CustomerID     string    // Stripe customer ID
	SubscriptionID string    // Stripe subscription ID
	InvoiceID      string    // Stripe invoice ID, for invoice events
	Status         string    // Subscription or invoice status as reported by Stripe
	OccurredAt     time.Time // When the event was created on Stripe
}

// Publisher sends billing notifications via message broker
type Publisher interface {
	Close()
	PublishNotification(n *Notification) error
}

// Consumer receives billing notifications via message broker
type Consumer interface {
	Close()
	ReceiveNotifications(ctx context.Context) (<-chan *Notification, error)
}

// NopPublisher drops every notification. Used when no broker is configured.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) Close() {}

func (NopPublisher) PublishNotification(n *Notification) error {
	return nil
}
