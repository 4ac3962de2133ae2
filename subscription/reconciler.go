package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glowface/api/broker"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"
)

// ReconcilerOptions contains the dependencies of Reconciler
type ReconcilerOptions struct {
	Store         Store
	WebhookSecret string
	// Tolerance is the accepted age of a signature timestamp
	Tolerance time.Duration
	// Ledger is optional. Without it every delivery is dispatched.
	Ledger EventLedger
	// Notifier is optional
	Notifier broker.Publisher
	Logger   *zap.Logger
	Now      func() time.Time
}

type eventHandler func(ctx context.Context, event *stripe.Event) (*broker.Notification, error)

// Reconciler applies signed Stripe webhook events to the subscription table
type Reconciler struct {
	ReconcilerOptions
	handlers map[EventType]eventHandler
}

// NewReconciler returns a Reconciler after validating its options
func NewReconciler(option ReconcilerOptions) (*Reconciler, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.WebhookSecret == "" {
		return nil, fmt.Errorf("empty WebhookSecret is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Tolerance <= 0 {
		option.Tolerance = webhook.DefaultTolerance
	}
	if option.Notifier == nil {
		option.Notifier = broker.NopPublisher{}
	}
	if option.Now == nil {
		option.Now = time.Now
	}
	r := &Reconciler{
		ReconcilerOptions: option,
	}
	r.handlers = map[EventType]eventHandler{
		EventCheckoutCompleted:       r.checkoutCompleted,
		EventSubscriptionUpdated:     r.subscriptionUpdated,
		EventSubscriptionDeleted:     r.subscriptionDeleted,
		EventInvoicePaymentSucceeded: r.invoicePayment,
		EventInvoicePaymentFailed:    r.invoicePayment,
	}
	return r, nil
}

// Handle verifies signature over the exact payload bytes and applies the event.
// Nothing in payload is read before the signature verifies.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithTolerance(payload, signature, r.WebhookSecret, r.Tolerance)
	if err != nil {
		r.Logger.Warn("Webhook signature verification failed",
			zap.Error(err),
		)
		return newError(ErrAuthenticationFailure, "Webhook signature verification failed", err)
	}

	logger := r.Logger.With(
		zap.String("EventID", event.ID),
		zap.String("EventType", event.Type),
	)

	eventType := ParseEventType(event.Type)
	handler, ok := r.handlers[eventType]
	if !ok {
		logger.Debug("Unhandled event type")
		return nil
	}

	if r.Ledger != nil {
		seen, err := r.Ledger.Seen(ctx, event.ID)
		if err != nil {
			logger.Warn("Unable to query event ledger",
				zap.Error(err),
			)
		}
		if seen {
			logger.Info("Event already processed, skipping")
			return nil
		}
	}

	n, err := handler(ctx, &event)
	if err != nil {
		logger.Error("Unable to process webhook event",
			zap.Error(err),
		)
		return newError(ErrReconciliation, "Webhook processing failed", err)
	}

	if r.Ledger != nil {
		if err := r.Ledger.Remember(ctx, event.ID); err != nil {
			logger.Warn("Unable to record event in ledger",
				zap.Error(err),
			)
		}
	}

	if n != nil {
		n.Type = event.Type
		n.EventID = event.ID
		n.OccurredAt = time.Unix(event.Created, 0).UTC()
		if err := r.Notifier.PublishNotification(n); err != nil {
			logger.Error("Unable to publish billing notification",
				zap.Error(err),
			)
		}
	}

	return nil
}

func (r *Reconciler) checkoutCompleted(ctx context.Context, event *stripe.Event) (*broker.Notification, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, extErrors.Wrap(err, "Cannot parse checkout session")
	}

	userID := session.Metadata[metadataUserID]
	planType := PlanType(session.Metadata[metadataPlanType])
	logger := r.Logger.With(
		zap.String("EventID", event.ID),
		zap.String("SessionID", session.ID),
	)
	if userID == "" || planType == "" {
		logger.Warn("Checkout session has no userId or planType metadata, skipping")
		return nil, nil
	}
	if !planType.Valid() {
		logger.Warn("Checkout session has an unknown planType, skipping",
			zap.String("PlanType", string(planType)),
		)
		return nil, nil
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		logger.Warn("Checkout session completed without a subscription, skipping")
		return nil, nil
	}

	sub := &UserSubscription{
		UserID:    userID,
		PlanType:  planType,
		Status:    StatusActive,
		StartedAt: r.Now().UTC(),
	}
	if session.Customer != nil {
		sub.StripeCustomerID = session.Customer.ID
	}
	subID := session.Subscription.ID
	sub.StripeSubscriptionID = &subID

	inserted, err := r.Store.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	if !inserted {
		logger.Info("Subscription already recorded")
		return nil, nil
	}

	logger.Info("Subscription activated",
		zap.String("UserID", userID),
		zap.String("PlanType", string(planType)),
	)

	n := &broker.Notification{
		UserID:     userID,
		CustomerID: sub.StripeCustomerID,
		Status:     string(StatusActive),
	}
	if sub.StripeSubscriptionID != nil {
		n.SubscriptionID = *sub.StripeSubscriptionID
	}
	return n, nil
}

func (r *Reconciler) subscriptionUpdated(ctx context.Context, event *stripe.Event) (*broker.Notification, error) {
	var s stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, extErrors.Wrap(err, "Cannot parse subscription")
	}

	logger := r.Logger.With(
		zap.String("EventID", event.ID),
		zap.String("SubscriptionID", s.ID),
	)

	userID := s.Metadata[metadataUserID]
	if userID == "" {
		logger.Warn("Subscription has no userId metadata, skipping")
		return nil, nil
	}

	status := Status(s.Status)
	n, err := r.Store.UpdateStatus(ctx, s.ID, status)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		logger.Info("No subscription recorded for update")
		return nil, nil
	}

	logger.Info("Subscription status updated",
		zap.String("Status", string(status)),
	)

	return &broker.Notification{
		UserID:         userID,
		CustomerID:     customerID(s.Customer),
		SubscriptionID: s.ID,
		Status:         string(status),
	}, nil
}

func (r *Reconciler) subscriptionDeleted(ctx context.Context, event *stripe.Event) (*broker.Notification, error) {
	var s stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, extErrors.Wrap(err, "Cannot parse subscription")
	}

	logger := r.Logger.With(
		zap.String("EventID", event.ID),
		zap.String("SubscriptionID", s.ID),
	)

	n, err := r.Store.Cancel(ctx, s.ID, r.Now().UTC())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		logger.Info("No subscription recorded for cancellation")
		return nil, nil
	}

	logger.Info("Subscription canceled")

	return &broker.Notification{
		UserID:         s.Metadata[metadataUserID],
		CustomerID:     customerID(s.Customer),
		SubscriptionID: s.ID,
		Status:         string(StatusCanceled),
	}, nil
}

// invoicePayment only reports the payment; subscription status follows from
// the subscription events Stripe sends alongside.
func (r *Reconciler) invoicePayment(ctx context.Context, event *stripe.Event) (*broker.Notification, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, extErrors.Wrap(err, "Cannot parse invoice")
	}

	fields := []zap.Field{
		zap.String("EventID", event.ID),
		zap.String("InvoiceID", inv.ID),
	}
	if ParseEventType(event.Type) == EventInvoicePaymentFailed {
		r.Logger.Warn("Invoice payment failed", fields...)
	} else {
		r.Logger.Info("Invoice payment succeeded", fields...)
	}

	n := &broker.Notification{
		CustomerID: customerID(inv.Customer),
		InvoiceID:  inv.ID,
		Status:     string(inv.Status),
	}
	if inv.Subscription != nil {
		n.SubscriptionID = inv.Subscription.ID
		n.UserID = inv.Subscription.Metadata[metadataUserID]
	}
	return n, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
