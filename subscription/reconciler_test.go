package subscription

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glowface/api/broker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu      sync.Mutex
	rows    map[string]*UserSubscription
	writes  int
	failErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows: make(map[string]*UserSubscription),
	}
}

func (m *memoryStore) Create(ctx context.Context, sub *UserSubscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failErr != nil {
		return false, m.failErr
	}
	key := ""
	if sub.StripeSubscriptionID != nil {
		key = *sub.StripeSubscriptionID
	}
	if _, ok := m.rows[key]; ok {
		return false, nil
	}
	cp := *sub
	m.rows[key] = &cp
	return true, nil
}

func (m *memoryStore) UpdateStatus(ctx context.Context, subscriptionID string, status Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failErr != nil {
		return 0, m.failErr
	}
	row, ok := m.rows[subscriptionID]
	if !ok {
		return 0, nil
	}
	row.Status = status
	return 1, nil
}

func (m *memoryStore) Cancel(ctx context.Context, subscriptionID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failErr != nil {
		return 0, m.failErr
	}
	row, ok := m.rows[subscriptionID]
	if !ok {
		return 0, nil
	}
	row.Status = StatusCanceled
	row.CanceledAt = &at
	return 1, nil
}

func (m *memoryStore) get(subscriptionID string) *UserSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[subscriptionID]
}

type memoryLedger struct {
	seen    map[string]bool
	seenErr error
}

func (l *memoryLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	if l.seenErr != nil {
		return false, l.seenErr
	}
	return l.seen[eventID], nil
}

func (l *memoryLedger) Remember(ctx context.Context, eventID string) error {
	l.seen[eventID] = true
	return nil
}

type recordingPublisher struct {
	notifications []*broker.Notification
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) PublishNotification(n *broker.Notification) error {
	p.notifications = append(p.notifications, n)
	return nil
}

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts.Unix())))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(t *testing.T, id, eventType string, object interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     fixedNow.Unix(),
		"data": map[string]interface{}{
			"object": object,
		},
	})
	require.NoError(t, err)
	return b
}

func checkoutObject(metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":           "cs_test_1",
		"object":       "checkout.session",
		"customer":     "cus_1",
		"subscription": "sub_1",
		"metadata":     metadata,
	}
}

func subscriptionObject(status string, metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":       "sub_1",
		"object":   "subscription",
		"status":   status,
		"customer": "cus_1",
		"metadata": metadata,
	}
}

type reconcilerFixture struct {
	store     *memoryStore
	ledger    *memoryLedger
	publisher *recordingPublisher
	r         *Reconciler
}

func newReconcilerFixture(t *testing.T, withLedger bool) *reconcilerFixture {
	f := &reconcilerFixture{
		store:     newMemoryStore(),
		publisher: &recordingPublisher{},
	}
	opts := ReconcilerOptions{
		Store:         f.store,
		WebhookSecret: testWebhookSecret,
		Notifier:      f.publisher,
		Logger:        zap.NewNop(),
		Now:           func() time.Time { return fixedNow },
	}
	if withLedger {
		f.ledger = &memoryLedger{seen: map[string]bool{}}
		opts.Ledger = f.ledger
	}
	r, err := NewReconciler(opts)
	require.NoError(t, err)
	f.r = r
	return f
}

func (f *reconcilerFixture) deliver(payload []byte) error {
	return f.r.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret, time.Now()))
}

func TestNewReconcilerValidation(t *testing.T) {
	_, err := NewReconciler(ReconcilerOptions{WebhookSecret: testWebhookSecret, Logger: zap.NewNop()})
	assert.Error(t, err)
	_, err = NewReconciler(ReconcilerOptions{Store: newMemoryStore(), Logger: zap.NewNop()})
	assert.Error(t, err)
	_, err = NewReconciler(ReconcilerOptions{Store: newMemoryStore(), WebhookSecret: testWebhookSecret})
	assert.Error(t, err)
}

func TestReconcileCheckoutCompleted(t *testing.T) {
	f := newReconcilerFixture(t, false)

	payload := eventPayload(t, "evt_1", "checkout.session.completed", checkoutObject(map[string]string{
		"userId":   "u1",
		"planType": "monthly",
	}))
	require.NoError(t, f.deliver(payload))

	row := f.store.get("sub_1")
	require.NotNil(t, row)
	assert.Equal(t, "u1", row.UserID)
	assert.Equal(t, PlanMonthly, row.PlanType)
	assert.Equal(t, StatusActive, row.Status)
	assert.Equal(t, "cus_1", row.StripeCustomerID)
	require.NotNil(t, row.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *row.StripeSubscriptionID)
	assert.Equal(t, fixedNow, row.StartedAt)
	assert.Nil(t, row.CanceledAt)

	require.Len(t, f.publisher.notifications, 1)
	n := f.publisher.notifications[0]
	assert.Equal(t, "checkout.session.completed", n.Type)
	assert.Equal(t, "evt_1", n.EventID)
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, "sub_1", n.SubscriptionID)
	assert.Equal(t, "active", n.Status)

	t.Run("redelivery inserts nothing", func(t *testing.T) {
		require.NoError(t, f.deliver(payload))
		assert.Len(t, f.store.rows, 1)
		assert.Len(t, f.publisher.notifications, 1)
	})
}

func TestReconcileCheckoutWithoutMetadata(t *testing.T) {
	for name, metadata := range map[string]map[string]string{
		"empty":         {},
		"no plan type":  {"userId": "u1"},
		"no user id":    {"planType": "annual"},
		"blank user id": {"userId": "", "planType": "annual"},
		"unknown plan":  {"userId": "u1", "planType": "lifetime"},
	} {
		t.Run(name, func(t *testing.T) {
			f := newReconcilerFixture(t, false)
			payload := eventPayload(t, "evt_2", "checkout.session.completed", checkoutObject(metadata))

			require.NoError(t, f.deliver(payload))
			assert.Empty(t, f.store.rows)
			assert.Zero(t, f.store.writes)
			assert.Empty(t, f.publisher.notifications)
		})
	}
}

func TestReconcileCheckoutWithoutSubscription(t *testing.T) {
	f := newReconcilerFixture(t, false)
	object := checkoutObject(map[string]string{"userId": "u1", "planType": "monthly"})
	delete(object, "subscription")
	payload := eventPayload(t, "evt_3", "checkout.session.completed", object)

	require.NoError(t, f.deliver(payload))
	assert.Empty(t, f.store.rows)
	assert.Zero(t, f.store.writes)
	assert.Empty(t, f.publisher.notifications)
}

func TestReconcileSignatureFailure(t *testing.T) {
	payload := eventPayload(t, "evt_1", "checkout.session.completed", checkoutObject(map[string]string{
		"userId":   "u1",
		"planType": "monthly",
	}))

	tests := []struct {
		name      string
		signature string
	}{
		{"empty header", ""},
		{"garbage header", "not-a-signature"},
		{"wrong secret", signPayload(payload, "whsec_other", time.Now())},
		{"expired timestamp", signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconcilerFixture(t, true)

			err := f.r.Handle(context.Background(), payload, tt.signature)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAuthenticationFailure))
			assert.Equal(t, "Webhook signature verification failed", messageOf(err))
			assert.Zero(t, f.store.writes)
			assert.Empty(t, f.ledger.seen)
			assert.Empty(t, f.publisher.notifications)
		})
	}

	t.Run("tampered body", func(t *testing.T) {
		f := newReconcilerFixture(t, false)
		sig := signPayload(payload, testWebhookSecret, time.Now())
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-2] = ' '

		err := f.r.Handle(context.Background(), tampered, sig)
		assert.True(t, errors.Is(err, ErrAuthenticationFailure))
		assert.Zero(t, f.store.writes)
	})
}

func TestReconcileSubscriptionUpdated(t *testing.T) {
	f := newReconcilerFixture(t, false)
	subID := "sub_1"
	f.store.rows[subID] = &UserSubscription{
		UserID:               "u1",
		PlanType:             PlanAnnual,
		Status:               StatusActive,
		StripeSubscriptionID: &subID,
	}

	payload := eventPayload(t, "evt_3", "customer.subscription.updated", subscriptionObject("past_due", map[string]string{
		"userId": "u1",
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, f.deliver(payload))
		row := f.store.get(subID)
		assert.Equal(t, Status("past_due"), row.Status)
		assert.Equal(t, "u1", row.UserID)
		assert.Equal(t, PlanAnnual, row.PlanType)
	}
	assert.Len(t, f.publisher.notifications, 3)

	t.Run("unknown status is stored verbatim", func(t *testing.T) {
		payload := eventPayload(t, "evt_4", "customer.subscription.updated", subscriptionObject("incomplete_expired", map[string]string{
			"userId": "u1",
		}))
		require.NoError(t, f.deliver(payload))
		assert.Equal(t, Status("incomplete_expired"), f.store.get(subID).Status)
	})

	t.Run("no matching row", func(t *testing.T) {
		g := newReconcilerFixture(t, false)
		require.NoError(t, g.deliver(payload))
		assert.Empty(t, g.store.rows)
		assert.Empty(t, g.publisher.notifications)
	})

	t.Run("missing userId metadata", func(t *testing.T) {
		g := newReconcilerFixture(t, false)
		payload := eventPayload(t, "evt_5", "customer.subscription.updated", subscriptionObject("active", nil))
		require.NoError(t, g.deliver(payload))
		assert.Zero(t, g.store.writes)
	})
}

func TestReconcileSubscriptionDeleted(t *testing.T) {
	f := newReconcilerFixture(t, false)

	checkout := eventPayload(t, "evt_1", "checkout.session.completed", checkoutObject(map[string]string{
		"userId":   "u1",
		"planType": "monthly",
	}))
	require.NoError(t, f.deliver(checkout))

	deleted := eventPayload(t, "evt_6", "customer.subscription.deleted", subscriptionObject("canceled", map[string]string{
		"userId": "u1",
	}))
	require.NoError(t, f.deliver(deleted))

	row := f.store.get("sub_1")
	require.NotNil(t, row)
	assert.Equal(t, StatusCanceled, row.Status)
	require.NotNil(t, row.CanceledAt)
	assert.Equal(t, fixedNow, *row.CanceledAt)
	assert.Equal(t, "u1", row.UserID)
	assert.Equal(t, PlanMonthly, row.PlanType)

	t.Run("canceled can be moved again by an update", func(t *testing.T) {
		updated := eventPayload(t, "evt_7", "customer.subscription.updated", subscriptionObject("active", map[string]string{
			"userId": "u1",
		}))
		require.NoError(t, f.deliver(updated))
		assert.Equal(t, StatusActive, f.store.get("sub_1").Status)
	})

	t.Run("no matching row", func(t *testing.T) {
		g := newReconcilerFixture(t, false)
		require.NoError(t, g.deliver(deleted))
		assert.Empty(t, g.store.rows)
		assert.Empty(t, g.publisher.notifications)
	})
}

func TestReconcileInvoiceEvents(t *testing.T) {
	for _, eventType := range []string{"invoice.payment_succeeded", "invoice.payment_failed"} {
		t.Run(eventType, func(t *testing.T) {
			f := newReconcilerFixture(t, false)
			payload := eventPayload(t, "evt_inv", eventType, map[string]interface{}{
				"id":           "in_1",
				"object":       "invoice",
				"customer":     "cus_1",
				"subscription": "sub_1",
				"status":       "open",
			})

			require.NoError(t, f.deliver(payload))
			assert.Zero(t, f.store.writes)
			require.Len(t, f.publisher.notifications, 1)
			n := f.publisher.notifications[0]
			assert.Equal(t, eventType, n.Type)
			assert.Equal(t, "in_1", n.InvoiceID)
			assert.Equal(t, "cus_1", n.CustomerID)
			assert.Equal(t, "sub_1", n.SubscriptionID)
		})
	}
}

func TestReconcileUnknownEvent(t *testing.T) {
	f := newReconcilerFixture(t, true)
	payload := eventPayload(t, "evt_8", "customer.created", map[string]interface{}{
		"id":     "cus_1",
		"object": "customer",
	})

	require.NoError(t, f.deliver(payload))
	assert.Zero(t, f.store.writes)
	assert.Empty(t, f.ledger.seen)
	assert.Empty(t, f.publisher.notifications)
}

func TestReconcileStoreFailure(t *testing.T) {
	f := newReconcilerFixture(t, true)
	f.store.failErr = errors.New("connection refused")

	payload := eventPayload(t, "evt_9", "checkout.session.completed", checkoutObject(map[string]string{
		"userId":   "u1",
		"planType": "annual",
	}))

	err := f.deliver(payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReconciliation))
	assert.Equal(t, "Webhook processing failed", messageOf(err))
	assert.False(t, f.ledger.seen["evt_9"])
	assert.Empty(t, f.publisher.notifications)

	// Stripe redelivers after the failure response
	f.store.failErr = nil
	require.NoError(t, f.deliver(payload))
	assert.NotNil(t, f.store.get("sub_1"))
	assert.True(t, f.ledger.seen["evt_9"])
}

func TestReconcileLedger(t *testing.T) {
	t.Run("skips events already processed", func(t *testing.T) {
		f := newReconcilerFixture(t, true)
		payload := eventPayload(t, "evt_10", "checkout.session.completed", checkoutObject(map[string]string{
			"userId":   "u1",
			"planType": "monthly",
		}))

		require.NoError(t, f.deliver(payload))
		require.NoError(t, f.deliver(payload))
		assert.Equal(t, 1, f.store.writes)
		assert.Len(t, f.publisher.notifications, 1)
	})

	t.Run("read errors fall through", func(t *testing.T) {
		f := newReconcilerFixture(t, true)
		f.ledger.seenErr = errors.New("redis unavailable")
		payload := eventPayload(t, "evt_11", "checkout.session.completed", checkoutObject(map[string]string{
			"userId":   "u1",
			"planType": "monthly",
		}))

		require.NoError(t, f.deliver(payload))
		assert.NotNil(t, f.store.get("sub_1"))
	})
}
