package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
	"go.uber.org/zap"
)

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	args := m.Called(params)
	session, _ := args.Get(0).(*stripe.CheckoutSession)
	return session, args.Error(1)
}

var testPrices = Prices{
	PlanMonthly: "price_monthly",
	PlanAnnual:  "price_annual",
}

func newTestCheckout(t *testing.T, sessions SessionCreator, prices Prices) *Checkout {
	c, err := NewCheckout(CheckoutOptions{
		Sessions: sessions,
		Prices:   prices,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	return c
}

func TestNewCheckoutValidation(t *testing.T) {
	_, err := NewCheckout(CheckoutOptions{Prices: testPrices, Logger: zap.NewNop()})
	assert.Error(t, err)
	_, err = NewCheckout(CheckoutOptions{Sessions: &mockSessions{}, Logger: zap.NewNop()})
	assert.Error(t, err)
	_, err = NewCheckout(CheckoutOptions{Sessions: &mockSessions{}, Prices: testPrices})
	assert.Error(t, err)
}

func TestCheckoutCreate(t *testing.T) {
	sessions := &mockSessions{}
	sessions.On("New", mock.Anything).Return(&stripe.CheckoutSession{
		ID:  "cs_test_123",
		URL: "https://checkout.stripe.com/c/pay/cs_test_123",
	}, nil).Once()

	c := newTestCheckout(t, sessions, testPrices)

	result, err := c.Create(context.Background(), CheckoutRequest{
		PlanType:  PlanAnnual,
		UserID:    "u1",
		UserEmail: "u1@x.com",
	}, "https://glowface.app")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", result.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", result.URL)

	sessions.AssertNumberOfCalls(t, "New", 1)
	params := sessions.Calls[0].Arguments.Get(0).(*stripe.CheckoutSessionParams)

	assert.Equal(t, "subscription", stripe.StringValue(params.Mode))
	require.Len(t, params.PaymentMethodTypes, 1)
	assert.Equal(t, "card", stripe.StringValue(params.PaymentMethodTypes[0]))
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, "price_annual", stripe.StringValue(params.LineItems[0].Price))
	assert.Equal(t, int64(1), stripe.Int64Value(params.LineItems[0].Quantity))
	assert.Equal(t, "u1@x.com", stripe.StringValue(params.CustomerEmail))
	assert.Equal(t, "https://glowface.app/progress?session_id={CHECKOUT_SESSION_ID}", stripe.StringValue(params.SuccessURL))
	assert.Equal(t, "https://glowface.app/checkout?plan=annual&canceled=true", stripe.StringValue(params.CancelURL))

	expected := map[string]string{"userId": "u1", "planType": "annual"}
	assert.Equal(t, expected, params.Metadata)
	require.NotNil(t, params.SubscriptionData)
	assert.Equal(t, expected, params.SubscriptionData.Metadata)
}

func TestCheckoutCreateInvalidRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     CheckoutRequest
		origin  string
		message string
	}{
		{
			name:    "missing plan",
			req:     CheckoutRequest{UserID: "u1", UserEmail: "u1@x.com"},
			origin:  "https://glowface.app",
			message: "Incomplete checkout data",
		},
		{
			name:    "missing user",
			req:     CheckoutRequest{PlanType: PlanMonthly, UserEmail: "u1@x.com"},
			origin:  "https://glowface.app",
			message: "Incomplete checkout data",
		},
		{
			name:    "missing email",
			req:     CheckoutRequest{PlanType: PlanMonthly, UserID: "u1"},
			origin:  "https://glowface.app",
			message: "Incomplete checkout data",
		},
		{
			name:    "unknown plan",
			req:     CheckoutRequest{PlanType: "weekly", UserID: "u1", UserEmail: "u1@x.com"},
			origin:  "https://glowface.app",
			message: "Invalid plan",
		},
		{
			name:    "unknown plan and missing user",
			req:     CheckoutRequest{PlanType: "weekly", UserEmail: "u1@x.com"},
			origin:  "https://glowface.app",
			message: "Incomplete checkout data",
		},
		{
			name:    "missing origin",
			req:     CheckoutRequest{PlanType: PlanMonthly, UserID: "u1", UserEmail: "u1@x.com"},
			message: "Missing request origin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mockSessions{}
			c := newTestCheckout(t, sessions, testPrices)

			result, err := c.Create(context.Background(), tt.req, tt.origin)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
			assert.Equal(t, tt.message, messageOf(err))
			sessions.AssertNotCalled(t, "New", mock.Anything)
		})
	}
}

func TestCheckoutCreateMissingPrice(t *testing.T) {
	sessions := &mockSessions{}
	c := newTestCheckout(t, sessions, Prices{PlanMonthly: "price_monthly"})

	_, err := c.Create(context.Background(), CheckoutRequest{
		PlanType:  PlanAnnual,
		UserID:    "u1",
		UserEmail: "u1@x.com",
	}, "https://glowface.app")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.False(t, errors.Is(err, ErrInvalidRequest))
	sessions.AssertNotCalled(t, "New", mock.Anything)
}

func TestCheckoutCreateProviderError(t *testing.T) {
	t.Run("stripe error", func(t *testing.T) {
		sessions := &mockSessions{}
		sessions.On("New", mock.Anything).Return(nil, &stripe.Error{
			Type: stripe.ErrorTypeInvalidRequest,
			Msg:  "No such price: 'price_annual'",
		}).Once()
		c := newTestCheckout(t, sessions, testPrices)

		_, err := c.Create(context.Background(), CheckoutRequest{
			PlanType:  PlanAnnual,
			UserID:    "u1",
			UserEmail: "u1@x.com",
		}, "https://glowface.app")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPaymentProvider))
		assert.Equal(t, "No such price: 'price_annual'", messageOf(err))

		var stripeErr *stripe.Error
		assert.True(t, errors.As(err, &stripeErr))
		sessions.AssertNumberOfCalls(t, "New", 1)
	})

	t.Run("network error", func(t *testing.T) {
		sessions := &mockSessions{}
		sessions.On("New", mock.Anything).Return(nil, errors.New("dial tcp: i/o timeout")).Once()
		c := newTestCheckout(t, sessions, testPrices)

		_, err := c.Create(context.Background(), CheckoutRequest{
			PlanType:  PlanMonthly,
			UserID:    "u1",
			UserEmail: "u1@x.com",
		}, "https://glowface.app")
		assert.True(t, errors.Is(err, ErrPaymentProvider))
		assert.Equal(t, "dial tcp: i/o timeout", messageOf(err))
	})
}
