package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v72"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// SessionCreator creates hosted checkout sessions. client.API.CheckoutSessions
// satisfies it.
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Prices maps each plan to its Stripe price ID
type Prices map[PlanType]string

// CheckoutRequest is the model of user request for a checkout session
type CheckoutRequest struct {
	PlanType  PlanType `json:"planType" validate:"required,oneof=monthly annual"`
	UserID    string   `json:"userId" validate:"required"`
	UserEmail string   `json:"userEmail" validate:"required"`
}

// CheckoutResult is returned to the browser, which redirects to URL
type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CheckoutOptions contains the dependencies of Checkout
type CheckoutOptions struct {
	Sessions SessionCreator
	Prices   Prices
	Logger   *zap.Logger
}

// Checkout starts subscription-mode Stripe checkout sessions. It holds no state;
// the subscription row is created later by the Reconciler.
type Checkout struct {
	CheckoutOptions
}

// NewCheckout returns a Checkout after validating its options
func NewCheckout(option CheckoutOptions) (*Checkout, error) {
	if option.Sessions == nil {
		return nil, fmt.Errorf("nil Sessions is invalid")
	}
	if option.Prices == nil {
		return nil, fmt.Errorf("nil Prices is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Checkout{
		CheckoutOptions: option,
	}, nil
}

// Create validates req and asks Stripe for a checkout session. origin is the
// scheme and host the customer is redirected back to.
func (c *Checkout) Create(ctx context.Context, req CheckoutRequest, origin string) (*CheckoutResult, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, newError(ErrInvalidRequest, validationMessage(err), nil)
	}
	if origin == "" {
		return nil, newError(ErrInvalidRequest, "Missing request origin", nil)
	}

	price, ok := c.Prices[req.PlanType]
	if !ok || price == "" {
		c.Logger.Error("No price configured for plan",
			zap.String("PlanType", string(req.PlanType)),
		)
		return nil, newError(ErrConfiguration, "Plan is not available", nil)
	}

	logger := c.Logger.With(
		zap.String("UserID", req.UserID),
		zap.String("PlanType", string(req.PlanType)),
	)

	metadata := map[string]string{
		metadataUserID:   req.UserID,
		metadataPlanType: string(req.PlanType),
	}

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(price),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(req.UserEmail),
		SuccessURL:    stripe.String(origin + "/progress?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(origin + "/checkout?plan=" + url.QueryEscape(string(req.PlanType)) + "&canceled=true"),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	session, err := c.Sessions.New(params)
	if err != nil {
		logger.Error("Unable to create checkout session in Stripe",
			zap.Error(err),
		)
		return nil, newError(ErrPaymentProvider, providerMessage(err), err)
	}

	logger.Info("Checkout session created",
		zap.String("SessionID", session.ID),
	)

	return &CheckoutResult{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

// validationMessage reports missing fields ahead of an unknown plan
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "Invalid checkout data"
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return "Incomplete checkout data"
		}
	}
	return "Invalid plan"
}

func providerMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	if err.Error() != "" {
		return err.Error()
	}
	return "Unable to process payment"
}
