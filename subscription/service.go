package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/glowface/api/auth"
	resp "github.com/glowface/api/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Stripe recommends rejecting webhook payloads larger than this
const maxWebhookBodyBytes = 65536

// Reader is the read side of the subscription table
type Reader interface {
	GetLatestByUser(ctx context.Context, userID string) (*UserSubscription, error)
}

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Checkout      *Checkout
	Reconciler    *Reconciler
	Subscriptions Reader
	// Auth is optional. Without it checkout is unauthenticated and
	// /subscriptions/me is not served.
	Auth *auth.Auth
	// SiteURL is the redirect origin used when a request has no Origin header
	SiteURL string
	Logger  *zap.Logger
}

// Service is the subscription API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the subscription API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Checkout == nil {
		return nil, fmt.Errorf("nil Checkout is invalid")
	}
	if option.Reconciler == nil {
		return nil, fmt.Errorf("nil Reconciler is invalid")
	}
	if option.Subscriptions == nil {
		return nil, fmt.Errorf("nil Subscriptions is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	if s.Auth != nil {
		claims, _ := auth.FromContext(r.Context())
		if req.UserID != "" && req.UserID != claims.UserID() {
			resp.WriteError(w, r, resp.ErrForbidden().AddMessages("Cannot start checkout for another user"))
			return
		}
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = s.SiteURL
	}

	result, err := s.Checkout.Create(r.Context(), req, origin)
	switch {
	case err == nil:
		resp.WriteResponse(w, r, result)
	case errors.Is(err, ErrInvalidRequest):
		resp.WriteError(w, r, resp.ErrBadRequest().WithMessage(messageOf(err)))
	case errors.Is(err, ErrPaymentProvider), errors.Is(err, ErrConfiguration):
		resp.WriteError(w, r, resp.ErrUnexpected().WithMessage(messageOf(err)))
	default:
		s.Logger.Error("Unable to create checkout session",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().WithMessage("Unable to process payment"))
	}
}

func (s *Service) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		s.Logger.Warn("Unable to read webhook body",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrBadRequest().WithMessage("Unable to read request body"))
		return
	}

	err = s.Reconciler.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		resp.WriteResponse(w, r, struct {
			Received bool `json:"received"`
		}{
			Received: true,
		})
	case errors.Is(err, ErrAuthenticationFailure):
		resp.WriteError(w, r, resp.ErrBadRequest().WithMessage("Webhook signature verification failed"))
	default:
		resp.WriteError(w, r, resp.ErrUnexpected().WithMessage("Webhook processing failed"))
	}
}

func (s *Service) getMySubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	sub, err := s.Subscriptions.GetLatestByUser(ctx, claims.UserID())
	if err != nil {
		logger.Error("Unable to query subscription",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get subscription"))
		return
	}
	if sub == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("No subscription found"))
		return
	}

	resp.WriteResponse(w, r, sub)
}

// Router will return the routes under the subscription API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhooks/stripe", s.stripeWebhook)

	if s.Auth == nil {
		r.Post("/create-checkout-session", s.createCheckoutSession)
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(s.Auth.Middleware())
		r.Use(s.Auth.ClaimCheck())

		r.Post("/create-checkout-session", s.createCheckoutSession)
		r.Get("/subscriptions/me", s.getMySubscription)
	})

	return r
}
