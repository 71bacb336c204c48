package services

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrSessionNotSettled      = errors.New("checkout session is not settled yet")
)

// StripeService wraps the Stripe client for the payment reconciliation
// endpoints: looking up checkout sessions and issuing refunds.
type StripeService struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeService creates a new instance of StripeService.
func NewStripeService(secretKey string, log *logger.Logger) (*StripeService, error) {
	if secretKey == "" {
		log.Error("STRIPE", "Stripe secret key not configured")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(secretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{
		client: sc,
		log:    log,
	}, nil
}

// SessionOutcome resolves a checkout session to a normalized payment outcome.
// Used by the reconciliation endpoint when a webhook was missed.
func (s *StripeService) SessionOutcome(sessionID string) (models.PaymentOutcome, error) {
	sess, err := s.client.CheckoutSessions.Get(sessionID, nil)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve checkout session %s: %v", sessionID, err))
		return "", fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	switch sess.Status {
	case stripe.CheckoutSessionStatusComplete:
		return models.PaymentOutcomePaid, nil
	case stripe.CheckoutSessionStatusExpired:
		return models.PaymentOutcomeCancelled, nil
	default:
		return "", ErrSessionNotSettled
	}
}

// Refund refunds the payment intent behind a completed checkout session.
func (s *StripeService) Refund(sessionID string) (string, error) {
	sess, err := s.client.CheckoutSessions.Get(sessionID, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	if sess.PaymentIntent == nil {
		return "", fmt.Errorf("%w: session %s has no payment intent", ErrStripeAPIError, sessionID)
	}

	refund, err := s.client.Refunds.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
	})
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Refund failed for session %s: %v", sessionID, err))
		return "", fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Refund %s created for session %s", refund.ID, sessionID))
	return refund.ID, nil
}
