package order

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/webhook"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/config"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
)

// StripeLinker implements PaymentLinker on top of Stripe Checkout sessions.
type StripeLinker struct {
	Config config.StripeConfig
	Logger *logger.Logger
}

func NewStripeLinker(cfg config.StripeConfig, log *logger.Logger) *StripeLinker {
	stripe.Key = cfg.SecretKey
	return &StripeLinker{Config: cfg, Logger: log}
}

// CreatePaymentLink opens a Checkout session for the order total and returns
// its redirect URL. The order ID travels in the session metadata so webhook
// events can be routed back.
func (l *StripeLinker) CreatePaymentLink(ctx context.Context, order models.Order) (string, error) {
	amountInCents := int64(order.TotalAmount * 100)

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Order %s", order.OrderID)),
					},
					UnitAmount: stripe.Int64(amountInCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(l.Config.SuccessURL),
		CancelURL:  stripe.String(l.Config.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.OrderID)

	sess, err := session.New(params)
	if err != nil {
		return "", apperr.Newf(apperr.CodePaymentLinkFailed, "stripe checkout session failed: %v", err)
	}

	l.Logger.Info("PAYMENT", fmt.Sprintf("Created checkout session %s for order %s (%.2f)", sess.ID, order.OrderID, order.TotalAmount))
	return sess.URL, nil
}

// WebhookError carries both a client-safe message and the internal detail.
type WebhookError struct {
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// HandleStripeWebhook verifies the Stripe signature and maps checkout events
// onto payment outcomes. Unknown event types are acknowledged and skipped.
func (s *OrderService) HandleStripeWebhook(r *http.Request, webhookSecret string) error {
	if webhookSecret == "" {
		s.Logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), webhookSecret, opts)
	if err != nil {
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Webhook signature verification failed: %v", err))
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	s.Logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	var outcome models.PaymentOutcome
	switch event.Type {
	case "checkout.session.completed":
		outcome = models.PaymentOutcomePaid
	case "checkout.session.expired":
		outcome = models.PaymentOutcomeCancelled
	case "payment_intent.payment_failed":
		outcome = models.PaymentOutcomeFailed
	default:
		s.Logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
		return nil
	}

	orderID, err := orderIDFromEvent(event)
	if err != nil {
		s.Logger.Error("WEBHOOK", err.Error())
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: err.Error(),
			OriginalErr:   err,
		}
	}

	if err := s.ApplyPaymentCallback(r.Context(), orderID, outcome); err != nil {
		return &WebhookError{
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Failed to process payment event",
			InternalError: fmt.Sprintf("Failed to apply payment outcome %s to order %s: %v", outcome, orderID, err),
			OriginalErr:   err,
		}
	}

	s.Logger.Info("WEBHOOK", fmt.Sprintf("Applied outcome %s to order %s", outcome, orderID))
	return nil
}

func orderIDFromEvent(event stripe.Event) (string, error) {
	var payload struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return "", fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	orderID, ok := payload.Metadata["order_id"]
	if !ok || orderID == "" {
		return "", fmt.Errorf("event %s has no order_id in metadata", event.ID)
	}
	return orderID, nil
}
