package models

import (
	"time"
)

// PaymentRecordStatus tracks the provider-side state of a payment link.
type PaymentRecordStatus string

const (
	PaymentRecordPending   PaymentRecordStatus = "pending"
	PaymentRecordSucceeded PaymentRecordStatus = "succeeded"
	PaymentRecordFailed    PaymentRecordStatus = "failed"
	PaymentRecordCancelled PaymentRecordStatus = "cancelled"
)

// Payment is one payment-link attempt for an order, persisted in the
// payments table (plain SQL store, not bun).
type Payment struct {
	PaymentID   string              `json:"payment_id"`
	OrderID     string              `json:"order_id"`
	Status      PaymentRecordStatus `json:"status"`
	Amount      float64             `json:"amount"`
	URL         string              `json:"url,omitempty"`
	CreatedDate time.Time           `json:"created_date"`
	UpdatedDate time.Time           `json:"updated_date,omitempty"`
}

// PaymentCallbackRequest is the normalized body the callback endpoint accepts
// after webhook signature verification.
type PaymentCallbackRequest struct {
	OrderID string         `json:"order_id"`
	Outcome PaymentOutcome `json:"outcome"`
}
