package models

import (
	"fmt"
	"strings"
)

// OrderStatus is a closed enum. Transitions outside orderTransitions are
// rejected before any write happens.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderProcessing      OrderStatus = "processing"
	OrderShipped         OrderStatus = "shipped"
	OrderDelivered       OrderStatus = "delivered"
	OrderCancelRequested OrderStatus = "cancel_requested"
	OrderCancelled       OrderStatus = "cancelled"
	OrderReturnRequested OrderStatus = "return_requested"
	OrderReturned        OrderStatus = "returned"
	OrderFailed          OrderStatus = "failed"
)

// AllOrderStatuses lists every valid status, used for validation and the
// statistics aggregate.
var AllOrderStatuses = []OrderStatus{
	OrderPending, OrderProcessing, OrderShipped, OrderDelivered,
	OrderCancelRequested, OrderCancelled, OrderReturnRequested,
	OrderReturned, OrderFailed,
}

// ParseOrderStatus accepts case-insensitive status names.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range AllOrderStatuses {
		if status == valid {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// HoldsStock reports whether orders in this status count toward a book's
// reserved quantity. Physical stock is untouched until delivery; these
// statuses reduce only the derived availability.
func (s OrderStatus) HoldsStock() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped:
		return true
	}
	return false
}

// Terminal reports whether no further customer-initiated transition exists.
// Delivered is not terminal: a return may still be requested from it.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCancelled, OrderReturned, OrderFailed:
		return true
	}
	return false
}

// StockHoldingStatuses is the reservation set used by availability queries.
var StockHoldingStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped}

// OrderEvent names a customer-initiated lifecycle event.
type OrderEvent string

const (
	EventUserCancel      OrderEvent = "user_cancel"
	EventConfirmDelivery OrderEvent = "confirm_delivery"
	EventRequestReturn   OrderEvent = "request_return"
)

// orderTransitions is the guard table: which statuses each event may fire
// from. Admin overrides bypass this table deliberately.
var orderTransitions = map[OrderEvent][]OrderStatus{
	EventUserCancel:      {OrderPending, OrderProcessing},
	EventConfirmDelivery: {OrderShipped},
	EventRequestReturn:   {OrderShipped, OrderDelivered},
}

// CanTransition reports whether event may fire from the given status.
func CanTransition(event OrderEvent, from OrderStatus) bool {
	for _, s := range orderTransitions[event] {
		if s == from {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "cod"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentMethodCOD:
		return PaymentMethodCOD, nil
	case PaymentMethodCreditCard:
		return PaymentMethodCreditCard, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// VoucherStatus is the promotion status enum. The stored column is a hint;
// the effective value is always recomputed from dates and the deletion flag.
type VoucherStatus string

const (
	VoucherActive    VoucherStatus = "active"
	VoucherInactive  VoucherStatus = "inactive"
	VoucherScheduled VoucherStatus = "scheduled"
	VoucherDeleted   VoucherStatus = "deleted"
)
