package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	AddressID     string             `json:"address_id"`
	PromoCode     string             `json:"promo_code,omitempty"`
	PaymentMethod string             `json:"payment_method"`
	Note          string             `json:"note,omitempty"`
	Items         []OrderItemRequest `json:"items"`
}

type OrderItemRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID        string        `bun:"order_id,pk" json:"order_id"`
	UserID         string        `bun:"user_id,notnull" json:"user_id"`
	AddressID      string        `bun:"address_id,notnull" json:"address_id"`
	PromoID        string        `bun:"promo_id,nullzero" json:"promo_id,omitempty"`
	Status         OrderStatus   `bun:"status,notnull" json:"status"`
	PaymentMethod  PaymentMethod `bun:"payment_method,notnull" json:"payment_method"`
	PaymentStatus  PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	Subtotal       float64       `bun:"subtotal,notnull" json:"subtotal"`
	DiscountAmount float64       `bun:"discount_amount,notnull" json:"discount_amount"`
	TotalAmount    float64       `bun:"total_amount,notnull" json:"total_amount"`
	Note           string        `bun:"note,nullzero" json:"note,omitempty"`
	CreatedAt      time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time     `bun:"updated_at,nullzero" json:"updated_at"`
}

// OrderItem is a price snapshot taken at order time. Rows are immutable once
// written; quantity changes require a new order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	OrderID   string  `bun:"order_id,pk" json:"order_id"`
	BookID    string  `bun:"book_id,pk" json:"book_id"`
	BookTitle string  `bun:"book_title,notnull" json:"book_title"`
	Quantity  int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice float64 `bun:"unit_price,notnull" json:"unit_price"`
	LineTotal float64 `bun:"line_total,notnull" json:"line_total"`
}

// OrderWithItems combines an order with its line items for API responses.
type OrderWithItems struct {
	Order
	Items          []OrderItem `json:"items"`
	PromoCode      string      `json:"promo_code,omitempty"`
	PaymentLinkURL string      `json:"payment_link_url,omitempty"`
}

// OrderFilter drives the admin listing endpoint.
type OrderFilter struct {
	Status   OrderStatus
	UserID   string
	Page     int
	PageSize int
}

// OrderPage is a paginated listing result.
type OrderPage struct {
	Orders     []OrderWithItems `json:"orders"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalItems int              `json:"total_items"`
	TotalPages int              `json:"total_pages"`
}

// OrderStatistics aggregates counters per status plus revenue over
// non-cancelled, non-returned orders.
type OrderStatistics struct {
	TotalOrders           int     `json:"total_orders"`
	PendingOrders         int     `json:"pending_orders"`
	ProcessingOrders      int     `json:"processing_orders"`
	ShippedOrders         int     `json:"shipped_orders"`
	DeliveredOrders       int     `json:"delivered_orders"`
	CancelRequestedOrders int     `json:"cancel_requested_orders"`
	CancelledOrders       int     `json:"cancelled_orders"`
	ReturnRequestedOrders int     `json:"return_requested_orders"`
	ReturnedOrders        int     `json:"returned_orders"`
	FailedOrders          int     `json:"failed_orders"`
	TotalRevenue          float64 `json:"total_revenue"`
}

// PaymentOutcome is the normalized provider callback result.
type PaymentOutcome string

const (
	PaymentOutcomePaid      PaymentOutcome = "PAID"
	PaymentOutcomeCancelled PaymentOutcome = "CANCELLED"
	PaymentOutcomeFailed    PaymentOutcome = "FAILED"
)
