package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
)

// DBLayer is the order repository boundary. Implementations must run the
// checkout and the stock-mutating transitions as single transactions.
type DBLayer interface {
	CreateOrderWithItems(ctx context.Context, order models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	UpdateOrder(ctx context.Context, order models.Order) error
	MarkDelivered(ctx context.Context, orderID string) error
	MarkReturnRequested(ctx context.Context, orderID string, restoreStock bool) error
	GetAddress(ctx context.Context, id string) (*models.Address, error)
	GetPromotionByID(ctx context.Context, id string) (*models.Promotion, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	Statistics(ctx context.Context) (*models.OrderStatistics, error)
}

// CatalogStore is the read side of the catalog used for price snapshots.
type CatalogStore interface {
	GetBookByID(ctx context.Context, id string) (*models.Book, error)
}

// PromotionEngine prices an order subtotal against a voucher code.
type PromotionEngine interface {
	ApplyCode(ctx context.Context, code string, subtotal float64) (*models.Promotion, float64, error)
}

// BookLock is the advisory per-book checkout lock.
type BookLock interface {
	LockBooks(bookIDs []string, orderID string) (bool, error)
	UnlockBooks(bookIDs []string, orderID string) error
}

// EventPublisher emits lifecycle events after the core transaction commits.
// Failures are contained by the service; they never fail the request.
type EventPublisher interface {
	PublishOrderCreated(order models.Order) error
	PublishCancelRequested(order models.Order) error
	PublishReturnRequested(order models.Order, reason string) error
	PublishDeliveryCompleted(order models.Order) error
}

// PaymentStore persists payment-link attempts.
type PaymentStore interface {
	SavePayment(payment *models.Payment) error
	UpdatePaymentStatusByOrder(orderID string, status models.PaymentRecordStatus) error
}

// PaymentLinker produces a redirect URL for an order total. Implemented in
// payment.go on top of Stripe; swapped for a stub in tests.
type PaymentLinker interface {
	CreatePaymentLink(ctx context.Context, order models.Order) (string, error)
}

type OrderService struct {
	DB         DBLayer
	Catalog    CatalogStore
	Promotions PromotionEngine
	Locks      BookLock
	Events     EventPublisher
	Payments   PaymentStore
	Linker     PaymentLinker
	Logger     *logger.Logger
}

func NewOrderService(db DBLayer, catalog CatalogStore, promotions PromotionEngine,
	locks BookLock, events EventPublisher, payments PaymentStore,
	linker PaymentLinker, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:         db,
		Catalog:    catalog,
		Promotions: promotions,
		Locks:      locks,
		Events:     events,
		Payments:   payments,
		Linker:     linker,
		Logger:     log,
	}
}

// CreateOrder runs the whole checkout: per-line availability, promotion
// pricing, atomic persistence of order + lines, then best-effort event
// publishing and payment-link creation. All business checks happen before
// any write; a failed payment link leaves the created order intact.
func (s *OrderService) CreateOrder(ctx context.Context, caller models.Caller, req models.CreateOrderRequest) (*models.OrderWithItems, error) {
	if len(req.Items) == 0 {
		return nil, apperr.New(apperr.CodeInvalidQuantity, "order must contain at least one line item")
	}

	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, apperr.Newf(apperr.CodeInvalidOrderStatus, "unknown payment method %q", req.PaymentMethod)
	}

	address, err := s.DB.GetAddress(ctx, req.AddressID)
	if err != nil {
		return nil, err
	}
	if address.UserID != caller.UserID {
		return nil, apperr.New(apperr.CodeUnauthorized, "address does not belong to caller")
	}

	orderID := uuid.NewString()
	now := time.Now()

	var (
		items    []models.OrderItem
		bookIDs  []string
		subtotal float64
	)
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return nil, apperr.Newf(apperr.CodeInvalidQuantity, "quantity for book %s must be at least 1", line.BookID)
		}
		book, err := s.Catalog.GetBookByID(ctx, line.BookID)
		if err != nil {
			return nil, err
		}

		lineTotal := book.Price * float64(line.Quantity)
		subtotal += lineTotal
		items = append(items, models.OrderItem{
			OrderID:   orderID,
			BookID:    book.BookID,
			BookTitle: book.Title,
			Quantity:  line.Quantity,
			UnitPrice: book.Price,
			LineTotal: lineTotal,
		})
		bookIDs = append(bookIDs, book.BookID)
	}

	var (
		promoID        string
		promoCode      string
		discountAmount float64
	)
	if req.PromoCode != "" {
		promo, discount, err := s.Promotions.ApplyCode(ctx, req.PromoCode, subtotal)
		if err != nil {
			return nil, err
		}
		promoID = promo.PromoID
		promoCode = promo.Code
		discountAmount = discount
	}

	order := models.Order{
		OrderID:        orderID,
		UserID:         caller.UserID,
		AddressID:      address.AddressID,
		PromoID:        promoID,
		Status:         models.OrderPending,
		PaymentMethod:  method,
		PaymentStatus:  models.PaymentUnpaid,
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TotalAmount:    subtotal - discountAmount,
		Note:           req.Note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Advisory lock first: contended checkouts fail fast instead of queuing
	// on the row locks inside the transaction.
	ok, err := s.Locks.LockBooks(bookIDs, orderID)
	if err != nil {
		return nil, fmt.Errorf("book lock error: %w", err)
	}
	if !ok {
		return nil, apperr.New(apperr.CodeInsufficientStock, "one or more books are held by another checkout, try again")
	}
	defer func() {
		if err := s.Locks.UnlockBooks(bookIDs, orderID); err != nil {
			s.Logger.Warn("ORDER", fmt.Sprintf("failed to release book locks for order %s: %v", orderID, err))
		}
	}()

	if err := s.DB.CreateOrderWithItems(ctx, order, items); err != nil {
		return nil, err
	}
	s.Logger.LogOrder("CREATE", orderID, fmt.Sprintf("user=%s items=%d total=%.2f", caller.UserID, len(items), order.TotalAmount))

	if err := s.Events.PublishOrderCreated(order); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish order created failed for %s: %v", orderID, err))
	}

	response := &models.OrderWithItems{Order: order, Items: items, PromoCode: promoCode}

	if method == models.PaymentMethodCreditCard {
		url, err := s.Linker.CreatePaymentLink(ctx, order)
		if err != nil {
			// Order stays persisted; the client can retry payment later.
			s.Logger.Warn("PAYMENT", fmt.Sprintf("payment link creation failed for order %s: %v", orderID, err))
		} else {
			response.PaymentLinkURL = url
			payment := &models.Payment{
				PaymentID:   uuid.NewString(),
				OrderID:     orderID,
				Status:      models.PaymentRecordPending,
				Amount:      order.TotalAmount,
				URL:         url,
				CreatedDate: time.Now(),
			}
			if err := s.Payments.SavePayment(payment); err != nil {
				s.Logger.Error("PAYMENT", fmt.Sprintf("failed to persist payment record for order %s: %v", orderID, err))
			}
		}
	}

	return response, nil
}

func (s *OrderService) ownedOrder(ctx context.Context, caller models.Caller, orderID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != caller.UserID && !caller.Staff() {
		return nil, apperr.New(apperr.CodeUnauthorized, "order does not belong to caller")
	}
	return order, nil
}

// CancelOrder requests cancellation. Stock stays reserved until an admin
// confirms; only the status moves.
func (s *OrderService) CancelOrder(ctx context.Context, caller models.Caller, orderID string) (*models.OrderWithItems, error) {
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(models.EventUserCancel, order.Status) {
		return nil, apperr.Newf(apperr.CodeCannotCancelOrder, "cannot cancel order in status %s", order.Status)
	}

	order.Status = models.OrderCancelRequested
	order.UpdatedAt = time.Now()
	if err := s.DB.UpdateOrder(ctx, *order); err != nil {
		return nil, fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	s.Logger.LogOrder("CANCEL", orderID, "cancellation requested")

	if err := s.Events.PublishCancelRequested(*order); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish cancel requested failed for %s: %v", orderID, err))
	}
	return s.buildOrderResponse(ctx, order)
}

// ConfirmDelivery moves shipped → delivered: the only point where physical
// stock is subtracted, and the order becomes paid.
func (s *OrderService) ConfirmDelivery(ctx context.Context, caller models.Caller, orderID string) (*models.OrderWithItems, error) {
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(models.EventConfirmDelivery, order.Status) {
		return nil, apperr.Newf(apperr.CodeInvalidOrderStatus, "cannot confirm delivery for order in status %s", order.Status)
	}

	if err := s.DB.MarkDelivered(ctx, orderID); err != nil {
		return nil, err
	}
	order.Status = models.OrderDelivered
	order.PaymentStatus = models.PaymentPaid
	order.UpdatedAt = time.Now()
	s.Logger.LogOrder("DELIVER", orderID, "delivery confirmed, stock subtracted")

	if err := s.Events.PublishDeliveryCompleted(*order); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish delivery completed failed for %s: %v", orderID, err))
	}
	return s.buildOrderResponse(ctx, order)
}

// ReturnOrder requests a return. Stock is restored only when the order was
// already delivered; for shipped orders nothing was subtracted yet.
func (s *OrderService) ReturnOrder(ctx context.Context, caller models.Caller, orderID, reason string) (*models.OrderWithItems, error) {
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(models.EventRequestReturn, order.Status) {
		return nil, apperr.Newf(apperr.CodeInvalidOrderStatus, "cannot request a return for order in status %s", order.Status)
	}

	restoreStock := order.Status == models.OrderDelivered
	if err := s.DB.MarkReturnRequested(ctx, orderID, restoreStock); err != nil {
		return nil, err
	}
	order.Status = models.OrderReturnRequested
	order.UpdatedAt = time.Now()
	s.Logger.LogOrder("RETURN", orderID, fmt.Sprintf("return requested (stock restored=%t)", restoreStock))

	if err := s.Events.PublishReturnRequested(*order, reason); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish return requested failed for %s: %v", orderID, err))
	}
	return s.buildOrderResponse(ctx, order)
}

// AdminSetOrderStatus is the administrative escape hatch: it bypasses the
// customer transition table, validates only the status name, and syncs
// payment status from a fixed mapping.
func (s *OrderService) AdminSetOrderStatus(ctx context.Context, caller models.Caller, orderID, statusName string) (*models.Order, error) {
	if !caller.Staff() {
		return nil, apperr.New(apperr.CodeUnauthorized, "order status override requires staff role")
	}

	newStatus, err := models.ParseOrderStatus(statusName)
	if err != nil {
		return nil, apperr.Newf(apperr.CodeInvalidOrderStatus, "invalid order status %q", statusName)
	}

	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order.Status = newStatus
	switch {
	case newStatus == models.OrderDelivered:
		order.PaymentStatus = models.PaymentPaid
	case newStatus == models.OrderCancelled || newStatus == models.OrderFailed:
		order.PaymentStatus = models.PaymentUnpaid
	case newStatus == models.OrderProcessing && order.PaymentMethod == models.PaymentMethodCreditCard:
		order.PaymentStatus = models.PaymentPaid
	}
	order.UpdatedAt = time.Now()

	if err := s.DB.UpdateOrder(ctx, *order); err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	s.Logger.LogOrder("ADMIN_STATUS", orderID, fmt.Sprintf("status forced to %s by %s", newStatus, caller.UserID))
	return order, nil
}

// ApplyPaymentCallback maps a verified provider outcome onto the order.
func (s *OrderService) ApplyPaymentCallback(ctx context.Context, orderID string, outcome models.PaymentOutcome) error {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	var recordStatus models.PaymentRecordStatus
	switch outcome {
	case models.PaymentOutcomePaid:
		order.Status = models.OrderProcessing
		order.PaymentStatus = models.PaymentPaid
		recordStatus = models.PaymentRecordSucceeded
	case models.PaymentOutcomeCancelled:
		order.Status = models.OrderCancelled
		order.PaymentStatus = models.PaymentUnpaid
		recordStatus = models.PaymentRecordCancelled
	case models.PaymentOutcomeFailed:
		order.Status = models.OrderFailed
		order.PaymentStatus = models.PaymentUnpaid
		recordStatus = models.PaymentRecordFailed
	default:
		return fmt.Errorf("unknown payment outcome %q", outcome)
	}
	order.UpdatedAt = time.Now()

	if err := s.DB.UpdateOrder(ctx, *order); err != nil {
		return fmt.Errorf("failed to apply payment callback for order %s: %w", orderID, err)
	}
	if err := s.Payments.UpdatePaymentStatusByOrder(orderID, recordStatus); err != nil {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("failed to update payment record for order %s: %v", orderID, err))
	}
	s.Logger.LogOrder("PAYMENT_CALLBACK", orderID, fmt.Sprintf("outcome=%s status=%s", outcome, order.Status))
	return nil
}

// GetOrder returns a single order with line items. Owners and staff only.
func (s *OrderService) GetOrder(ctx context.Context, caller models.Caller, orderID string) (*models.OrderWithItems, error) {
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	return s.buildOrderResponse(ctx, order)
}

// ListOrders pages through orders. Non-staff callers only see their own.
func (s *OrderService) ListOrders(ctx context.Context, caller models.Caller, filter models.OrderFilter) (*models.OrderPage, error) {
	if !caller.Staff() {
		filter.UserID = caller.UserID
	}

	orders, total, err := s.DB.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = 20
	}

	result := make([]models.OrderWithItems, 0, len(orders))
	for i := range orders {
		withItems, err := s.buildOrderResponse(ctx, &orders[i])
		if err != nil {
			return nil, err
		}
		result = append(result, *withItems)
	}

	totalPages := (total + size - 1) / size
	return &models.OrderPage{
		Orders:     result,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

// GetOrderStatistics returns per-status counters plus revenue (staff only).
func (s *OrderService) GetOrderStatistics(ctx context.Context, caller models.Caller) (*models.OrderStatistics, error) {
	if !caller.Staff() {
		return nil, apperr.New(apperr.CodeUnauthorized, "order statistics require staff role")
	}
	return s.DB.Statistics(ctx)
}

func (s *OrderService) buildOrderResponse(ctx context.Context, order *models.Order) (*models.OrderWithItems, error) {
	items, err := s.DB.GetItemsByOrder(ctx, order.OrderID)
	if err != nil {
		return nil, err
	}

	promoCode := ""
	if order.PromoID != "" {
		promo, err := s.DB.GetPromotionByID(ctx, order.PromoID)
		if err == nil {
			promoCode = promo.Code
		}
	}

	return &models.OrderWithItems{Order: *order, Items: items, PromoCode: promoCode}, nil
}
