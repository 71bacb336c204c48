package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bookstore-orders/internal/auth"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
	"bookstore-orders/internal/payment/services"
	"bookstore-orders/internal/payment/storage"
	"bookstore-orders/internal/utils"
)

// OrderService is the slice of the order service the payment endpoints need.
type OrderService interface {
	ApplyPaymentCallback(ctx context.Context, orderID string, outcome models.PaymentOutcome) error
}

type PaymentHandler struct {
	stripeService *services.StripeService
	paymentStore  storage.Store
	orderService  OrderService
	logger        *logger.Logger
}

func NewPaymentHandler(stripeService *services.StripeService, paymentStore storage.Store, orderService OrderService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		stripeService: stripeService,
		paymentStore:  paymentStore,
		orderService:  orderService,
		logger:        log,
	}
}

// Router mounts the payment endpoints on their own gin engine. The payment
// router runs alongside the chi API on a separate port.
func (h *PaymentHandler) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/health", h.Health)
	r.POST("/payments/callback", h.Callback)
	r.POST("/payments/reconcile", h.Reconcile)
	r.GET("/payments/:orderId", h.GetByOrder)
	r.GET("/payments/:orderId/history", h.ListByOrder)

	return r
}

// caller reads the identity from the bearer token. The payment router sits
// behind the gateway, which verified the signature; only claims are read here.
func (h *PaymentHandler) caller(c *gin.Context) (models.Caller, bool) {
	token, err := auth.ExtractTokenFromRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return models.Caller{}, false
	}
	caller, err := auth.CallerFromJWT(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return models.Caller{}, false
	}
	return caller, true
}

func (h *PaymentHandler) staffCaller(c *gin.Context) (models.Caller, bool) {
	caller, ok := h.caller(c)
	if !ok {
		return models.Caller{}, false
	}
	if !caller.Staff() {
		c.JSON(http.StatusForbidden, utils.ErrorResponse("Forbidden", "payment lookups require staff role"))
		return models.Caller{}, false
	}
	return caller, true
}

func (h *PaymentHandler) Health(c *gin.Context) {
	if err := h.paymentStore.HealthCheck(); err != nil {
		c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse("Payment store unavailable", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("OK", nil))
}

// Callback accepts a normalized provider outcome from the gateway and applies
// it to the order. Signature verification happened upstream.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var req models.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	if req.OrderID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", "order_id is required"))
		return
	}

	switch req.Outcome {
	case models.PaymentOutcomePaid, models.PaymentOutcomeCancelled, models.PaymentOutcomeFailed:
	default:
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", "outcome must be PAID, CANCELLED or FAILED"))
		return
	}

	if err := h.orderService.ApplyPaymentCallback(c.Request.Context(), req.OrderID, req.Outcome); err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to apply payment outcome", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment outcome applied", gin.H{
		"order_id": req.OrderID,
		"outcome":  req.Outcome,
	}))
}

// Reconcile resolves a checkout session directly against Stripe and applies
// the result. Covers webhooks that were dropped or delivered out of order.
func (h *PaymentHandler) Reconcile(c *gin.Context) {
	var req struct {
		OrderID   string `json:"order_id"`
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	if req.OrderID == "" || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", "order_id and session_id are required"))
		return
	}

	outcome, err := h.stripeService.SessionOutcome(req.SessionID)
	if err != nil {
		if err == services.ErrSessionNotSettled {
			c.JSON(http.StatusConflict, utils.ErrorResponse("Session not settled", "checkout session has no final outcome yet"))
			return
		}
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Stripe lookup failed", err.Error()))
		return
	}

	if err := h.orderService.ApplyPaymentCallback(c.Request.Context(), req.OrderID, outcome); err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to apply payment outcome", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment reconciled", gin.H{
		"order_id": req.OrderID,
		"outcome":  outcome,
	}))
}

// GetByOrder returns the newest payment record for an order (staff only).
func (h *PaymentHandler) GetByOrder(c *gin.Context) {
	if _, ok := h.staffCaller(c); !ok {
		return
	}
	orderID := c.Param("orderId")

	payment, err := h.paymentStore.GetPaymentByOrderID(orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Payment not found", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment retrieved", payment))
}

// ListByOrder returns the payment attempt history for an order (staff only).
func (h *PaymentHandler) ListByOrder(c *gin.Context) {
	if _, ok := h.staffCaller(c); !ok {
		return
	}
	orderID := c.Param("orderId")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	payments, err := h.paymentStore.ListPayments(orderID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list payments", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payments retrieved", payments))
}
