package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/auth"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
	"bookstore-orders/internal/order"
	"bookstore-orders/internal/receipt"
	"bookstore-orders/internal/utils"
)

type Handler struct {
	OrderService  *order.OrderService
	Receipts      *receipt.Generator
	WebhookSecret string
	Logger        *logger.Logger
}

func NewHandler(orderService *order.OrderService, receipts *receipt.Generator, webhookSecret string, log *logger.Logger) *Handler {
	return &Handler{
		OrderService:  orderService,
		Receipts:      receipts,
		WebhookSecret: webhookSecret,
		Logger:        log,
	}
}

// Routes mounts the order endpoints. Everything here sits behind the auth
// middleware except the Stripe webhook, which is mounted separately.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/statistics", h.GetStatistics)
	r.Get("/orders/{orderId}", h.GetOrder)
	r.Post("/orders/{orderId}/cancel", h.CancelOrder)
	r.Post("/orders/{orderId}/return", h.ReturnOrder)
	r.Post("/orders/{orderId}/delivery", h.ConfirmDelivery)
	r.Get("/orders/{orderId}/receipt", h.GetDeliveryReceipt)
	r.Put("/orders/{orderId}/status", h.SetOrderStatus)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (models.Caller, bool) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing authenticated caller"))
		return models.Caller{}, false
	}
	return caller, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	body := utils.ErrorResponse(op+" failed", err.Error()).WithCode(string(apperr.CodeOf(err)))
	h.writeJSON(w, apperr.HTTPStatus(err), body)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: user=%s", caller.UserID))

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	created, err := h.OrderService.CreateOrder(r.Context(), caller, req)
	if err != nil {
		h.writeError(w, "CreateOrder", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", created))
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: order %s created", created.OrderID))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("GetOrder: orderId=%s", orderID))

	orderData, err := h.OrderService.GetOrder(r.Context(), caller, orderID)
	if err != nil {
		h.writeError(w, "GetOrder", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order retrieved", orderData))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	filter := models.OrderFilter{
		UserID: r.URL.Query().Get("user_id"),
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status, err := models.ParseOrderStatus(statusStr)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid status filter", err.Error()))
			return
		}
		filter.Status = status
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.PageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))

	page, err := h.OrderService.ListOrders(r.Context(), caller, filter)
	if err != nil {
		h.writeError(w, "ListOrders", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Orders retrieved", page))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("CancelOrder: orderId=%s", orderID))

	updated, err := h.OrderService.CancelOrder(r.Context(), caller, orderID)
	if err != nil {
		h.writeError(w, "CancelOrder", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Cancellation requested", updated))
}

func (h *Handler) ReturnOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")

	var body struct {
		Reason string `json:"reason"`
	}
	// Reason is optional; a missing body is fine.
	_ = json.NewDecoder(r.Body).Decode(&body)

	updated, err := h.OrderService.ReturnOrder(r.Context(), caller, orderID, body.Reason)
	if err != nil {
		h.writeError(w, "ReturnOrder", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Return requested", updated))
}

func (h *Handler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("ConfirmDelivery: orderId=%s", orderID))

	updated, err := h.OrderService.ConfirmDelivery(r.Context(), caller, orderID)
	if err != nil {
		h.writeError(w, "ConfirmDelivery", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Delivery confirmed", updated))
}

func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	updated, err := h.OrderService.AdminSetOrderStatus(r.Context(), caller, orderID, body.Status)
	if err != nil {
		h.writeError(w, "SetOrderStatus", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order status updated", updated))
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	stats, err := h.OrderService.GetOrderStatistics(r.Context(), caller)
	if err != nil {
		h.writeError(w, "GetStatistics", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Statistics retrieved", stats))
}

// GetDeliveryReceipt renders the encrypted QR receipt for a delivered order.
func (h *Handler) GetDeliveryReceipt(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.GetOrder(r.Context(), caller, orderID)
	if err != nil {
		h.writeError(w, "GetDeliveryReceipt", err)
		return
	}
	if orderData.Status != models.OrderDelivered && orderData.Status != models.OrderReturnRequested && orderData.Status != models.OrderReturned {
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("Receipt unavailable", "order has not been delivered"))
		return
	}

	png, err := h.Receipts.GenerateEncryptedQR(receipt.DeliveryReceipt{
		OrderID:     orderData.OrderID,
		UserID:      orderData.UserID,
		TotalAmount: orderData.TotalAmount,
		DeliveredAt: orderData.UpdatedAt,
	})
	if err != nil {
		h.writeError(w, "GetDeliveryReceipt", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to write receipt QR: %v", err))
	}
}

// StripeWebhook is mounted outside the auth middleware; Stripe authenticates
// with its signature header instead.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.OrderService.HandleStripeWebhook(r, h.WebhookSecret); err != nil {
		if webhookErr, ok := err.(*order.WebhookError); ok {
			http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
			return
		}
		http.Error(w, "Webhook processing error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
