package catalog_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/auth"
	"bookstore-orders/internal/catalog"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/utils"
)

type Handler struct {
	Service *catalog.Service
	Logger  *logger.Logger
}

func NewHandler(service *catalog.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// Routes mounts the staff inventory endpoint. GetAvailability is public and
// registered separately.
func (h *Handler) Routes(r chi.Router) {
	r.Put("/books/{bookId}/stock", h.UpdateStock)
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

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookId")

	availability, err := h.Service.AvailableQuantity(r.Context(), bookID)
	if err != nil {
		h.writeError(w, "GetAvailability", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Availability retrieved", availability))
}

func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing authenticated caller"))
		return
	}
	bookID := chi.URLParam(r, "bookId")

	var body struct {
		StockQuantity int `json:"stock_quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	book, err := h.Service.UpdateInventory(r.Context(), caller, bookID, body.StockQuantity)
	if err != nil {
		h.writeError(w, "UpdateStock", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Stock updated", book))
}
