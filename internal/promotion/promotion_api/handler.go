package promotion_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/auth"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
	"bookstore-orders/internal/promotion"
	"bookstore-orders/internal/utils"
)

type Handler struct {
	Service *promotion.Service
	Logger  *logger.Logger
}

func NewHandler(service *promotion.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// Routes mounts the staff promotion endpoints. ListAvailable is public and
// registered separately.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/promotions", h.ListPromotions)
	r.Post("/promotions", h.CreatePromotion)
	r.Put("/promotions/{promoId}", h.UpdatePromotion)
	r.Delete("/promotions/{promoId}", h.DeletePromotion)
	r.Post("/promotions/{promoId}/restore", h.RestorePromotion)
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

func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.PromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	created, err := h.Service.Create(r.Context(), caller, req)
	if err != nil {
		h.writeError(w, "CreatePromotion", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Promotion created", created))
}

func (h *Handler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	promoID := chi.URLParam(r, "promoId")

	var req models.PromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	updated, err := h.Service.Update(r.Context(), caller, promoID, req)
	if err != nil {
		h.writeError(w, "UpdatePromotion", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Promotion updated", updated))
}

func (h *Handler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	promoID := chi.URLParam(r, "promoId")

	if err := h.Service.Delete(r.Context(), caller, promoID); err != nil {
		h.writeError(w, "DeletePromotion", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Promotion deleted", nil))
}

func (h *Handler) RestorePromotion(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	promoID := chi.URLParam(r, "promoId")

	restored, err := h.Service.Restore(r.Context(), caller, promoID)
	if err != nil {
		h.writeError(w, "RestorePromotion", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Promotion restored", restored))
}

func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"

	promos, err := h.Service.List(r.Context(), caller, includeDeleted)
	if err != nil {
		h.writeError(w, "ListPromotions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Promotions retrieved", promos))
}

func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	promos, err := h.Service.Available(r.Context())
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Available promotions retrieved", promos))
}
