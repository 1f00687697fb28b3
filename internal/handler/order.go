package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/order"
)

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{service: service, validate: NewValidator()}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router, admin func(http.Handler) http.Handler) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders", h.handleGetOrdersByUser)
	router.Get("/orders/{id}", h.handleGetOrderByID)
	router.Get("/orders/number/{number}", h.handleGetOrderByNumber)

	router.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/admin/orders", h.handleListOrders)
		r.Patch("/admin/orders/{id}/status", h.handleUpdateOrderStatus)
	})
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateInput
	if !decodeJSON(w, r, &req) || !validate(w, h.validate, req) {
		return
	}

	created, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		status := mapErrorToStatusCode(err)
		if status == http.StatusBadRequest {
			respondWithError(w, status, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to create order via service")
		respondWithError(w, status, "Failed to create order")
		return
	}

	log.Info().Str("order_id", created.ID).Str("order_number", created.OrderNumber).Msg("Order created")
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleGetOrdersByUser(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		respondWithError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	userID, err := uuid.FromString(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	orders, err := h.service.GetOrdersByUserID(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to get orders by user via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to fetch orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrderByID(r.Context(), chi.URLParam(r, "id"))
	h.respondWithOrder(w, o, err)
}

func (h *OrderHandler) handleGetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrderByNumber(r.Context(), chi.URLParam(r, "number"))
	h.respondWithOrder(w, o, err)
}

func (h *OrderHandler) respondWithOrder(w http.ResponseWriter, o *order.Order, err error) {
	if err != nil {
		status := mapErrorToStatusCode(err)
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			respondWithError(w, status, "Order not found")
		case status == http.StatusBadRequest:
			respondWithError(w, status, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to get order via service")
			respondWithError(w, status, "Failed to fetch order")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.service.ListOrders(r.Context(), page, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list orders via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to fetch orders")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req order.StatusChange
	if !decodeJSON(w, r, &req) || !validate(w, h.validate, req) {
		return
	}

	updated, err := h.service.UpdateOrderStatus(r.Context(), id, req)
	if err != nil {
		status := mapErrorToStatusCode(err)
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			respondWithError(w, status, "Order not found")
		case status == http.StatusBadRequest:
			respondWithError(w, status, err.Error())
		default:
			log.Error().Err(err).Str("order_id", id).Msg("Failed to update order status via service")
			respondWithError(w, status, "Failed to update order status")
		}
		return
	}

	log.Info().Str("order_id", id).Str("status", string(updated.OrderStatus)).Msg("Order status updated")
	respondWithJSON(w, http.StatusOK, updated)
}
