package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/order"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/payment"
)

const maxCallbackBody = 64 << 10

type paymentFailure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type InitializeCardRequest struct {
	Email    string           `json:"email" validate:"required,email"`
	Amount   *decimal.Decimal `json:"amount" validate:"required"`
	OrderID  string           `json:"orderId" validate:"required"`
	Metadata map[string]any   `json:"metadata"`
}

type InitiatePushRequest struct {
	PhoneNumber string           `json:"phoneNumber" validate:"required"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	OrderID     string           `json:"orderId" validate:"required"`
}

type PaymentHandler struct {
	service  payment.Service
	validate *validator.Validate
}

func NewPaymentHandler(service payment.Service) *PaymentHandler {
	return &PaymentHandler{service: service, validate: NewValidator()}
}

func (h *PaymentHandler) RegisterRoutes(router chi.Router) {
	router.Route("/payments", func(r chi.Router) {
		r.Post("/paystack/initialize", h.handleInitializeCard)
		r.Get("/paystack/verify/{reference}", h.handleVerifyCard)
		r.Post("/mpesa/initiate", h.handleInitiatePush)
		r.Post("/mpesa/callback", h.handlePushCallback)
		r.Get("/health", h.handleHealth)
	})
}

func (h *PaymentHandler) handleInitializeCard(w http.ResponseWriter, r *http.Request) {
	var req InitializeCardRequest
	if !decodeJSON(w, r, &req) || !validate(w, h.validate, req) {
		return
	}

	res, err := h.service.InitializeCardPayment(r.Context(), payment.CardPaymentInput{
		Email:    req.Email,
		Amount:   *req.Amount,
		OrderID:  req.OrderID,
		Metadata: req.Metadata,
	})
	if err != nil {
		status := mapErrorToStatusCode(err)
		if status != http.StatusBadRequest {
			status = http.StatusInternalServerError
			log.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to initialize card payment via service")
		}
		respondWithJSON(w, status, paymentFailure{
			Message: "Payment initialization failed",
			Error:   err.Error(),
		})
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) handleVerifyCard(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	res, err := h.service.VerifyCardPayment(r.Context(), reference)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrPaymentNotSuccessful), errors.Is(err, payment.ErrInvalidReference):
			respondWithJSON(w, http.StatusBadRequest, paymentFailure{Message: "Payment verification failed"})
		case errors.Is(err, order.ErrOrderNotFound):
			respondWithJSON(w, http.StatusNotFound, paymentFailure{
				Message: "Payment verification failed",
				Error:   "Order not found",
			})
		default:
			log.Error().Err(err).Str("reference", reference).Msg("Failed to verify card payment via service")
			respondWithJSON(w, http.StatusInternalServerError, paymentFailure{
				Message: "Payment verification failed",
				Error:   err.Error(),
			})
		}
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) handleInitiatePush(w http.ResponseWriter, r *http.Request) {
	var req InitiatePushRequest
	if !decodeJSON(w, r, &req) || !validate(w, h.validate, req) {
		return
	}

	res, err := h.service.InitiatePushPayment(r.Context(), payment.PushPaymentInput{
		PhoneNumber: req.PhoneNumber,
		Amount:      *req.Amount,
		OrderID:     req.OrderID,
	})
	if err != nil {
		status := mapErrorToStatusCode(err)
		if status != http.StatusBadRequest {
			status = http.StatusInternalServerError
			log.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to initiate mpesa payment via service")
		}
		respondWithJSON(w, status, paymentFailure{
			Message: "M-Pesa payment failed",
			Error:   err.Error(),
		})
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// handlePushCallback always acknowledges; the provider retries otherwise.
func (h *PaymentHandler) handlePushCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read mpesa callback body")
	} else {
		h.service.HandlePushCallback(r.Context(), body)
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"ResultCode": 0, "ResultDesc": "Success"})
}

func (h *PaymentHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"service": "payments", "status": "online"})
}
