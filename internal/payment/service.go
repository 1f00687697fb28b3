package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/docid"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/order"
)

var (
	ErrInvalidEmail         = errors.New("a valid email is required")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidOrderID       = errors.New("a valid orderId is required")
	ErrInvalidReference     = errors.New("payment reference is required")
	ErrPaymentNotSuccessful = errors.New("payment verification failed")
)

// UpstreamError is a rejection or unreadable answer from a payment provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Provider, e.StatusCode, e.Message)
}

// OrderStore is the slice of order storage the payment flows write to.
// Every write is a blind overwrite.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*order.Order, error)
	MarkPaymentProcessing(ctx context.Context, id, transactionID, phone string) error
	MarkPaymentCompleted(ctx context.Context, id string, details order.PaymentDetails, confirmOrder bool) error
	MarkPaymentFailed(ctx context.Context, id string) error
}

type CardPaymentInput struct {
	Email    string          `json:"email" validate:"required,email"`
	Amount   decimal.Decimal `json:"amount"`
	OrderID  string          `json:"orderId" validate:"required"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

type CardPaymentResult struct {
	Success          bool   `json:"success"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type PushPaymentInput struct {
	PhoneNumber string          `json:"phoneNumber" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	OrderID     string          `json:"orderId" validate:"required"`
}

type PushPaymentResult struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    *STKPushResponse `json:"data"`
}

type Service interface {
	InitializeCardPayment(ctx context.Context, in CardPaymentInput) (*CardPaymentResult, error)
	VerifyCardPayment(ctx context.Context, reference string) (*VerifyResult, error)
	InitiatePushPayment(ctx context.Context, in PushPaymentInput) (*PushPaymentResult, error)
	HandlePushCallback(ctx context.Context, body []byte)
}

type Options struct {
	// FrontendURL receives the Paystack redirect at /payment/callback.
	FrontendURL string
	// BackendURL is where Safaricom posts STK results.
	BackendURL string
}

type service struct {
	orders OrderStore
	card   CardGateway
	push   PushGateway
	opts   Options
	now    func() time.Time
}

func NewService(orders OrderStore, card CardGateway, push PushGateway, opts Options) Service {
	return &service{
		orders: orders,
		card:   card,
		push:   push,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) InitializeCardPayment(ctx context.Context, in CardPaymentInput) (*CardPaymentResult, error) {
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, ErrInvalidEmail
	}
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, ErrInvalidOrderID
	}

	res, err := s.card.Initialize(ctx, InitializeRequest{
		Email:       in.Email,
		Amount:      in.Amount,
		OrderID:     in.OrderID,
		Metadata:    in.Metadata,
		CallbackURL: strings.TrimRight(s.opts.FrontendURL, "/") + "/payment/callback",
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", in.OrderID).Msg("payment: card initialization failed")
		return nil, err
	}

	log.Info().Str("order_id", in.OrderID).Str("reference", res.Reference).Msg("payment: card payment initialized")
	return &CardPaymentResult{
		Success:          true,
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Reference:        res.Reference,
	}, nil
}

// VerifyCardPayment asks the provider about a reference and, on success,
// marks the order named in the transaction metadata as paid. Calling it again
// rewrites the same values.
func (s *service) VerifyCardPayment(ctx context.Context, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrInvalidReference
	}

	v, err := s.card.Verify(ctx, reference)
	if err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("payment: card verification failed")
		return nil, err
	}
	if v.Status != "success" {
		log.Warn().Str("reference", reference).Str("status", v.Status).Msg("payment: card payment not successful")
		return nil, ErrPaymentNotSuccessful
	}

	paidAt := s.now()
	details := order.PaymentDetails{TransactionID: reference, PaymentDate: &paidAt}
	if err := s.orders.MarkPaymentCompleted(ctx, v.OrderID, details, false); err != nil {
		log.Error().Err(err).Str("order_id", v.OrderID).Str("reference", reference).Msg("payment: failed to record card payment")
		return nil, fmt.Errorf("payment: failed to record card payment: %w", err)
	}

	log.Info().Str("order_id", v.OrderID).Str("reference", reference).Msg("payment: card payment verified")
	return &VerifyResult{Success: true, Message: "Payment verified successfully", Data: v.Raw}, nil
}

func (s *service) InitiatePushPayment(ctx context.Context, in PushPaymentInput) (*PushPaymentResult, error) {
	phone, err := NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !docid.Valid(in.OrderID) {
		return nil, ErrInvalidOrderID
	}

	res, err := s.push.STKPush(ctx, STKPushRequest{
		Phone:       phone,
		Amount:      in.Amount.Ceil().IntPart(),
		OrderID:     in.OrderID,
		CallbackURL: strings.TrimRight(s.opts.BackendURL, "/") + "/api/payments/mpesa/callback",
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", in.OrderID).Msg("payment: stk push failed")
		return nil, err
	}

	if err := s.orders.MarkPaymentProcessing(ctx, in.OrderID, res.CheckoutRequestID, phone); err != nil {
		log.Error().Err(err).
			Str("order_id", in.OrderID).
			Str("checkout_request_id", res.CheckoutRequestID).
			Msg("payment: failed to record stk push")
		return nil, fmt.Errorf("payment: failed to record stk push: %w", err)
	}

	log.Info().
		Str("order_id", in.OrderID).
		Str("checkout_request_id", res.CheckoutRequestID).
		Msg("payment: stk push initiated")
	return &PushPaymentResult{Success: true, Message: "M-Pesa payment initiated", Data: res}, nil
}

type callbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

type stkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []callbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type callbackEnvelope struct {
	Body struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// HandlePushCallback reconciles an STK result with its order. It never
// fails: the provider only needs an acknowledgment, so problems are logged.
func (s *service) HandlePushCallback(ctx context.Context, body []byte) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("payment: panic while handling mpesa callback")
		}
	}()

	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Body.StkCallback == nil {
		log.Warn().Err(err).Msg("payment: malformed mpesa callback")
		return
	}
	cb := env.Body.StkCallback

	logger := log.With().
		Str("merchant_request_id", cb.MerchantRequestID).
		Str("checkout_request_id", cb.CheckoutRequestID).
		Int("result_code", cb.ResultCode).
		Logger()

	o, err := s.resolveOrder(ctx, cb)
	if err != nil {
		logger.Warn().Err(err).Msg("payment: no order matches mpesa callback")
		return
	}

	if cb.ResultCode != 0 {
		if err := s.orders.MarkPaymentFailed(ctx, o.ID); err != nil {
			logger.Error().Err(err).Str("order_id", o.ID).Msg("payment: failed to record failed mpesa payment")
			return
		}
		logger.Info().Str("order_id", o.ID).Str("result_desc", cb.ResultDesc).Msg("payment: mpesa payment failed")
		return
	}

	paidAt := s.now()
	details := order.PaymentDetails{PaymentDate: &paidAt}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if amount, ok := numberValue(item.Value); ok {
				details.Amount = &amount
			}
		case "MpesaReceiptNumber":
			details.TransactionID = stringValue(item.Value)
		case "PhoneNumber":
			details.PhoneNumber = stringValue(item.Value)
		}
	}

	if err := s.orders.MarkPaymentCompleted(ctx, o.ID, details, true); err != nil {
		logger.Error().Err(err).Str("order_id", o.ID).Msg("payment: failed to record mpesa payment")
		return
	}
	logger.Info().Str("order_id", o.ID).Str("receipt", details.TransactionID).Msg("payment: mpesa payment completed")
}

// resolveOrder prefers an ORDER-<id> reference embedded in the provider
// identifiers and falls back to the checkout id stored at initiation.
func (s *service) resolveOrder(ctx context.Context, cb *stkCallback) (*order.Order, error) {
	for _, ref := range []string{cb.MerchantRequestID, cb.CheckoutRequestID} {
		id, ok := ExtractOrderID(ref)
		if !ok {
			continue
		}
		o, err := s.orders.GetByID(ctx, strings.ToLower(id))
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, order.ErrOrderNotFound) {
			return nil, err
		}
	}

	for _, txID := range []string{cb.CheckoutRequestID, cb.MerchantRequestID} {
		if txID == "" {
			continue
		}
		o, err := s.orders.FindByTransactionID(ctx, txID)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, order.ErrOrderNotFound) {
			return nil, err
		}
	}
	return nil, order.ErrOrderNotFound
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	}
	return 0, false
}

// stringValue renders callback values; Safaricom sends phone numbers as JSON
// numbers.
func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return decimal.NewFromFloat(x).String()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
