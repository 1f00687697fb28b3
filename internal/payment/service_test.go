package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/config"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/order"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/payment"
)

const orderID = "64b0c1d2e3f4a5b6c7d8ef12"

// memOrders is an in-memory OrderStore with the same blind-overwrite
// semantics as the Postgres repository.
type memOrders struct {
	mu       sync.Mutex
	orders   map[string]*order.Order
	failNext error
}

func newMemOrders(ids ...string) *memOrders {
	m := &memOrders{orders: make(map[string]*order.Order)}
	for _, id := range ids {
		m.orders[id] = &order.Order{ID: id, PaymentStatus: order.PaymentPending, OrderStatus: order.StatusPending}
	}
	return m
}

func (m *memOrders) get(id string) order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) FindByTransactionID(_ context.Context, txID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentDetails.TransactionID == txID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *memOrders) MarkPaymentProcessing(_ context.Context, id, txID, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.PaymentStatus = order.PaymentProcessing
	o.PaymentDetails.TransactionID = txID
	o.PaymentDetails.PhoneNumber = phone
	return nil
}

func (m *memOrders) MarkPaymentCompleted(_ context.Context, id string, d order.PaymentDetails, confirm bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.PaymentStatus = order.PaymentCompleted
	if d.TransactionID != "" {
		o.PaymentDetails.TransactionID = d.TransactionID
	}
	if d.PhoneNumber != "" {
		o.PaymentDetails.PhoneNumber = d.PhoneNumber
	}
	if d.Amount != nil {
		o.PaymentDetails.Amount = d.Amount
	}
	if d.PaymentDate != nil {
		o.PaymentDetails.PaymentDate = d.PaymentDate
	}
	if confirm {
		o.OrderStatus = order.StatusConfirmed
	}
	return nil
}

func (m *memOrders) MarkPaymentFailed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.PaymentStatus = order.PaymentFailed
	return nil
}

type MockCardGateway struct {
	mock.Mock
}

func (m *MockCardGateway) Initialize(ctx context.Context, req payment.InitializeRequest) (*payment.InitializeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.InitializeResult), args.Error(1)
}

func (m *MockCardGateway) Verify(ctx context.Context, reference string) (*payment.Verification, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Verification), args.Error(1)
}

type MockPushGateway struct {
	mock.Mock
}

func (m *MockPushGateway) STKPush(ctx context.Context, req payment.STKPushRequest) (*payment.STKPushResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.STKPushResponse), args.Error(1)
}

var opts = payment.Options{FrontendURL: "https://shop.example/", BackendURL: "https://api.example"}

func successCallback(merchantRequestID, checkoutRequestID string) []byte {
	return []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"` + merchantRequestID + `",
		"CheckoutRequestID":"` + checkoutRequestID + `",
		"ResultCode":0,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":500},
			{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
			{"Name":"TransactionDate","Value":20191219102115},
			{"Name":"PhoneNumber","Value":254712345678}
		]}}}}`)
}

func failedCallback(merchantRequestID, checkoutRequestID string) []byte {
	return []byte(`{"Body":{"stkCallback":{
		"MerchantRequestID":"` + merchantRequestID + `",
		"CheckoutRequestID":"` + checkoutRequestID + `",
		"ResultCode":1032,
		"ResultDesc":"Request cancelled by user"}}}`)
}

func TestInitializeCardPayment(t *testing.T) {
	card := new(MockCardGateway)
	svc := payment.NewService(newMemOrders(orderID), card, new(MockPushGateway), opts)

	card.On("Initialize", mock.Anything, mock.MatchedBy(func(req payment.InitializeRequest) bool {
		return req.CallbackURL == "https://shop.example/payment/callback" && req.OrderID == orderID
	})).Return(&payment.InitializeResult{AuthorizationURL: "https://checkout.paystack.com/x", AccessCode: "x", Reference: "ref_x"}, nil).Once()

	res, err := svc.InitializeCardPayment(context.Background(), payment.CardPaymentInput{
		Email:   "achieng@example.com",
		Amount:  decimal.NewFromInt(1500),
		OrderID: orderID,
	})
	require.NoError(t, err)
	assert.Equal(t, &payment.CardPaymentResult{
		Success:          true,
		AuthorizationURL: "https://checkout.paystack.com/x",
		AccessCode:       "x",
		Reference:        "ref_x",
	}, res)
	card.AssertExpectations(t)
}

func TestInitializeCardPayment_Validation(t *testing.T) {
	card := new(MockCardGateway)
	svc := payment.NewService(newMemOrders(), card, new(MockPushGateway), opts)

	tests := []struct {
		name string
		in   payment.CardPaymentInput
		want error
	}{
		{name: "bad_email", in: payment.CardPaymentInput{Email: "nope", Amount: decimal.NewFromInt(1), OrderID: orderID}, want: payment.ErrInvalidEmail},
		{name: "zero_amount", in: payment.CardPaymentInput{Email: "a@b.co", OrderID: orderID}, want: payment.ErrInvalidAmount},
		{name: "no_order", in: payment.CardPaymentInput{Email: "a@b.co", Amount: decimal.NewFromInt(1)}, want: payment.ErrInvalidOrderID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.InitializeCardPayment(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	card.AssertNotCalled(t, "Initialize", mock.Anything, mock.Anything)
}

func TestVerifyCardPayment_SuccessIsIdempotent(t *testing.T) {
	store := newMemOrders(orderID)
	card := new(MockCardGateway)
	svc := payment.NewService(store, card, new(MockPushGateway), opts)

	card.On("Verify", mock.Anything, "ref_1").Return(&payment.Verification{
		Status:  "success",
		OrderID: orderID,
		Raw:     json.RawMessage(`{"status":"success"}`),
	}, nil).Twice()

	res, err := svc.VerifyCardPayment(context.Background(), "ref_1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Payment verified successfully", res.Message)

	first := store.get(orderID)
	assert.Equal(t, order.PaymentCompleted, first.PaymentStatus)
	assert.Equal(t, "ref_1", first.PaymentDetails.TransactionID)
	require.NotNil(t, first.PaymentDetails.PaymentDate)
	assert.Equal(t, order.StatusPending, first.OrderStatus)

	_, err = svc.VerifyCardPayment(context.Background(), "ref_1")
	require.NoError(t, err)
	second := store.get(orderID)
	assert.Equal(t, first.PaymentStatus, second.PaymentStatus)
	assert.Equal(t, first.PaymentDetails.TransactionID, second.PaymentDetails.TransactionID)
	card.AssertExpectations(t)
}

func TestVerifyCardPayment_NotSuccessful(t *testing.T) {
	store := newMemOrders(orderID)
	card := new(MockCardGateway)
	svc := payment.NewService(store, card, new(MockPushGateway), opts)

	card.On("Verify", mock.Anything, "ref_2").Return(&payment.Verification{Status: "abandoned", OrderID: orderID}, nil).Once()

	_, err := svc.VerifyCardPayment(context.Background(), "ref_2")
	require.ErrorIs(t, err, payment.ErrPaymentNotSuccessful)
	assert.Equal(t, order.PaymentPending, store.get(orderID).PaymentStatus)
}

func TestVerifyCardPayment_StorageFailureSurfaces(t *testing.T) {
	store := newMemOrders(orderID)
	store.failNext = errors.New("connection refused")
	card := new(MockCardGateway)
	svc := payment.NewService(store, card, new(MockPushGateway), opts)

	card.On("Verify", mock.Anything, "ref_3").Return(&payment.Verification{Status: "success", OrderID: orderID}, nil).Once()

	_, err := svc.VerifyCardPayment(context.Background(), "ref_3")
	require.Error(t, err)
	assert.NotErrorIs(t, err, payment.ErrPaymentNotSuccessful)
}

func TestInitiatePushPayment(t *testing.T) {
	store := newMemOrders(orderID)
	push := new(MockPushGateway)
	svc := payment.NewService(store, new(MockCardGateway), push, opts)

	push.On("STKPush", mock.Anything, payment.STKPushRequest{
		Phone:       "254712345678",
		Amount:      500,
		OrderID:     orderID,
		CallbackURL: "https://api.example/api/payments/mpesa/callback",
	}).Return(&payment.STKPushResponse{MerchantRequestID: "29115-1", CheckoutRequestID: "ws_CO_1"}, nil).Once()

	res, err := svc.InitiatePushPayment(context.Background(), payment.PushPaymentInput{
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(500),
		OrderID:     orderID,
	})
	require.NoError(t, err)
	assert.Equal(t, "M-Pesa payment initiated", res.Message)

	stored := store.get(orderID)
	assert.Equal(t, order.PaymentProcessing, stored.PaymentStatus)
	assert.Equal(t, "ws_CO_1", stored.PaymentDetails.TransactionID)
	assert.Equal(t, "254712345678", stored.PaymentDetails.PhoneNumber)
	push.AssertExpectations(t)
}

func TestInitiatePushPayment_Validation(t *testing.T) {
	push := new(MockPushGateway)
	svc := payment.NewService(newMemOrders(orderID), new(MockCardGateway), push, opts)

	_, err := svc.InitiatePushPayment(context.Background(), payment.PushPaymentInput{PhoneNumber: "0712", Amount: decimal.NewFromInt(1), OrderID: orderID})
	assert.ErrorIs(t, err, payment.ErrInvalidPhoneNumber)

	_, err = svc.InitiatePushPayment(context.Background(), payment.PushPaymentInput{PhoneNumber: "0712345678", OrderID: orderID})
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)

	_, err = svc.InitiatePushPayment(context.Background(), payment.PushPaymentInput{PhoneNumber: "0712345678", Amount: decimal.NewFromInt(1), OrderID: "42"})
	assert.ErrorIs(t, err, payment.ErrInvalidOrderID)

	push.AssertNotCalled(t, "STKPush", mock.Anything, mock.Anything)
}

func TestHandlePushCallback_ResolvesByReference(t *testing.T) {
	store := newMemOrders(orderID)
	svc := payment.NewService(store, new(MockCardGateway), new(MockPushGateway), opts)

	svc.HandlePushCallback(context.Background(), successCallback("ORDER-"+orderID, "ws_CO_unknown"))

	got := store.get(orderID)
	assert.Equal(t, order.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, got.OrderStatus)
	assert.Equal(t, "NLJ7RT61SV", got.PaymentDetails.TransactionID)
	assert.Equal(t, "254712345678", got.PaymentDetails.PhoneNumber)
	require.NotNil(t, got.PaymentDetails.Amount)
	assert.Equal(t, 500.0, *got.PaymentDetails.Amount)
}

func TestHandlePushCallback_FallsBackToTransactionID(t *testing.T) {
	store := newMemOrders(orderID)
	require.NoError(t, store.MarkPaymentProcessing(context.Background(), orderID, "ws_CO_191220191020363925", "254712345678"))
	svc := payment.NewService(store, new(MockCardGateway), new(MockPushGateway), opts)

	svc.HandlePushCallback(context.Background(), successCallback("29115-34620561-1", "ws_CO_191220191020363925"))

	got := store.get(orderID)
	assert.Equal(t, order.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, got.OrderStatus)
}

func TestHandlePushCallback_ReferenceToMissingOrderFallsBack(t *testing.T) {
	store := newMemOrders(orderID)
	require.NoError(t, store.MarkPaymentProcessing(context.Background(), orderID, "ws_CO_9", "254712345678"))
	svc := payment.NewService(store, new(MockCardGateway), new(MockPushGateway), opts)

	svc.HandlePushCallback(context.Background(), failedCallback("ORDER-aaaaaaaaaaaaaaaaaaaaaaaa", "ws_CO_9"))

	assert.Equal(t, order.PaymentFailed, store.get(orderID).PaymentStatus)
	assert.Equal(t, order.StatusPending, store.get(orderID).OrderStatus)
}

func TestHandlePushCallback_NoMatchMutatesNothing(t *testing.T) {
	store := newMemOrders(orderID)
	svc := payment.NewService(store, new(MockCardGateway), new(MockPushGateway), opts)

	assert.NotPanics(t, func() {
		svc.HandlePushCallback(context.Background(), successCallback("29115-1", "ws_CO_nobody"))
	})
	assert.Equal(t, order.PaymentPending, store.get(orderID).PaymentStatus)
}

func TestHandlePushCallback_SwallowsBadInput(t *testing.T) {
	store := newMemOrders(orderID)
	store.failNext = errors.New("db down")
	svc := payment.NewService(store, new(MockCardGateway), new(MockPushGateway), opts)

	for _, body := range [][]byte{
		nil,
		[]byte(`not json`),
		[]byte(`{"Body":{}}`),
		[]byte(`{"Body":{"stkCallback":{"ResultCode":"zero"}}}`),
		successCallback("ORDER-"+orderID, "ws_CO_1"),
	} {
		assert.NotPanics(t, func() { svc.HandlePushCallback(context.Background(), body) })
	}
	assert.Equal(t, order.PaymentPending, store.get(orderID).PaymentStatus)
}

// Initiate for an order, then deliver the provider's success callback carrying
// the ORDER-<id> reference, through the real Daraja client.
func TestPushPaymentEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "254712345678", body["PhoneNumber"])
		assert.Equal(t, "ORDER-"+orderID, body["AccountReference"])
		_, _ = w.Write([]byte(`{"MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_e2e","ResponseCode":"0"}`))
	})
	daraja := httptest.NewServer(mux)
	defer daraja.Close()

	store := newMemOrders(orderID)
	mpesa := payment.NewMpesa(config.MpesaConfig{ShortCode: "174379", Passkey: "pk", BaseURL: daraja.URL}, daraja.Client())
	svc := payment.NewService(store, new(MockCardGateway), mpesa, opts)

	_, err := svc.InitiatePushPayment(context.Background(), payment.PushPaymentInput{
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(500),
		OrderID:     orderID,
	})
	require.NoError(t, err)

	afterInit := store.get(orderID)
	assert.Equal(t, order.PaymentProcessing, afterInit.PaymentStatus)
	assert.Equal(t, "254712345678", afterInit.PaymentDetails.PhoneNumber)

	svc.HandlePushCallback(context.Background(), successCallback("ORDER-"+orderID, "ws_CO_e2e"))

	final := store.get(orderID)
	assert.Equal(t, order.PaymentCompleted, final.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, final.OrderStatus)
}
