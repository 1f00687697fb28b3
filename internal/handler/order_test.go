package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/order"
)

const orderID = "64b0c2f1a9e4d3b2c1a0ef99"

func newOrderRouter(svc order.Service, admin func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	NewOrderHandler(svc).RegisterRoutes(r, admin)
	return r
}

func TestOrderHandler_Create(t *testing.T) {
	validBody := `{
		"items": [{"product": "64b0c2f1a9e4d3b2c1a0ef12", "quantity": 2}],
		"shippingAddress": {"street": "12 Moi Ave", "city": "Nairobi", "county": "Nairobi", "phone": "0712345678"},
		"paymentMethod": "mpesa"
	}`

	tests := []struct {
		name           string
		body           string
		setup          func(svc *MockOrderService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success",
			body: validBody,
			setup: func(svc *MockOrderService) {
				svc.On("CreateOrder", mock.Anything, mock.MatchedBy(func(in order.CreateInput) bool {
					return len(in.Items) == 1 && in.Items[0].Quantity == 2 && in.PaymentMethod == order.MethodMpesa
				})).Return(&order.Order{ID: orderID, OrderNumber: "ORD-241015-0042"}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "empty_items",
			body:           `{"items": [], "shippingAddress": {"street": "s", "city": "c", "county": "k", "phone": "0712345678"}, "paymentMethod": "card"}`,
			setup:          func(svc *MockOrderService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Validation failed","details":[{"field":"items","message":"must be at least 1"}]}`,
		},
		{
			name: "unknown_product",
			body: validBody,
			setup: func(svc *MockOrderService) {
				svc.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, order.ErrUnknownProduct).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"` + order.ErrUnknownProduct.Error() + `"}`,
		},
		{
			name: "store_failure",
			body: validBody,
			setup: func(svc *MockOrderService) {
				svc.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, errors.New("tx aborted")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Failed to create order"}`,
		},
		{
			name:           "invalid_json",
			body:           `{invalid json}`,
			setup:          func(svc *MockOrderService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockOrderService)
			tt.setup(svc)

			rr := httptest.NewRecorder()
			newOrderRouter(svc, allowAll).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_GetByNumberAndID(t *testing.T) {
	created := time.Date(2024, 10, 15, 9, 30, 0, 0, time.UTC)
	svc := new(MockOrderService)
	svc.On("GetOrderByNumber", mock.Anything, "ord-241015-0042").
		Return(&order.Order{ID: orderID, OrderNumber: "ORD-241015-0042", CreatedAt: created}, nil).Once()
	svc.On("GetOrderByID", mock.Anything, orderID).Return(nil, order.ErrOrderNotFound).Once()
	svc.On("GetOrderByID", mock.Anything, "xyz").Return(nil, order.ErrInvalidID).Once()

	router := newOrderRouter(svc, allowAll)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/number/ord-241015-0042", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"orderNumber":"ORD-241015-0042"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/"+orderID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Order not found"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/xyz", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	svc.AssertExpectations(t)
}

func TestOrderHandler_ByUser(t *testing.T) {
	userID := uuid.Must(uuid.FromString("123e4567-e89b-12d3-a456-426614174000"))

	svc := new(MockOrderService)
	svc.On("GetOrdersByUserID", mock.Anything, userID).Return([]order.Order{{ID: orderID, User: &userID}}, nil).Once()
	router := newOrderRouter(svc, allowAll)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders?user_id="+userID.String(), nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), userID.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders?user_id=not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid user ID format"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	svc.AssertExpectations(t)
}

func TestOrderHandler_AdminList(t *testing.T) {
	svc := new(MockOrderService)
	svc.On("ListOrders", mock.Anything, 3, 50).Return(&order.Page{
		Data: []order.Order{},
		Meta: order.PageMeta{Page: 3, Limit: 50, Total: 101, TotalPages: 3},
	}, nil).Once()

	rr := httptest.NewRecorder()
	newOrderRouter(svc, allowAll).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders?page=3&limit=50", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[],"meta":{"page":3,"limit":50,"total":101,"totalPages":3}}`, rr.Body.String())
	svc.AssertExpectations(t)

	rr = httptest.NewRecorder()
	newOrderRouter(svc, denyAll).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
	}{
		{name: "shipped", body: `{"status":"shipped","trackingNumber":"G4S-1029"}`, expectedStatus: http.StatusOK},
		{name: "bad_transition", body: `{"status":"pending"}`, err: order.ErrInvalidStatusTransition, expectedStatus: http.StatusBadRequest},
		{name: "missing", body: `{"status":"cancelled","reason":"duplicate"}`, err: order.ErrOrderNotFound, expectedStatus: http.StatusNotFound},
		{name: "unknown_status", body: `{"status":"lost"}`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockOrderService)
			if tt.name != "unknown_status" {
				if tt.err != nil {
					svc.On("UpdateOrderStatus", mock.Anything, orderID, mock.Anything).Return(nil, tt.err).Once()
				} else {
					svc.On("UpdateOrderStatus", mock.Anything, orderID, order.StatusChange{
						Status:         order.StatusShipped,
						TrackingNumber: "G4S-1029",
					}).Return(&order.Order{ID: orderID, OrderStatus: order.StatusShipped}, nil).Once()
				}
			}

			rr := httptest.NewRecorder()
			newOrderRouter(svc, allowAll).ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/admin/orders/"+orderID+"/status", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}
