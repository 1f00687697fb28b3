package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

func (os OrderStatus) String() string {
	return string(os)
}

func (os OrderStatus) Valid() bool {
	_, ok := allowedTransitions[os]
	return ok
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

func (ps PaymentStatus) String() string {
	return string(ps)
}

type PaymentMethod string

const (
	MethodMpesa        PaymentMethod = "mpesa"
	MethodAirtelMoney  PaymentMethod = "airtel_money"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

func (pm PaymentMethod) Valid() bool {
	switch pm {
	case MethodMpesa, MethodAirtelMoney, MethodCard, MethodBankTransfer:
		return true
	}
	return false
}

// OrderItem is a snapshot of the product at the time the order was placed.
// Product keeps the live reference.
type OrderItem struct {
	Product       string   `json:"product"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	Quantity      int      `json:"quantity"`
	Image         string   `json:"image,omitempty"`
}

type ShippingAddress struct {
	Street               string `json:"street" validate:"required"`
	City                 string `json:"city" validate:"required"`
	County               string `json:"county" validate:"required"`
	PostalCode           string `json:"postalCode,omitempty"`
	Phone                string `json:"phone" validate:"required"`
	DeliveryInstructions string `json:"deliveryInstructions,omitempty"`
}

type BillingAddress struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	County     string `json:"county,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type PaymentDetails struct {
	TransactionID string     `json:"transactionId,omitempty"`
	PhoneNumber   string     `json:"phoneNumber,omitempty"`
	Amount        *float64   `json:"amount,omitempty"`
	PaymentDate   *time.Time `json:"paymentDate,omitempty"`
}

type Order struct {
	ID                 string          `json:"_id"`
	OrderNumber        string          `json:"orderNumber"`
	User               *uuid.UUID      `json:"user,omitempty"`
	Items              []OrderItem     `json:"items"`
	ShippingAddress    ShippingAddress `json:"shippingAddress"`
	BillingAddress     BillingAddress  `json:"billingAddress"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus"`
	PaymentDetails     PaymentDetails  `json:"paymentDetails"`
	OrderStatus        OrderStatus     `json:"orderStatus"`
	Subtotal           float64         `json:"subtotal"`
	ShippingFee        float64         `json:"shippingFee"`
	Tax                float64         `json:"tax"`
	Discount           float64         `json:"discount"`
	TotalAmount        float64         `json:"totalAmount"`
	TrackingNumber     string          `json:"trackingNumber,omitempty"`
	ShippingProvider   string          `json:"shippingProvider,omitempty"`
	EstimatedDelivery  *time.Time      `json:"estimatedDelivery,omitempty"`
	DeliveredAt        *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type ItemInput struct {
	ProductID string `json:"product" validate:"required,len=24,hexadecimal"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// CreateInput is what a customer submits at checkout. Prices are never taken
// from here.
type CreateInput struct {
	User            *uuid.UUID      `json:"user,omitempty"`
	Items           []ItemInput     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddress `json:"shippingAddress" validate:"required"`
	BillingAddress  BillingAddress  `json:"billingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod" validate:"required,oneof=mpesa airtel_money card bank_transfer"`
}

type StatusChange struct {
	Status           OrderStatus `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	Reason           string      `json:"reason,omitempty"`
	TrackingNumber   string      `json:"trackingNumber,omitempty"`
	ShippingProvider string      `json:"shippingProvider,omitempty"`
}

type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}

type Overview struct {
	Revenue   float64 `json:"revenue"`
	Orders    int     `json:"orders"`
	Customers int     `json:"customers"`
}

type CategoryShare struct {
	Category string  `json:"category"`
	Units    int     `json:"units"`
	Share    float64 `json:"share"`
}

type Analytics struct {
	Currency       string          `json:"currency"`
	RevenueToday   float64         `json:"revenueToday"`
	Revenue7Days   float64         `json:"revenue7Days"`
	Revenue30Days  float64         `json:"revenue30Days"`
	CategoryShares []CategoryShare `json:"categoryShares"`
}
