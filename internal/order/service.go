package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/catalog"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/docid"
)

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusConfirmed:  true,
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusConfirmed: {
		StatusProcessing: true,
		StatusShipped:    true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var (
	ErrInvalidID               = errors.New("invalid order id")
	ErrInvalidOrderNumber      = errors.New("invalid order number")
	ErrNoItems                 = errors.New("order must contain at least one item")
	ErrInvalidQuantity         = errors.New("order item quantity must be greater than zero")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
	ErrMissingPhone            = errors.New("shipping address phone is required")
	ErrUnknownProduct          = errors.New("product not found")
	ErrInvalidStatus           = errors.New("invalid order status")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

const (
	maxNumberAttempts = 3
	defaultPageLimit  = 20
	maxPageLimit      = 100
	currency          = "KES"
)

// ProductLookup prices line items at checkout.
type ProductLookup interface {
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type Service interface {
	CreateOrder(ctx context.Context, input CreateInput) (*Order, error)
	GetOrderByID(ctx context.Context, id string) (*Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context, page, limit int) (*Page, error)
	UpdateOrderStatus(ctx context.Context, id string, change StatusChange) (*Order, error)
	Overview(ctx context.Context) (*Overview, error)
	Analytics(ctx context.Context) (*Analytics, error)
}

type service struct {
	orderRepo   Repository
	products    ProductLookup
	shippingFee decimal.Decimal
	now         func() time.Time
	newNumber   func(time.Time) string
}

func NewService(orderRepo Repository, products ProductLookup, shippingFee float64) Service {
	return &service{
		orderRepo:   orderRepo,
		products:    products,
		shippingFee: decimal.NewFromFloat(shippingFee),
		now:         func() time.Time { return time.Now().UTC() },
		newNumber:   NewOrderNumber,
	}
}

func (s *service) CreateOrder(ctx context.Context, input CreateInput) (*Order, error) {
	if len(input.Items) == 0 {
		log.Warn().Msg("service: attempt to create order with no items")
		return nil, ErrNoItems
	}
	if !input.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if strings.TrimSpace(input.ShippingAddress.Phone) == "" {
		return nil, ErrMissingPhone
	}

	ids := make([]string, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load products for order")
		return nil, fmt.Errorf("service: failed to load products: %w", err)
	}

	items := make([]OrderItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for _, in := range input.Items {
		p, ok := products[in.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, in.ProductID)
		}
		items = append(items, OrderItem{
			Product:       p.ID,
			Name:          p.Name,
			Price:         p.Price,
			DiscountPrice: p.DiscountPrice,
			Quantity:      in.Quantity,
			Image:         p.Images.First(),
		})
		line := decimal.NewFromFloat(p.EffectivePrice()).Mul(decimal.NewFromInt(int64(in.Quantity)))
		subtotal = subtotal.Add(line)
	}

	subtotal = subtotal.Round(2)
	tax := decimal.Zero
	discount := decimal.Zero
	total := subtotal.Add(s.shippingFee).Add(tax).Sub(discount).Round(2)

	now := s.now()
	order := &Order{
		ID:              docid.New(),
		User:            input.User,
		Items:           items,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   PaymentPending,
		OrderStatus:     StatusPending,
		Subtotal:        subtotal.InexactFloat64(),
		ShippingFee:     s.shippingFee.Round(2).InexactFloat64(),
		Tax:             tax.InexactFloat64(),
		Discount:        discount.InexactFloat64(),
		TotalAmount:     total.InexactFloat64(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for attempt := 1; ; attempt++ {
		order.OrderNumber = s.newNumber(now)
		err = s.orderRepo.Create(ctx, order)
		if err == nil {
			break
		}
		if errors.Is(err, ErrOrderNumberConflict) && attempt < maxNumberAttempts {
			log.Warn().Str("order_number", order.OrderNumber).Int("attempt", attempt).Msg("service: order number collision, retrying")
			continue
		}
		log.Error().Err(err).Str("order_id", order.ID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Float64("total_amount", order.TotalAmount).
		Msg("service: order created")
	return order, nil
}

func (s *service) GetOrderByID(ctx context.Context, id string) (*Order, error) {
	if !docid.Valid(id) {
		return nil, ErrInvalidID
	}
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("order_id", id).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return order, nil
}

func (s *service) GetOrderByNumber(ctx context.Context, number string) (*Order, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if !ValidOrderNumber(number) {
		return nil, ErrInvalidOrderNumber
	}
	order, err := s.orderRepo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order by number: %w", err)
	}
	return order, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.GetByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

func (s *service) ListOrders(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	orders, total, err := s.orderRepo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	pages := 1
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Page{
		Data: orders,
		Meta: PageMeta{Page: page, Limit: limit, Total: total, TotalPages: pages},
	}, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, id string, change StatusChange) (*Order, error) {
	if !docid.Valid(id) {
		return nil, ErrInvalidID
	}
	if !change.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("order_id", id).Stringer("new_status", change.Status).Msg("service: order not found, cannot update status")
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if current.OrderStatus == change.Status {
		log.Info().Str("order_id", id).Stringer("status", change.Status).Msg("service: order status is already the same, no update needed")
		return current, nil
	}

	if !allowedTransitions[current.OrderStatus][change.Status] {
		log.Warn().
			Str("order_id", id).
			Stringer("current_status", current.OrderStatus).
			Stringer("new_status", change.Status).
			Msg("service: invalid status transition attempt")
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, current.OrderStatus, change.Status)
	}

	oldStatus := current.OrderStatus
	now := s.now()
	current.OrderStatus = change.Status
	current.UpdatedAt = now
	if change.TrackingNumber != "" {
		current.TrackingNumber = change.TrackingNumber
	}
	if change.ShippingProvider != "" {
		current.ShippingProvider = change.ShippingProvider
	}
	switch change.Status {
	case StatusDelivered:
		current.DeliveredAt = &now
	case StatusCancelled:
		current.CancelledAt = &now
		current.CancellationReason = change.Reason
	}

	if err := s.orderRepo.UpdateStatus(ctx, current); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("order_id", id).Stringer("new_status", change.Status).Msg("service: failed to update order status in repository")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Str("order_id", id).Stringer("old_status", oldStatus).Stringer("new_status", change.Status).Msg("service: order status updated")
	return current, nil
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	overview, err := s.orderRepo.Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to compute overview: %w", err)
	}
	return overview, nil
}

func (s *service) Analytics(ctx context.Context) (*Analytics, error) {
	now := s.now()
	windows := []time.Duration{24 * time.Hour, 7 * 24 * time.Hour, 30 * 24 * time.Hour}
	revenue := make([]float64, len(windows))
	var units map[string]int

	g, gctx := errgroup.WithContext(ctx)
	for i, window := range windows {
		g.Go(func() error {
			sum, err := s.orderRepo.RevenueSince(gctx, now.Add(-window))
			if err != nil {
				return err
			}
			revenue[i] = sum
			return nil
		})
	}
	g.Go(func() error {
		var err error
		units, err = s.orderRepo.UnitsByCategory(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service: failed to compute analytics: %w", err)
	}

	return &Analytics{
		Currency:       currency,
		RevenueToday:   revenue[0],
		Revenue7Days:   revenue[1],
		Revenue30Days:  revenue[2],
		CategoryShares: categoryShares(units),
	}, nil
}

// categoryShares turns unit counts into percentages of all units sold,
// largest first.
func categoryShares(units map[string]int) []CategoryShare {
	total := 0
	for _, n := range units {
		total += n
	}

	shares := make([]CategoryShare, 0, len(units))
	for category, n := range units {
		share := decimal.Zero
		if total > 0 {
			share = decimal.NewFromInt(int64(n)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(total))).Round(1)
		}
		shares = append(shares, CategoryShare{Category: category, Units: n, Share: share.InexactFloat64()})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Units != shares[j].Units {
			return shares[i].Units > shares[j].Units
		}
		return shares[i].Category < shares[j].Category
	})
	return shares
}
