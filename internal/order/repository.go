package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNumberConflict = errors.New("order number already taken")
)

type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, int, error)
	UpdateStatus(ctx context.Context, order *Order) error

	MarkPaymentProcessing(ctx context.Context, id, transactionID, phone string) error
	MarkPaymentCompleted(ctx context.Context, id string, details PaymentDetails, confirmOrder bool) error
	MarkPaymentFailed(ctx context.Context, id string) error
	FindByTransactionID(ctx context.Context, transactionID string) (*Order, error)

	Overview(ctx context.Context) (*Overview, error)
	RevenueSince(ctx context.Context, since time.Time) (float64, error)
	UnitsByCategory(ctx context.Context) (map[string]int, error)
}

const orderColumns = `id, order_number, user_id, shipping_address, billing_address, payment_method,
	payment_status, transaction_id, payment_phone, payment_amount, payment_date, order_status,
	subtotal, shipping_fee, tax, discount, total_amount, tracking_number, shipping_provider,
	estimated_delivery, delivered_at, cancelled_at, cancellation_reason, created_at, updated_at`

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, order *Order) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Str("order_id", order.ID).Msg("repository: panic during order insert, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("order_id", order.ID).Msg("repository: failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("order_id", order.ID).Msg("repository: failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Str("order_id", order.ID).Msg("repository: failed to commit transaction")
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25)
	`
	_, err = tx.Exec(ctx, query,
		order.ID,
		order.OrderNumber,
		order.User,
		order.ShippingAddress,
		order.BillingAddress,
		string(order.PaymentMethod),
		string(order.PaymentStatus),
		order.PaymentDetails.TransactionID,
		order.PaymentDetails.PhoneNumber,
		order.PaymentDetails.Amount,
		order.PaymentDetails.PaymentDate,
		string(order.OrderStatus),
		order.Subtotal,
		order.ShippingFee,
		order.Tax,
		order.Discount,
		order.TotalAmount,
		order.TrackingNumber,
		order.ShippingProvider,
		order.EstimatedDelivery,
		order.DeliveredAt,
		order.CancelledAt,
		order.CancellationReason,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOrderNumberConflict
		}
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, item := range order.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, position, product_id, name, price, discount_price, quantity, image)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, order.ID, i, item.Product, item.Name, item.Price, item.DiscountPrice, item.Quantity, item.Image)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("repository: failed to insert order items for order %s: %w", order.ID, err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *postgresRepository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

// FindByTransactionID matches the stored provider reference verbatim. When
// several orders share one the most recent wins.
func (r *postgresRepository) FindByTransactionID(ctx context.Context, transactionID string) (*Order, error) {
	if transactionID == "" {
		return nil, ErrOrderNotFound
	}
	return r.getOne(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE transaction_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`, transactionID)
}

func (r *postgresRepository) getOne(ctx context.Context, query, arg string) (*Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %s: %w", arg, err)
	}

	orders := []Order{*order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to read orders for user id %s: %w", userID, err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]Order, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to list orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to read orders: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *postgresRepository) attachItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[string]int, len(orders))
	ids := make([]string, len(orders))
	for i := range orders {
		orders[i].Items = make([]OrderItem, 0)
		index[orders[i].ID] = i
		ids[i] = orders[i].ID
	}

	rows, err := r.db.Query(ctx, `
		SELECT order_id, product_id, name, price, discount_price, quantity, image
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    OrderItem
		)
		if err := rows.Scan(&orderID, &item.Product, &item.Name, &item.Price, &item.DiscountPrice, &item.Quantity, &item.Image); err != nil {
			return fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating order items: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, order *Order) error {
	query := `
		UPDATE orders
		SET order_status = $1, tracking_number = $2, shipping_provider = $3, estimated_delivery = $4,
			delivered_at = $5, cancelled_at = $6, cancellation_reason = $7, updated_at = $8
		WHERE id = $9
	`
	cmdTag, err := r.db.Exec(ctx, query,
		string(order.OrderStatus),
		order.TrackingNumber,
		order.ShippingProvider,
		order.EstimatedDelivery,
		order.DeliveredAt,
		order.CancelledAt,
		order.CancellationReason,
		order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Stringer("new_status", order.OrderStatus).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", order.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) MarkPaymentProcessing(ctx context.Context, id, transactionID, phone string) error {
	return r.exec(ctx, "mark payment processing", id, `
		UPDATE orders
		SET payment_status = $1, transaction_id = $2, payment_phone = $3, updated_at = NOW()
		WHERE id = $4
	`, string(PaymentProcessing), transactionID, phone, id)
}

// MarkPaymentCompleted overwrites the payment details; empty fields keep the
// stored value.
func (r *postgresRepository) MarkPaymentCompleted(ctx context.Context, id string, details PaymentDetails, confirmOrder bool) error {
	return r.exec(ctx, "mark payment completed", id, `
		UPDATE orders
		SET payment_status = $1,
			transaction_id = COALESCE(NULLIF($2, ''), transaction_id),
			payment_phone = COALESCE(NULLIF($3, ''), payment_phone),
			payment_amount = COALESCE($4, payment_amount),
			payment_date = COALESCE($5, payment_date),
			order_status = CASE WHEN $6 THEN $7 ELSE order_status END,
			updated_at = NOW()
		WHERE id = $8
	`, string(PaymentCompleted), details.TransactionID, details.PhoneNumber, details.Amount,
		details.PaymentDate, confirmOrder, string(StatusConfirmed), id)
}

func (r *postgresRepository) MarkPaymentFailed(ctx context.Context, id string) error {
	return r.exec(ctx, "mark payment failed", id, `
		UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2
	`, string(PaymentFailed), id)
}

func (r *postgresRepository) exec(ctx context.Context, op, id, query string, args ...any) error {
	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Str("order_id", id).Msgf("repository: failed to %s", op)
		return fmt.Errorf("repository: failed to %s for order %s: %w", op, id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'completed'), 0)::float8,
			COUNT(*),
			COUNT(DISTINCT user_id)
		FROM orders
	`).Scan(&o.Revenue, &o.Orders, &o.Customers)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to compute order overview: %w", err)
	}
	return &o, nil
}

func (r *postgresRepository) RevenueSince(ctx context.Context, since time.Time) (float64, error) {
	var revenue float64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)::float8
		FROM orders
		WHERE payment_status = 'completed' AND COALESCE(payment_date, created_at) >= $1
	`, since).Scan(&revenue)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to sum revenue since %s: %w", since.Format(time.RFC3339), err)
	}
	return revenue, nil
}

func (r *postgresRepository) UnitsByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.category, SUM(oi.quantity)::int
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.order_status <> 'cancelled'
		GROUP BY p.category
	`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query units by category: %w", err)
	}
	defer rows.Close()

	units := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("repository: failed to scan units by category: %w", err)
		}
		units[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating units by category: %w", err)
	}
	return units, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o             Order
		paymentMethod string
		paymentStatus string
		orderStatus   string
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.User,
		&o.ShippingAddress,
		&o.BillingAddress,
		&paymentMethod,
		&paymentStatus,
		&o.PaymentDetails.TransactionID,
		&o.PaymentDetails.PhoneNumber,
		&o.PaymentDetails.Amount,
		&o.PaymentDetails.PaymentDate,
		&orderStatus,
		&o.Subtotal,
		&o.ShippingFee,
		&o.Tax,
		&o.Discount,
		&o.TotalAmount,
		&o.TrackingNumber,
		&o.ShippingProvider,
		&o.EstimatedDelivery,
		&o.DeliveredAt,
		&o.CancelledAt,
		&o.CancellationReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentMethod = PaymentMethod(paymentMethod)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	o.OrderStatus = OrderStatus(orderStatus)
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
