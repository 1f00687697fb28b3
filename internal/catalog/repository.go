package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSlugExists      = errors.New("product with this slug already exists")
	ErrInvalidID       = errors.New("invalid product id")
	ErrInvalidCategory = errors.New("invalid product category")
	ErrInvalidQuery    = errors.New("invalid product query")
)

type Repository interface {
	Create(ctx context.Context, product *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q Query) ([]Product, int, error)
	CountByCategory(ctx context.Context) (map[Category]int, error)
	CountLowStock(ctx context.Context) (int, error)
}

const productColumns = `id, name, slug, description, detailed_description, price, discount_price,
	category, subcategory, images, ingredients, benefits, usage_instructions, stock_quantity,
	min_stock_level, is_featured, is_new_arrival, rating, tags, meta_title, meta_description,
	created_by, created_at, updated_at`

type sqlxRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlxRepository{db: db}
}

func (r *sqlxRepository) Create(ctx context.Context, product *Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (:id, :name, :slug, :description, :detailed_description, :price, :discount_price,
			:category, :subcategory, :images, :ingredients, :benefits, :usage_instructions, :stock_quantity,
			:min_stock_level, :is_featured, :is_new_arrival, :rating, :tags, :meta_title, :meta_description,
			:created_by, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return nil
}

func (r *sqlxRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r *sqlxRepository) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
}

func (r *sqlxRepository) getOne(ctx context.Context, query string, arg string) (*Product, error) {
	var product Product
	if err := r.db.GetContext(ctx, &product, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product %s: %w", arg, err)
	}
	product.normalize()
	return &product, nil
}

func (r *sqlxRepository) GetByIDs(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build products query: %w", err)
	}

	products := make([]Product, 0, len(ids))
	if err := r.db.SelectContext(ctx, &products, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select products by ids: %w", err)
	}
	for i := range products {
		products[i].normalize()
	}
	return products, nil
}

func (r *sqlxRepository) Update(ctx context.Context, product *Product) error {
	query := `
		UPDATE products SET
			name = :name, slug = :slug, description = :description,
			detailed_description = :detailed_description, price = :price, discount_price = :discount_price,
			category = :category, subcategory = :subcategory, images = :images, ingredients = :ingredients,
			benefits = :benefits, usage_instructions = :usage_instructions, stock_quantity = :stock_quantity,
			min_stock_level = :min_stock_level, is_featured = :is_featured, is_new_arrival = :is_new_arrival,
			rating = :rating, tags = :tags, meta_title = :meta_title, meta_description = :meta_description,
			updated_at = :updated_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, product)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("repository: failed to update product %s: %w", product.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for product %s: %w", product.ID, err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *sqlxRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for product %s: %w", id, err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// List runs the page query and the count query concurrently.
func (r *sqlxRepository) List(ctx context.Context, q Query) ([]Product, int, error) {
	where, args := q.whereClause()
	order, _ := sortClause(q.Sort)

	pageQuery := r.db.Rebind(`SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY ` + order + ` LIMIT ? OFFSET ?`)
	pageArgs := append(append([]any{}, args...), q.Limit, q.offset())
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM products` + where)

	var (
		products []Product
		total    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items := make([]Product, 0, q.Limit)
		if err := r.db.SelectContext(gctx, &items, pageQuery, pageArgs...); err != nil {
			return fmt.Errorf("repository: failed to list products: %w", err)
		}
		products = items
		return nil
	})
	g.Go(func() error {
		if err := r.db.GetContext(gctx, &total, countQuery, args...); err != nil {
			return fmt.Errorf("repository: failed to count products: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("repository: product listing failed")
		return nil, 0, err
	}

	for i := range products {
		products[i].normalize()
	}
	return products, total, nil
}

func (r *sqlxRepository) CountByCategory(ctx context.Context) (map[Category]int, error) {
	rows := []struct {
		Category Category `db:"category"`
		Count    int      `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT category, COUNT(*) AS count FROM products GROUP BY category`); err != nil {
		return nil, fmt.Errorf("repository: failed to count products by category: %w", err)
	}

	counts := make(map[Category]int, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

func (r *sqlxRepository) CountLowStock(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products WHERE stock_quantity <= min_stock_level`); err != nil {
		return 0, fmt.Errorf("repository: failed to count low stock products: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
