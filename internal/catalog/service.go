package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/docid"
)

type Service interface {
	ListProducts(ctx context.Context, q Query) (*Page, error)
	GetProduct(ctx context.Context, idOrSlug string) (*Product, error)
	CreateProduct(ctx context.Context, product *Product) (*Product, error)
	UpdateProduct(ctx context.Context, id string, patch Patch) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]CategorySummary, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error)
	CountLowStock(ctx context.Context) (int, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) ListProducts(ctx context.Context, q Query) (*Page, error) {
	if q.Category != "" && !q.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidQuery, q.Category)
	}
	q.normalize()

	products, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}

	return &Page{
		Data: products,
		Meta: PageMeta{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: totalPages(total, q.Limit),
		},
	}, nil
}

// GetProduct resolves ids first and falls back to slugs, so storefront
// links can use either.
func (s *service) GetProduct(ctx context.Context, idOrSlug string) (*Product, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, ErrInvalidID
	}

	var (
		product *Product
		err     error
	)
	if docid.Valid(idOrSlug) {
		product, err = s.repo.GetByID(ctx, idOrSlug)
	} else {
		product, err = s.repo.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Str("product_ref", idOrSlug).Msg("service: failed to fetch product")
		return nil, fmt.Errorf("service: failed to fetch product: %w", err)
	}
	return product, nil
}

func (s *service) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	if !product.Category.Valid() {
		return nil, ErrInvalidCategory
	}

	now := s.now()
	product.ID = docid.New()
	product.Slug = strings.TrimSpace(product.Slug)
	product.CreatedAt = now
	product.UpdatedAt = now
	product.normalize()

	if err := s.repo.Create(ctx, product); err != nil {
		if errors.Is(err, ErrSlugExists) {
			return nil, ErrSlugExists
		}
		log.Error().Err(err).Str("slug", product.Slug).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Str("product_id", product.ID).Str("slug", product.Slug).Msg("service: product created")
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, id string, patch Patch) (*Product, error) {
	if !docid.Valid(id) {
		return nil, ErrInvalidID
	}
	if patch.Category != nil && !patch.Category.Valid() {
		return nil, ErrInvalidCategory
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to load product for update: %w", err)
	}

	patch.apply(current)
	current.UpdatedAt = s.now()
	current.normalize()

	if err := s.repo.Update(ctx, current); err != nil {
		switch {
		case errors.Is(err, ErrProductNotFound):
			return nil, ErrProductNotFound
		case errors.Is(err, ErrSlugExists):
			return nil, ErrSlugExists
		}
		log.Error().Err(err).Str("product_id", id).Msg("service: failed to update product in repository")
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}

	log.Info().Str("product_id", id).Msg("service: product updated")
	return current, nil
}

func (s *service) DeleteProduct(ctx context.Context, id string) error {
	if !docid.Valid(id) {
		return ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		log.Error().Err(err).Str("product_id", id).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}
	log.Info().Str("product_id", id).Msg("service: product deleted")
	return nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategorySummary, error) {
	counts, err := s.repo.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}

	out := make([]CategorySummary, len(categoryInfo))
	for i, c := range categoryInfo {
		c.ProductCount = counts[c.ID]
		out[i] = c
	}
	return out, nil
}

// GetProductsByIDs returns the found products keyed by id; missing ids are
// simply absent from the map.
func (s *service) GetProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !docid.Valid(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	products, err := s.repo.GetByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch products by ids: %w", err)
	}

	out := make(map[string]Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (s *service) CountLowStock(ctx context.Context) (int, error) {
	n, err := s.repo.CountLowStock(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: failed to count low stock: %w", err)
	}
	return n, nil
}
