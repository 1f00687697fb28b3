package site

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/docid"
)

var ErrSettingsNotFound = errors.New("site settings not found")

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	GetOrCreate(ctx context.Context, defaults Hero) (*Settings, error)
	SaveHero(ctx context.Context, hero Hero, updatedBy string) (*Settings, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const settingsColumns = `id, hero, updated_by, created_at, updated_at`

func (r *postgresRepository) Get(ctx context.Context) (*Settings, error) {
	s, err := scanSettings(r.db.QueryRow(ctx, `SELECT `+settingsColumns+` FROM site_settings WHERE singleton`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("repository: failed to select site settings: %w", err)
	}
	return s, nil
}

// GetOrCreate inserts the defaults when no row exists yet. Concurrent callers
// race on the singleton constraint and all read back the winner.
func (r *postgresRepository) GetOrCreate(ctx context.Context, defaults Hero) (*Settings, error) {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO site_settings (id, hero, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (singleton) DO NOTHING
	`, docid.New(), defaults, now)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to seed site settings: %w", err)
	}
	return r.Get(ctx)
}

func (r *postgresRepository) SaveHero(ctx context.Context, hero Hero, updatedBy string) (*Settings, error) {
	now := time.Now().UTC()
	s, err := scanSettings(r.db.QueryRow(ctx, `
		INSERT INTO site_settings (id, hero, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (singleton) DO UPDATE
		SET hero = EXCLUDED.hero, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
		RETURNING `+settingsColumns,
		docid.New(), hero, updatedBy, now))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to save hero: %w", err)
	}
	return s, nil
}

func scanSettings(row pgx.Row) (*Settings, error) {
	var s Settings
	if err := row.Scan(&s.ID, &s.Hero, &s.UpdatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if s.Hero.Stats == nil {
		s.Hero.Stats = []Stat{}
	}
	return &s, nil
}
