package site

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type Service interface {
	GetHero(ctx context.Context) (*Settings, error)
	UpdateHero(ctx context.Context, patch HeroPatch, updatedBy string) (*Settings, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetHero(ctx context.Context) (*Settings, error) {
	settings, err := s.repo.GetOrCreate(ctx, DefaultHero())
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load site settings")
		return nil, fmt.Errorf("service: failed to load hero: %w", err)
	}
	return settings, nil
}

// UpdateHero merges the supplied fields over the stored hero. Two admins
// saving at once: last write wins.
func (s *service) UpdateHero(ctx context.Context, patch HeroPatch, updatedBy string) (*Settings, error) {
	current, err := s.GetHero(ctx)
	if err != nil {
		return nil, err
	}

	hero := current.Hero
	patch.apply(&hero)

	saved, err := s.repo.SaveHero(ctx, hero, updatedBy)
	if err != nil {
		log.Error().Err(err).Str("updated_by", updatedBy).Msg("service: failed to save hero")
		return nil, fmt.Errorf("service: failed to update hero: %w", err)
	}

	log.Info().Str("updated_by", updatedBy).Msg("service: hero updated")
	return saved, nil
}
