package service

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/realmkeeper/internal/entity"
	permissionService "anoa.com/realmkeeper/internal/modules/permission/service"
	"anoa.com/realmkeeper/internal/modules/rating/dto"
	"anoa.com/realmkeeper/internal/modules/rating/repository"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	traitRepo "anoa.com/realmkeeper/internal/modules/trait/repository"
	"anoa.com/realmkeeper/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RatingService interface {
	UpsertRating(ctx context.Context, userID, characterID, traitID uuid.UUID, value int) (*dto.RatingResponse, error)
	// DeleteRating is idempotent and publishes only when a rating was removed.
	DeleteRating(ctx context.Context, userID, characterID, traitID uuid.UUID) error
	ListByCharacter(ctx context.Context, userID, characterID uuid.UUID) ([]dto.RatingResponse, error)
}

type ratingService struct {
	repo      repository.RatingRepository
	traits    traitRepo.TraitRepository
	evaluator permissionService.Evaluator
	publisher realtime.Publisher
}

func NewRatingService(repo repository.RatingRepository, traits traitRepo.TraitRepository, evaluator permissionService.Evaluator, publisher realtime.Publisher) RatingService {
	return &ratingService{repo: repo, traits: traits, evaluator: evaluator, publisher: publisher}
}

func (s *ratingService) UpsertRating(ctx context.Context, userID, characterID, traitID uuid.UUID, value int) (*dto.RatingResponse, error) {
	character, err := s.evaluator.Require(ctx, characterID, userID, entity.ScopeRatings, permissionService.ActionEdit)
	if err != nil {
		return nil, err
	}
	if value < MinValue || value > MaxValue {
		return nil, apperror.Validation(fmt.Sprintf("rating value must be between %d and %d", MinValue, MaxValue))
	}

	trait, err := s.traits.FindByID(ctx, traitID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("trait not found: %w", apperror.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if trait.RealmID != character.RealmID {
		return nil, apperror.Validation("trait belongs to a different realm")
	}

	rating := &entity.CharacterRating{CharacterID: characterID, TraitID: traitID, Value: value}
	if err := s.repo.Upsert(ctx, rating); err != nil {
		return nil, fmt.Errorf("failed to save rating: %w", err)
	}

	s.publisher.Publish(ctx, realtime.CharacterEvent(realtime.RatingUpdated, character.RealmID, characterID))
	return &dto.RatingResponse{
		CharacterID: characterID,
		TraitID:     traitID,
		TraitName:   trait.Name,
		DisplayMode: trait.DisplayMode,
		Value:       value,
		Display:     Display(trait.DisplayMode, value),
		UpdatedAt:   rating.UpdatedAt,
	}, nil
}

func (s *ratingService) DeleteRating(ctx context.Context, userID, characterID, traitID uuid.UUID) error {
	character, err := s.evaluator.Require(ctx, characterID, userID, entity.ScopeRatings, permissionService.ActionEdit)
	if err != nil {
		return err
	}

	removed, err := s.repo.Delete(ctx, characterID, traitID)
	if err != nil {
		return fmt.Errorf("failed to delete rating: %w", err)
	}
	if removed {
		s.publisher.Publish(ctx, realtime.CharacterEvent(realtime.RatingDeleted, character.RealmID, characterID))
	}
	return nil
}

func (s *ratingService) ListByCharacter(ctx context.Context, userID, characterID uuid.UUID) ([]dto.RatingResponse, error) {
	if _, err := s.evaluator.Require(ctx, characterID, userID, entity.ScopeRatings, permissionService.ActionView); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListByCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}

	ratings := make([]dto.RatingResponse, 0, len(rows))
	for _, row := range rows {
		ratings = append(ratings, dto.RatingResponse{
			CharacterID: row.CharacterID,
			TraitID:     row.TraitID,
			TraitName:   row.TraitName,
			DisplayMode: row.DisplayMode,
			Value:       row.Value,
			Display:     Display(row.DisplayMode, row.Value),
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return ratings, nil
}
