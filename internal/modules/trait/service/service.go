package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anoa.com/realmkeeper/internal/entity"
	realmService "anoa.com/realmkeeper/internal/modules/realm/service"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	"anoa.com/realmkeeper/internal/modules/trait/dto"
	"anoa.com/realmkeeper/internal/modules/trait/repository"
	"anoa.com/realmkeeper/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TraitService interface {
	ListTraits(ctx context.Context, userID, realmID uuid.UUID) ([]entity.Trait, error)
	CreateTrait(ctx context.Context, userID, realmID uuid.UUID, req dto.CreateTraitRequest) (*entity.Trait, error)
	UpdateTrait(ctx context.Context, userID, traitID uuid.UUID, req dto.UpdateTraitRequest) (*entity.Trait, error)
	DeleteTrait(ctx context.Context, userID, traitID uuid.UUID) error
}

type traitService struct {
	repo       repository.TraitRepository
	membership realmService.Membership
	publisher  realtime.Publisher
}

func NewTraitService(repo repository.TraitRepository, membership realmService.Membership, publisher realtime.Publisher) TraitService {
	return &traitService{repo: repo, membership: membership, publisher: publisher}
}

func (s *traitService) ListTraits(ctx context.Context, userID, realmID uuid.UUID) ([]entity.Trait, error) {
	if _, err := s.membership.RequireMember(ctx, realmID, userID); err != nil {
		return nil, err
	}
	return s.repo.FindByRealm(ctx, realmID)
}

func (s *traitService) CreateTrait(ctx context.Context, userID, realmID uuid.UUID, req dto.CreateTraitRequest) (*entity.Trait, error) {
	if _, err := s.membership.RequireManager(ctx, realmID, userID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("trait name is required")
	}
	mode := req.DisplayMode
	if mode == "" {
		mode = entity.DisplayNumber
	}
	if mode != entity.DisplayNumber && mode != entity.DisplayGrade {
		return nil, apperror.Validation("display mode must be number or grade")
	}

	trait := &entity.Trait{
		RealmID:     realmID,
		Name:        name,
		Description: req.Description,
		DisplayMode: mode,
	}
	if err := s.repo.Create(ctx, trait); err != nil {
		return nil, fmt.Errorf("failed to create trait: %w", err)
	}

	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.TraitCreated, realmID))
	return trait, nil
}

func (s *traitService) findForManager(ctx context.Context, userID, traitID uuid.UUID) (*entity.Trait, error) {
	trait, err := s.repo.FindByID(ctx, traitID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("trait not found: %w", apperror.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.membership.RequireManager(ctx, trait.RealmID, userID); err != nil {
		return nil, err
	}
	return trait, nil
}

func (s *traitService) UpdateTrait(ctx context.Context, userID, traitID uuid.UUID, req dto.UpdateTraitRequest) (*entity.Trait, error) {
	trait, err := s.findForManager(ctx, userID, traitID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.Validation("trait name is required")
		}
		trait.Name = name
	}
	if req.Description != nil {
		trait.Description = req.Description
	}
	if req.DisplayMode != nil {
		if *req.DisplayMode != entity.DisplayNumber && *req.DisplayMode != entity.DisplayGrade {
			return nil, apperror.Validation("display mode must be number or grade")
		}
		trait.DisplayMode = *req.DisplayMode
	}

	if err := s.repo.Update(ctx, trait); err != nil {
		return nil, fmt.Errorf("failed to update trait: %w", err)
	}

	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.TraitUpdated, trait.RealmID))
	return trait, nil
}

func (s *traitService) DeleteTrait(ctx context.Context, userID, traitID uuid.UUID) error {
	trait, err := s.findForManager(ctx, userID, traitID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, trait.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("trait not found: %w", apperror.ErrNotFound)
		}
		return fmt.Errorf("failed to delete trait: %w", err)
	}

	s.publisher.Publish(ctx, realtime.RealmEvent(realtime.TraitDeleted, trait.RealmID))
	return nil
}
