package service

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/realmkeeper/internal/entity"
	characterRepo "anoa.com/realmkeeper/internal/modules/character/repository"
	"anoa.com/realmkeeper/internal/modules/permission/dto"
	"anoa.com/realmkeeper/internal/modules/permission/repository"
	realmRepo "anoa.com/realmkeeper/internal/modules/realm/repository"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"
	"anoa.com/realmkeeper/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PermissionService interface {
	Grant(ctx context.Context, userID, characterID, granteeID uuid.UUID, scope entity.PermissionScope) error
	Revoke(ctx context.Context, userID, characterID, granteeID uuid.UUID, scope entity.PermissionScope) error
	List(ctx context.Context, userID, characterID uuid.UUID) ([]entity.CharacterPermission, error)
	// Access reports the caller's effective rights on every scope.
	Access(ctx context.Context, userID, characterID uuid.UUID) (*dto.CharacterAccess, error)
}

type permissionService struct {
	repo       repository.PermissionRepository
	characters characterRepo.CharacterRepository
	realms     realmRepo.RealmRepository
	evaluator  Evaluator
	publisher  realtime.Publisher
}

func NewPermissionService(
	repo repository.PermissionRepository,
	characters characterRepo.CharacterRepository,
	realms realmRepo.RealmRepository,
	evaluator Evaluator,
	publisher realtime.Publisher,
) PermissionService {
	return &permissionService{repo: repo, characters: characters, realms: realms, evaluator: evaluator, publisher: publisher}
}

// requireGrantor allows the character's creator and realm owners and admins.
// Scope grants never let a user hand out further grants.
func (s *permissionService) requireGrantor(ctx context.Context, userID, characterID uuid.UUID) (*entity.Character, error) {
	character, err := s.characters.FindByID(ctx, characterID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("character not found: %w", apperror.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if character.UserID == userID {
		return character, nil
	}

	member, err := s.realms.FindMember(ctx, character.RealmID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("not a member of this realm: %w", apperror.ErrPermissionDenied)
	}
	if err != nil {
		return nil, err
	}
	if !member.Role.CanManage() {
		return nil, fmt.Errorf("only the character's creator or a realm admin can manage permissions: %w", apperror.ErrPermissionDenied)
	}
	return character, nil
}

func (s *permissionService) Grant(ctx context.Context, userID, characterID, granteeID uuid.UUID, scope entity.PermissionScope) error {
	if !scope.Valid() {
		return apperror.Validation(fmt.Sprintf("unknown permission scope %q", scope))
	}
	character, err := s.requireGrantor(ctx, userID, characterID)
	if err != nil {
		return err
	}
	if granteeID == character.UserID {
		return apperror.Validation("the creator already has full access")
	}

	if _, err := s.realms.FindMember(ctx, character.RealmID, granteeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Validation("permissions can only be granted to realm members")
		}
		return err
	}

	added, err := s.repo.Grant(ctx, &entity.CharacterPermission{
		CharacterID:   characterID,
		GranteeUserID: granteeID,
		Scope:         scope,
		GrantedBy:     userID,
	})
	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	if added {
		s.publisher.Publish(ctx, realtime.CharacterEvent(realtime.CharacterUpdated, character.RealmID, characterID))
	}
	return nil
}

func (s *permissionService) Revoke(ctx context.Context, userID, characterID, granteeID uuid.UUID, scope entity.PermissionScope) error {
	if !scope.Valid() {
		return apperror.Validation(fmt.Sprintf("unknown permission scope %q", scope))
	}
	character, err := s.requireGrantor(ctx, userID, characterID)
	if err != nil {
		return err
	}

	removed, err := s.repo.Revoke(ctx, characterID, granteeID, scope)
	if err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	if removed {
		s.publisher.Publish(ctx, realtime.CharacterEvent(realtime.CharacterUpdated, character.RealmID, characterID))
	}
	return nil
}

func (s *permissionService) List(ctx context.Context, userID, characterID uuid.UUID) ([]entity.CharacterPermission, error) {
	if _, err := s.evaluator.Require(ctx, characterID, userID, entity.ScopeProfile, ActionView); err != nil {
		return nil, err
	}
	return s.repo.ListByCharacter(ctx, characterID)
}

func (s *permissionService) Access(ctx context.Context, userID, characterID uuid.UUID) (*dto.CharacterAccess, error) {
	access := &dto.CharacterAccess{CharacterID: characterID, Scopes: make(map[string]dto.ScopeAccess, len(entity.Scopes))}
	for _, scope := range entity.Scopes {
		view, err := s.evaluator.Check(ctx, characterID, userID, scope, ActionView)
		if err != nil {
			return nil, err
		}
		edit, err := s.evaluator.Check(ctx, characterID, userID, scope, ActionEdit)
		if err != nil {
			return nil, err
		}
		access.Scopes[string(scope)] = dto.ScopeAccess{View: view.Allowed, Edit: edit.Allowed}
	}
	return access, nil
}
