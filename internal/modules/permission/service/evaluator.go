package service

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/realmkeeper/internal/entity"
	characterRepo "anoa.com/realmkeeper/internal/modules/character/repository"
	"anoa.com/realmkeeper/internal/modules/permission/repository"
	realmRepo "anoa.com/realmkeeper/internal/modules/realm/repository"
	"anoa.com/realmkeeper/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Action string

const (
	ActionView Action = "view"
	ActionEdit Action = "edit"
)

// Reason explains which rule produced a decision.
type Reason string

const (
	ReasonCreator   Reason = "creator"
	ReasonRealmRole Reason = "realm_role"
	ReasonGrant     Reason = "grant"
	ReasonNoGrant   Reason = "no_grant"
	ReasonNotMember Reason = "not_member"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

// Evaluator decides character-level access. Rules, highest first: the
// creator may do anything; realm owners and admins may do anything; an
// explicit grant allows viewing and editing its scope; everything else is
// denied. Nothing is cached.
type Evaluator interface {
	Check(ctx context.Context, characterID, userID uuid.UUID, scope entity.PermissionScope, action Action) (Decision, error)
	// Require returns the character when allowed and PermissionDenied otherwise.
	Require(ctx context.Context, characterID, userID uuid.UUID, scope entity.PermissionScope, action Action) (*entity.Character, error)
}

type evaluator struct {
	characters  characterRepo.CharacterRepository
	realms      realmRepo.RealmRepository
	permissions repository.PermissionRepository
}

func NewEvaluator(characters characterRepo.CharacterRepository, realms realmRepo.RealmRepository, permissions repository.PermissionRepository) Evaluator {
	return &evaluator{characters: characters, realms: realms, permissions: permissions}
}

func (e *evaluator) Check(ctx context.Context, characterID, userID uuid.UUID, scope entity.PermissionScope, action Action) (Decision, error) {
	_, decision, err := e.check(ctx, characterID, userID, scope, action)
	return decision, err
}

func (e *evaluator) Require(ctx context.Context, characterID, userID uuid.UUID, scope entity.PermissionScope, action Action) (*entity.Character, error) {
	character, decision, err := e.check(ctx, characterID, userID, scope, action)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("cannot %s %s of this character: %w", action, scope, apperror.ErrPermissionDenied)
	}
	return character, nil
}

func (e *evaluator) check(ctx context.Context, characterID, userID uuid.UUID, scope entity.PermissionScope, action Action) (*entity.Character, Decision, error) {
	if !scope.Valid() {
		return nil, Decision{}, apperror.Validation(fmt.Sprintf("unknown permission scope %q", scope))
	}
	if action != ActionView && action != ActionEdit {
		return nil, Decision{}, apperror.Validation(fmt.Sprintf("unknown action %q", action))
	}

	character, err := e.characters.FindByID(ctx, characterID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Decision{}, fmt.Errorf("character not found: %w", apperror.ErrNotFound)
	}
	if err != nil {
		return nil, Decision{}, err
	}

	if character.UserID == userID {
		return character, Decision{Allowed: true, Reason: ReasonCreator}, nil
	}

	member, err := e.realms.FindMember(ctx, character.RealmID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return character, Decision{Allowed: false, Reason: ReasonNotMember}, nil
	}
	if err != nil {
		return nil, Decision{}, err
	}
	if member.Role.CanManage() {
		return character, Decision{Allowed: true, Reason: ReasonRealmRole}, nil
	}

	granted, err := e.permissions.Exists(ctx, characterID, userID, scope)
	if err != nil {
		return nil, Decision{}, err
	}
	if granted {
		return character, Decision{Allowed: true, Reason: ReasonGrant}, nil
	}

	return character, Decision{Allowed: false, Reason: ReasonNoGrant}, nil
}
