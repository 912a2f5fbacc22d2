package dto

import (
	"anoa.com/realmkeeper/internal/entity"
	"github.com/google/uuid"
)

type GrantPermissionRequest struct {
	UserID string                 `json:"user_id" binding:"required,uuid"`
	Scope  entity.PermissionScope `json:"scope" binding:"required,oneof=profile image ratings"`
}

// CharacterAccess summarises what the caller may do with each scope.
type CharacterAccess struct {
	CharacterID uuid.UUID              `json:"character_id"`
	Scopes      map[string]ScopeAccess `json:"scopes"`
}

type ScopeAccess struct {
	View bool `json:"view"`
	Edit bool `json:"edit"`
}
