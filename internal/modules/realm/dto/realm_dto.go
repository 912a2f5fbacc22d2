package dto

import (
	"time"

	"anoa.com/realmkeeper/internal/entity"
	"github.com/google/uuid"
)

type CreateRealmRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Password    *string `json:"password" binding:"omitempty,max=72"`
}

// UpdateRealmRequest patches a realm. A nil field is left untouched; an
// empty password removes password protection.
type UpdateRealmRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Password    *string `json:"password" binding:"omitempty,max=72"`
}

type JoinRealmRequest struct {
	Password string `json:"password" binding:"max=72"`
}

type TransferOwnershipRequest struct {
	NewOwnerID string `json:"new_owner_id" binding:"required,uuid"`
}

type UpdateMemberRoleRequest struct {
	Role entity.MemberRole `json:"role" binding:"required,oneof=admin member"`
}

type RealmResponse struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	IconURL     *string           `json:"icon_url,omitempty"`
	OwnerID     uuid.UUID         `json:"owner_id"`
	HasPassword bool              `json:"has_password"`
	Role        entity.MemberRole `json:"role,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type MemberResponse struct {
	UserID      uuid.UUID         `json:"user_id"`
	DisplayName string            `json:"display_name"`
	AvatarURL   *string           `json:"avatar_url,omitempty"`
	Role        entity.MemberRole `json:"role"`
	JoinedAt    time.Time         `json:"joined_at"`
}

func NewRealmResponse(realm *entity.Realm, role entity.MemberRole) RealmResponse {
	return RealmResponse{
		ID:          realm.ID,
		Name:        realm.Name,
		Description: realm.Description,
		IconURL:     realm.IconURL,
		OwnerID:     realm.OwnerID,
		HasPassword: realm.HasPassword(),
		Role:        role,
		CreatedAt:   realm.CreatedAt,
		UpdatedAt:   realm.UpdatedAt,
	}
}
