package entity

import (
	"time"

	"anoa.com/realmkeeper/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Character struct {
	ID        uuid.UUID                               `gorm:"type:uuid;primaryKey" json:"id"`
	RealmID   uuid.UUID                               `gorm:"type:uuid;not null;index" json:"realm_id"`
	UserID    uuid.UUID                               `gorm:"type:uuid;not null;index" json:"user_id"`
	Name      string                                  `gorm:"size:100;not null" json:"name"`
	Gender    *string                                 `gorm:"size:50" json:"gender,omitempty"`
	ImageKey  *string                                 `gorm:"size:255" json:"-"`
	ImageURL  *string                                 `gorm:"type:text" json:"image_url,omitempty"`
	Crop      *datatypes.JSONType[storage.CropRegion] `json:"crop,omitempty"`
	Notes     *string                                 `gorm:"type:text" json:"notes,omitempty"`
	NSFW      bool                                    `gorm:"column:nsfw;not null;default:false" json:"nsfw"`
	CreatedAt time.Time                               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                               `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Character) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}

// PermissionScope is the unit of character-level permission granting.
type PermissionScope string

const (
	ScopeProfile PermissionScope = "profile"
	ScopeImage   PermissionScope = "image"
	ScopeRatings PermissionScope = "ratings"
)

// Scopes lists every scope in a stable order.
var Scopes = []PermissionScope{ScopeProfile, ScopeImage, ScopeRatings}

func (s PermissionScope) Valid() bool {
	switch s {
	case ScopeProfile, ScopeImage, ScopeRatings:
		return true
	}
	return false
}

// CharacterPermission grants one user view and edit rights over one scope of one character.
type CharacterPermission struct {
	CharacterID   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"character_id"`
	GranteeUserID uuid.UUID       `gorm:"type:uuid;primaryKey;index" json:"grantee_user_id"`
	Scope         PermissionScope `gorm:"size:20;primaryKey" json:"scope"`
	GrantedBy     uuid.UUID       `gorm:"type:uuid;not null" json:"granted_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
