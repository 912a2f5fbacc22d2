package entity

import (
	"time"

	"github.com/google/uuid"
)

// ImageAsset tracks every image stored in the object store. Assets with
// neither a character nor a realm are orphans and get garbage-collected.
type ImageAsset struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	CharacterID *uuid.UUID `gorm:"type:uuid;index" json:"character_id,omitempty"`
	RealmID     *uuid.UUID `gorm:"type:uuid;index" json:"realm_id,omitempty"`
	Key         string     `gorm:"size:255;not null;uniqueIndex" json:"key"`
	URL         string     `gorm:"type:text;not null" json:"url"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	DetachedAt  *time.Time `gorm:"index" json:"detached_at,omitempty"`
}
