package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DisplayMode string

const (
	DisplayNumber DisplayMode = "number"
	DisplayGrade  DisplayMode = "grade"
)

// Trait is a named rating axis scoped to one realm.
type Trait struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	RealmID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"realm_id"`
	Name        string      `gorm:"size:100;not null" json:"name"`
	Description *string     `gorm:"type:text" json:"description,omitempty"`
	DisplayMode DisplayMode `gorm:"size:20;not null;default:number" json:"display_mode"`
	CreatedAt   time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Trait) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID, err = uuid.NewV7()
	}
	return
}

type CharacterRating struct {
	CharacterID uuid.UUID `gorm:"type:uuid;primaryKey" json:"character_id"`
	TraitID     uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"trait_id"`
	Value       int       `gorm:"not null" json:"value"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
