package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Realm struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Description  *string   `gorm:"type:text" json:"description,omitempty"`
	PasswordHash *string   `gorm:"size:255" json:"-"`
	IconKey      *string   `gorm:"size:255" json:"-"`
	IconURL      *string   `gorm:"type:text" json:"icon_url,omitempty"`
	OwnerID      uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Realm) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}

// HasPassword reports whether joining requires a password.
func (r *Realm) HasPassword() bool {
	return r.PasswordHash != nil && *r.PasswordHash != ""
}

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanManage reports whether the role grants realm administration.
func (r MemberRole) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

type RealmMember struct {
	RealmID   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"realm_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      MemberRole `gorm:"size:20;not null;default:member" json:"role"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
