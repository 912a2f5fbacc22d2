package repository

import (
	"context"
	"errors"

	"anoa.com/realmkeeper/internal/entity"
	imageRepo "anoa.com/realmkeeper/internal/modules/image/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotMember is returned when an operation names a user outside the realm.
var ErrNotMember = errors.New("user is not a member of this realm")

type RealmWithRole struct {
	entity.Realm
	Role entity.MemberRole
}

type RealmRepository interface {
	// CreateWithOwner inserts the realm and its owner membership together.
	CreateWithOwner(ctx context.Context, realm *entity.Realm) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Realm, error)
	FindByMember(ctx context.Context, userID uuid.UUID) ([]RealmWithRole, error)
	Update(ctx context.Context, realm *entity.Realm) error
	// DeleteCascade removes the realm and everything scoped to it in one transaction.
	DeleteCascade(ctx context.Context, id uuid.UUID) error

	FindMember(ctx context.Context, realmID, userID uuid.UUID) (*entity.RealmMember, error)
	ListMembers(ctx context.Context, realmID uuid.UUID) ([]entity.RealmMember, error)
	// AddMember inserts the membership unless it exists and reports whether a row was added.
	AddMember(ctx context.Context, member *entity.RealmMember) (bool, error)
	// RemoveMember deletes the membership and the user's grants on the realm's characters.
	RemoveMember(ctx context.Context, realmID, userID uuid.UUID) (bool, error)
	UpdateMemberRole(ctx context.Context, realmID, userID uuid.UUID, role entity.MemberRole) error
	TransferOwnership(ctx context.Context, realmID, fromUserID, toUserID uuid.UUID) error
}

type realmRepository struct {
	db *gorm.DB
}

func NewRealmRepository(db *gorm.DB) RealmRepository {
	return &realmRepository{db: db}
}

func (r *realmRepository) CreateWithOwner(ctx context.Context, realm *entity.Realm) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(realm).Error; err != nil {
			return err
		}
		return tx.Create(&entity.RealmMember{
			RealmID: realm.ID,
			UserID:  realm.OwnerID,
			Role:    entity.RoleOwner,
		}).Error
	})
}

func (r *realmRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Realm, error) {
	var realm entity.Realm
	if err := r.db.WithContext(ctx).First(&realm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &realm, nil
}

func (r *realmRepository) FindByMember(ctx context.Context, userID uuid.UUID) ([]RealmWithRole, error) {
	var realms []RealmWithRole
	err := r.db.WithContext(ctx).
		Model(&entity.Realm{}).
		Select("realms.*, realm_members.role AS role").
		Joins("JOIN realm_members ON realm_members.realm_id = realms.id").
		Where("realm_members.user_id = ?", userID).
		Order("realms.name ASC, realms.id ASC").
		Scan(&realms).Error
	return realms, err
}

func (r *realmRepository) Update(ctx context.Context, realm *entity.Realm) error {
	return r.db.WithContext(ctx).Save(realm).Error
}

func (r *realmRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		characterIDs := tx.Model(&entity.Character{}).Select("id").Where("realm_id = ?", id)
		traitIDs := tx.Model(&entity.Trait{}).Select("id").Where("realm_id = ?", id)

		if err := tx.Where("character_id IN (?) OR trait_id IN (?)", characterIDs, traitIDs).
			Delete(&entity.CharacterRating{}).Error; err != nil {
			return err
		}
		if err := tx.Where("character_id IN (?)", characterIDs).
			Delete(&entity.CharacterPermission{}).Error; err != nil {
			return err
		}
		if err := imageRepo.DetachWhere(tx, "character_id IN (?) OR realm_id = ?", characterIDs, id); err != nil {
			return err
		}
		if err := tx.Where("realm_id = ?", id).Delete(&entity.Character{}).Error; err != nil {
			return err
		}
		if err := tx.Where("realm_id = ?", id).Delete(&entity.Trait{}).Error; err != nil {
			return err
		}
		if err := tx.Where("realm_id = ?", id).Delete(&entity.RealmMember{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&entity.Realm{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *realmRepository) FindMember(ctx context.Context, realmID, userID uuid.UUID) (*entity.RealmMember, error) {
	var member entity.RealmMember
	err := r.db.WithContext(ctx).
		Where("realm_id = ? AND user_id = ?", realmID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *realmRepository) ListMembers(ctx context.Context, realmID uuid.UUID) ([]entity.RealmMember, error) {
	var members []entity.RealmMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("realm_id = ?", realmID).
		Order("created_at ASC, user_id ASC").
		Find(&members).Error
	return members, err
}

func (r *realmRepository) AddMember(ctx context.Context, member *entity.RealmMember) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member)
	return res.RowsAffected > 0, res.Error
}

func (r *realmRepository) RemoveMember(ctx context.Context, realmID, userID uuid.UUID) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("realm_id = ? AND user_id = ?", realmID, userID).Delete(&entity.RealmMember{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0

		characterIDs := tx.Model(&entity.Character{}).Select("id").Where("realm_id = ?", realmID)
		return tx.Where("grantee_user_id = ? AND character_id IN (?)", userID, characterIDs).
			Delete(&entity.CharacterPermission{}).Error
	})
	return removed, err
}

func (r *realmRepository) UpdateMemberRole(ctx context.Context, realmID, userID uuid.UUID, role entity.MemberRole) error {
	res := r.db.WithContext(ctx).
		Model(&entity.RealmMember{}).
		Where("realm_id = ? AND user_id = ?", realmID, userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotMember
	}
	return nil
}

func (r *realmRepository) TransferOwnership(ctx context.Context, realmID, fromUserID, toUserID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.RealmMember{}).
			Where("realm_id = ? AND user_id = ?", realmID, toUserID).
			Update("role", entity.RoleOwner)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotMember
		}

		if err := tx.Model(&entity.RealmMember{}).
			Where("realm_id = ? AND user_id = ?", realmID, fromUserID).
			Update("role", entity.RoleAdmin).Error; err != nil {
			return err
		}

		res = tx.Model(&entity.Realm{}).
			Where("id = ? AND owner_id = ?", realmID, fromUserID).
			Update("owner_id", toUserID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
