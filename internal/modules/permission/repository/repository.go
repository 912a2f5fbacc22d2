package repository

import (
	"context"

	"anoa.com/realmkeeper/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PermissionRepository interface {
	// Grant inserts the grant unless it exists and reports whether a row was added.
	Grant(ctx context.Context, grant *entity.CharacterPermission) (bool, error)
	Revoke(ctx context.Context, characterID, granteeID uuid.UUID, scope entity.PermissionScope) (bool, error)
	Exists(ctx context.Context, characterID, granteeID uuid.UUID, scope entity.PermissionScope) (bool, error)
	ListByCharacter(ctx context.Context, characterID uuid.UUID) ([]entity.CharacterPermission, error)
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) Grant(ctx context.Context, grant *entity.CharacterPermission) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(grant)
	return res.RowsAffected > 0, res.Error
}

func (r *permissionRepository) Revoke(ctx context.Context, characterID, granteeID uuid.UUID, scope entity.PermissionScope) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("character_id = ? AND grantee_user_id = ? AND scope = ?", characterID, granteeID, scope).
		Delete(&entity.CharacterPermission{})
	return res.RowsAffected > 0, res.Error
}

func (r *permissionRepository) Exists(ctx context.Context, characterID, granteeID uuid.UUID, scope entity.PermissionScope) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.CharacterPermission{}).
		Where("character_id = ? AND grantee_user_id = ? AND scope = ?", characterID, granteeID, scope).
		Count(&count).Error
	return count > 0, err
}

func (r *permissionRepository) ListByCharacter(ctx context.Context, characterID uuid.UUID) ([]entity.CharacterPermission, error) {
	var grants []entity.CharacterPermission
	err := r.db.WithContext(ctx).
		Where("character_id = ?", characterID).
		Order("grantee_user_id ASC, scope ASC").
		Find(&grants).Error
	return grants, err
}
