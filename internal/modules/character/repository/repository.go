package repository

import (
	"context"

	"anoa.com/realmkeeper/internal/entity"
	imageRepo "anoa.com/realmkeeper/internal/modules/image/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CharacterRepository interface {
	Create(ctx context.Context, character *entity.Character) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Character, error)
	FindByRealm(ctx context.Context, realmID uuid.UUID, includeNSFW bool) ([]entity.Character, error)
	FindByIDs(ctx context.Context, realmID uuid.UUID, ids []uuid.UUID) ([]entity.Character, error)
	Update(ctx context.Context, character *entity.Character) error
	// DeleteCascade removes the character with its ratings and grants and
	// detaches its images, in one transaction.
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

type characterRepository struct {
	db *gorm.DB
}

func NewCharacterRepository(db *gorm.DB) CharacterRepository {
	return &characterRepository{db: db}
}

func (r *characterRepository) Create(ctx context.Context, character *entity.Character) error {
	return r.db.WithContext(ctx).Create(character).Error
}

func (r *characterRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Character, error) {
	var character entity.Character
	if err := r.db.WithContext(ctx).First(&character, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &character, nil
}

func (r *characterRepository) FindByRealm(ctx context.Context, realmID uuid.UUID, includeNSFW bool) ([]entity.Character, error) {
	var characters []entity.Character
	query := r.db.WithContext(ctx).Where("realm_id = ?", realmID)
	if !includeNSFW {
		query = query.Where("nsfw = ?", false)
	}
	err := query.Order("name ASC, id ASC").Find(&characters).Error
	return characters, err
}

func (r *characterRepository) FindByIDs(ctx context.Context, realmID uuid.UUID, ids []uuid.UUID) ([]entity.Character, error) {
	var characters []entity.Character
	if len(ids) == 0 {
		return characters, nil
	}
	err := r.db.WithContext(ctx).
		Where("realm_id = ? AND id IN ?", realmID, ids).
		Find(&characters).Error
	return characters, err
}

func (r *characterRepository) Update(ctx context.Context, character *entity.Character) error {
	return r.db.WithContext(ctx).Save(character).Error
}

func (r *characterRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("character_id = ?", id).Delete(&entity.CharacterRating{}).Error; err != nil {
			return err
		}
		if err := tx.Where("character_id = ?", id).Delete(&entity.CharacterPermission{}).Error; err != nil {
			return err
		}
		if err := imageRepo.DetachWhere(tx, "character_id = ?", id); err != nil {
			return err
		}
		res := tx.Delete(&entity.Character{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
