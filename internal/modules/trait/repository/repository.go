package repository

import (
	"context"

	"anoa.com/realmkeeper/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TraitRepository interface {
	Create(ctx context.Context, trait *entity.Trait) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Trait, error)
	// FindByRealm returns the realm's traits in creation order.
	FindByRealm(ctx context.Context, realmID uuid.UUID) ([]entity.Trait, error)
	Update(ctx context.Context, trait *entity.Trait) error
	// Delete removes the trait together with every rating on it.
	Delete(ctx context.Context, id uuid.UUID) error
}

type traitRepository struct {
	db *gorm.DB
}

func NewTraitRepository(db *gorm.DB) TraitRepository {
	return &traitRepository{db: db}
}

func (r *traitRepository) Create(ctx context.Context, trait *entity.Trait) error {
	return r.db.WithContext(ctx).Create(trait).Error
}

func (r *traitRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Trait, error) {
	var trait entity.Trait
	if err := r.db.WithContext(ctx).First(&trait, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &trait, nil
}

func (r *traitRepository) FindByRealm(ctx context.Context, realmID uuid.UUID) ([]entity.Trait, error) {
	var traits []entity.Trait
	err := r.db.WithContext(ctx).
		Where("realm_id = ?", realmID).
		Order("created_at ASC, id ASC").
		Find(&traits).Error
	return traits, err
}

func (r *traitRepository) Update(ctx context.Context, trait *entity.Trait) error {
	return r.db.WithContext(ctx).Save(trait).Error
}

func (r *traitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trait_id = ?", id).Delete(&entity.CharacterRating{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&entity.Trait{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
