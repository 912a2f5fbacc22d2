package repository

import (
	"context"
	"time"

	"anoa.com/realmkeeper/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingRow is a rating joined with its trait.
type RatingRow struct {
	CharacterID uuid.UUID
	TraitID     uuid.UUID
	Value       int
	UpdatedAt   time.Time
	TraitName   string
	DisplayMode entity.DisplayMode
}

type RatingRepository interface {
	// Upsert inserts the rating or overwrites the value of an existing one.
	Upsert(ctx context.Context, rating *entity.CharacterRating) error
	Delete(ctx context.Context, characterID, traitID uuid.UUID) (bool, error)
	// ListByCharacter returns the character's ratings in trait creation order.
	ListByCharacter(ctx context.Context, characterID uuid.UUID) ([]RatingRow, error)
}

type ratingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Upsert(ctx context.Context, rating *entity.CharacterRating) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "character_id"}, {Name: "trait_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(rating).Error
}

func (r *ratingRepository) Delete(ctx context.Context, characterID, traitID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("character_id = ? AND trait_id = ?", characterID, traitID).
		Delete(&entity.CharacterRating{})
	return res.RowsAffected > 0, res.Error
}

func (r *ratingRepository) ListByCharacter(ctx context.Context, characterID uuid.UUID) ([]RatingRow, error) {
	var rows []RatingRow
	err := r.db.WithContext(ctx).
		Model(&entity.CharacterRating{}).
		Select("character_ratings.character_id, character_ratings.trait_id, character_ratings.value, character_ratings.updated_at, traits.name AS trait_name, traits.display_mode AS display_mode").
		Joins("JOIN traits ON traits.id = character_ratings.trait_id").
		Where("character_ratings.character_id = ?", characterID).
		Order("traits.created_at ASC, traits.id ASC").
		Scan(&rows).Error
	return rows, err
}
