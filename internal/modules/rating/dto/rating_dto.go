package dto

import (
	"time"

	"anoa.com/realmkeeper/internal/entity"
	"github.com/google/uuid"
)

type UpsertRatingRequest struct {
	Value int `json:"value" binding:"required,gte=1,lte=20"`
}

type RatingResponse struct {
	CharacterID uuid.UUID          `json:"character_id"`
	TraitID     uuid.UUID          `json:"trait_id"`
	TraitName   string             `json:"trait_name"`
	DisplayMode entity.DisplayMode `json:"display_mode"`
	Value       int                `json:"value"`
	Display     string             `json:"display"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
