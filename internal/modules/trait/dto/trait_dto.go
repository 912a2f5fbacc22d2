package dto

import "anoa.com/realmkeeper/internal/entity"

type CreateTraitRequest struct {
	Name        string             `json:"name" binding:"required,max=100"`
	Description *string            `json:"description" binding:"omitempty,max=1000"`
	DisplayMode entity.DisplayMode `json:"display_mode" binding:"omitempty,oneof=number grade"`
}

type UpdateTraitRequest struct {
	Name        *string             `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string             `json:"description" binding:"omitempty,max=1000"`
	DisplayMode *entity.DisplayMode `json:"display_mode" binding:"omitempty,oneof=number grade"`
}
