package dto

type CreateCharacterRequest struct {
	Name   string  `json:"name" binding:"required,max=100"`
	Gender *string `json:"gender" binding:"omitempty,max=50"`
	Notes  *string `json:"notes" binding:"omitempty,max=20000"`
	NSFW   bool    `json:"nsfw"`
}

// UpdateCharacterRequest patches the profile scope. Nil fields are left untouched.
type UpdateCharacterRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=1,max=100"`
	Gender *string `json:"gender" binding:"omitempty,max=50"`
	Notes  *string `json:"notes" binding:"omitempty,max=20000"`
	NSFW   *bool   `json:"nsfw"`
}

type ListCharactersQuery struct {
	IncludeNSFW bool `form:"include_nsfw"`
}

type SearchCharactersQuery struct {
	Query string `form:"q" binding:"required,max=200"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}
