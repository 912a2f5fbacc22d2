package dto

import "anoa.com/realmkeeper/internal/entity"

// Identity is what the login provider vouches for.
type Identity struct {
	ExternalID  string  `json:"external_id" binding:"required,max=100"`
	DisplayName string  `json:"display_name" binding:"required,max=100"`
	Email       string  `json:"email" binding:"omitempty,email"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,url"`
}

type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *entity.User `json:"user"`
}
