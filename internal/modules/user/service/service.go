package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"anoa.com/realmkeeper/internal/entity"
	"anoa.com/realmkeeper/internal/modules/user/dto"
	"anoa.com/realmkeeper/internal/modules/user/repository"
	"anoa.com/realmkeeper/pkg/apperror"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuthService interface {
	// Authenticate upserts the user behind identity and issues an access token.
	Authenticate(ctx context.Context, identity dto.Identity) (*dto.AuthResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

type authService struct {
	repo     repository.UserRepository
	secret   string
	tokenTTL time.Duration
	now      func() time.Time
}

func NewAuthService(repo repository.UserRepository, secret string, tokenTTL time.Duration) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &authService{
		repo:     repo,
		secret:   secret,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (s *authService) Authenticate(ctx context.Context, identity dto.Identity) (*dto.AuthResponse, error) {
	user, err := s.repo.FindByExternalID(ctx, identity.ExternalID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = &entity.User{
			ExternalID:  identity.ExternalID,
			DisplayName: identity.DisplayName,
			Email:       identity.Email,
			AvatarURL:   identity.AvatarURL,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		slog.Info("registered user", "user_id", user.ID)
	case err != nil:
		return nil, err
	default:
		if user.DisplayName != identity.DisplayName || user.Email != identity.Email || !samePtr(user.AvatarURL, identity.AvatarURL) {
			user.DisplayName = identity.DisplayName
			user.Email = identity.Email
			user.AvatarURL = identity.AvatarURL
			if err := s.repo.Update(ctx, user); err != nil {
				slog.Warn("failed to refresh user profile", "user_id", user.ID, "error", err)
			}
		}
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresAt,
		User:        user,
	}, nil
}

func (s *authService) GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}
	return user, err
}

func (s *authService) generateToken(user *entity.User) (string, int64, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", 0, err
	}

	return signed, expiresAt.Unix(), nil
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
