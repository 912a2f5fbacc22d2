package service

import (
	"context"
	"testing"
	"time"

	"anoa.com/realmkeeper/internal/modules/user/dto"
	"anoa.com/realmkeeper/internal/modules/user/repository"
	"anoa.com/realmkeeper/internal/testutil"
	"anoa.com/realmkeeper/pkg/apperror"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateUpsertsUser(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(repository.NewUserRepository(testutil.NewDB(t)), "secret", time.Hour)

	first, err := svc.Authenticate(ctx, dto.Identity{ExternalID: "dev:lyra", DisplayName: "Lyra"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", first.TokenType)

	second, err := svc.Authenticate(ctx, dto.Identity{ExternalID: "dev:lyra", DisplayName: "Lyra Vale"})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	user, err := svc.GetUser(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lyra Vale", user.DisplayName)
}

func TestTokenCarriesSubjectAndExpiry(t *testing.T) {
	repo := repository.NewUserRepository(testutil.NewDB(t))
	svc := NewAuthService(repo, "secret", 2*time.Hour).(*authService)
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	resp, err := svc.Authenticate(context.Background(), dto.Identity{ExternalID: "dev:kai", DisplayName: "Kai"})
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(2*time.Hour).Unix(), resp.ExpiresIn)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed }))
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID.String(), claims.Subject)
}

func TestGetUserNotFound(t *testing.T) {
	svc := NewAuthService(repository.NewUserRepository(testutil.NewDB(t)), "secret", time.Hour)

	_, err := svc.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
