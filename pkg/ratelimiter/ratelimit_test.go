package ratelimiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"anoa.com/realmkeeper/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientNeverLimits(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		ok, err := CheckAndSet(ctx, nil, user, "join:realm", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ttl, err := TTL(ctx, nil, user, "join:realm")
	require.NoError(t, err)
	assert.Zero(t, ttl)
	assert.NoError(t, Clear(ctx, nil, user, "join:realm"))
}

func TestKeyScopesUserAndAction(t *testing.T) {
	user := uuid.MustParse("0190a1b2-0000-7000-8000-000000000001")
	assert.Equal(t, "rate_limit:user:0190a1b2-0000-7000-8000-000000000001:join:abc", key(user, "join:abc"))
	assert.NotEqual(t, key(user, "join:a"), key(user, "join:b"))
}

func TestLimitedMatchesRateLimitSentinel(t *testing.T) {
	err := Limited(context.Background(), nil, uuid.New(), "join:realm", "join attempts")

	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
	assert.Zero(t, err.RetryAfter)
	assert.Equal(t, "too many join attempts, try again later", err.Error())

	var target *RateLimitError
	wrapped := fmt.Errorf("join: %w", error(&RateLimitError{Message: "slow down", RetryAfter: 3 * time.Second}))
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, 3*time.Second, target.RetryAfter)
}
