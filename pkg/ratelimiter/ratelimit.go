package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"anoa.com/realmkeeper/pkg/apperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitError tells the caller how long to wait. It matches
// apperror.ErrRateLimitExceeded.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return e.Message }

func (e *RateLimitError) Unwrap() error { return apperror.ErrRateLimitExceeded }

// Limited builds the error for a live (user, action) slot, reading the
// remaining wait from redis.
func Limited(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action, what string) *RateLimitError {
	ttl, err := TTL(ctx, rdb, userID, action)
	if err != nil || ttl < 0 {
		ttl = 0
	}
	msg := fmt.Sprintf("too many %s, try again later", what)
	if ttl > 0 {
		msg = fmt.Sprintf("too many %s, please wait %.0f seconds", what, ttl.Seconds())
	}
	return &RateLimitError{Message: msg, RetryAfter: ttl}
}

// CheckAndSet reserves the (user, action) slot for limit. It reports false
// while a previous reservation is still live. A nil client never limits.
func CheckAndSet(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string, limit time.Duration) (bool, error) {
	if rdb == nil || limit <= 0 {
		return true, nil
	}

	wasSet, err := rdb.SetNX(ctx, key(userID, action), "locked", limit).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	return wasSet, nil
}

func TTL(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string) (time.Duration, error) {
	if rdb == nil {
		return 0, nil
	}
	return rdb.TTL(ctx, key(userID, action)).Result()
}

func Clear(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.Del(ctx, key(userID, action)).Result()
	return err
}

func key(userID uuid.UUID, action string) string {
	return fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), action)
}
