package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunByName(t *testing.T) {
	s := NewScheduler()
	calls := 0
	require.NoError(t, s.Register(Job{Name: "count", Run: func(ctx context.Context) error {
		calls++
		return nil
	}}))
	require.NoError(t, s.Register(Job{Name: "fail", Run: func(ctx context.Context) error {
		return errors.New("boom")
	}}))

	require.NoError(t, s.RunByName(context.Background(), "count"))
	assert.Equal(t, 1, calls)
	assert.Error(t, s.RunByName(context.Background(), "fail"))
	assert.Error(t, s.RunByName(context.Background(), "missing"))
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler()
	err := s.Register(Job{Name: "bad", Schedule: "not a cron", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}
