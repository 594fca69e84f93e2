package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cashbattle-backend/internal/services"
)

func TestDailyBonusOncePerCalendarDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.account(t, "u1", 0, "0")

	status, err := env.rewards.Status(ctx, "u1")
	require.NoError(t, err)
	require.True(t, status.DailyAvailable)

	grant, err := env.rewards.ClaimDaily(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, services.DailyBonusCoins, grant.Coins)
	require.Equal(t, int64(50), grant.Balance.Coins)

	env.advance(10 * time.Hour)
	_, err = env.rewards.ClaimDaily(ctx, "u1")
	require.ErrorIs(t, err, services.ErrAlreadyClaimed)

	// 2025-03-11 UTC
	env.advance(6 * time.Hour)
	grant, err = env.rewards.ClaimDaily(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(100), grant.Balance.Coins)
	require.Equal(t, int64(100), grant.Balance.TotalEarned)
}

func TestScratchNeedsAdAfterFreeTurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.account(t, "u1", 0, "0")

	grant, err := env.rewards.Scratch(ctx, "u1", false)
	require.NoError(t, err)
	require.True(t, grant.Free)
	require.GreaterOrEqual(t, grant.Coins, int64(10))
	require.Less(t, grant.Coins, int64(210))

	_, err = env.rewards.Scratch(ctx, "u1", false)
	require.ErrorIs(t, err, services.ErrNoFreeTurn)

	grant, err = env.rewards.Scratch(ctx, "u1", true)
	require.NoError(t, err)
	require.False(t, grant.Free)

	status, err := env.rewards.Status(ctx, "u1")
	require.NoError(t, err)
	require.False(t, status.FreeScratch)
	require.True(t, status.FreeSpin)
}

func TestSpinPaysWheelSegment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.account(t, "u1", 0, "0")

	grant, err := env.rewards.Spin(ctx, "u1", false)
	require.NoError(t, err)
	require.Equal(t, services.SpinSegments[grant.Segment], grant.Coins)
	require.Equal(t, grant.Coins, grant.Balance.Coins)

	_, err = env.rewards.Spin(ctx, "u1", false)
	require.ErrorIs(t, err, services.ErrNoFreeTurn)

	env.advance(24 * time.Hour)
	grant, err = env.rewards.Spin(ctx, "u1", false)
	require.NoError(t, err)
	require.True(t, grant.Free)
}

func TestFailedGrantKeepsTodaysClaims(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rewards.ClaimDaily(ctx, "u1")
	require.ErrorIs(t, err, services.ErrAccountNotFound)
	_, err = env.rewards.Scratch(ctx, "u1", false)
	require.ErrorIs(t, err, services.ErrAccountNotFound)
	_, err = env.rewards.Spin(ctx, "u1", false)
	require.ErrorIs(t, err, services.ErrAccountNotFound)

	status, err := env.rewards.Status(ctx, "u1")
	require.NoError(t, err)
	require.True(t, status.DailyAvailable)
	require.True(t, status.FreeScratch)
	require.True(t, status.FreeSpin)

	env.account(t, "u1", 0, "0")

	grant, err := env.rewards.ClaimDaily(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, services.DailyBonusCoins, grant.Coins)

	scratch, err := env.rewards.Scratch(ctx, "u1", false)
	require.NoError(t, err)
	require.True(t, scratch.Free)

	spin, err := env.rewards.Spin(ctx, "u1", false)
	require.NoError(t, err)
	require.True(t, spin.Free)
}
