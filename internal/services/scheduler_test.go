package services_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cashbattle-backend/internal/services"
	"cashbattle-backend/internal/store"
)

func TestSchedulerFillsLobby(t *testing.T) {
	clock := clockwork.NewRealClock()
	logger := zap.NewNop()
	s := store.New(store.NewMemoryBackend())
	defer s.Close()

	ledger := services.NewLedger(s, clock, logger)
	lobby := services.NewLobby(s, clock, rand.New(rand.NewSource(1)), 1.0, logger)
	engine := services.NewEngine(ledger, lobby, clock, rand.New(rand.NewSource(2)), logger)
	defer engine.Shutdown()

	sched, err := services.NewScheduler(services.SchedulerConfig{
		BotInterval:     20 * time.Millisecond,
		CleanupInterval: time.Hour,
		SessionMaxIdle:  time.Hour,
	}, clock, lobby, engine, logger)
	require.NoError(t, err)

	sched.Start()
	defer sched.Shutdown()

	require.Eventually(t, func() bool {
		all, err := lobby.List(context.Background(), "", "")
		return err == nil && len(all) == services.BotFillThreshold
	}, 5*time.Second, 20*time.Millisecond)

	// The lobby stays at the fill threshold.
	time.Sleep(100 * time.Millisecond)
	all, err := lobby.List(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, all, services.BotFillThreshold)
}
