package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/store"
)

func decimalFromString(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	balances []models.Balance
	sessions []SessionView
}

func (r *recordingBroadcaster) BroadcastBalance(_ string, b models.Balance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances = append(r.balances, b)
}

func (r *recordingBroadcaster) BroadcastSession(_ string, v SessionView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, v)
}

type engineEnv struct {
	clock      clockwork.Clock
	advance    func(time.Duration)
	blockUntil func(context.Context, int) error
	ledger     *Ledger
	lobby      *Lobby
	engine     *Engine
	events     *recordingBroadcaster
}

// failingBackend rejects writes to one key.
type failingBackend struct {
	*store.MemoryBackend
	failKey string
}

func (b *failingBackend) Save(ctx context.Context, key string, data []byte) error {
	if key == b.failKey {
		return errors.New("write rejected")
	}
	return b.MemoryBackend.Save(ctx, key, data)
}

func newEngineEnv(t *testing.T) *engineEnv {
	return newEngineEnvWithBackend(t, store.NewMemoryBackend())
}

func newEngineEnvWithBackend(t *testing.T, backend store.Backend) *engineEnv {
	t.Helper()

	fc := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	s := store.New(backend)
	logger := zap.NewNop()

	ledger := NewLedger(s, fc, logger)
	lobby := NewLobby(s, fc, rand.New(rand.NewSource(1)), 1.0, logger)
	engine := NewEngine(ledger, lobby, fc, rand.New(rand.NewSource(42)), logger)

	events := &recordingBroadcaster{}
	ledger.SetBroadcaster(events)
	engine.SetBroadcaster(events)

	t.Cleanup(func() {
		engine.Shutdown()
		s.Close()
	})

	return &engineEnv{
		clock:      fc,
		advance:    fc.Advance,
		blockUntil: fc.BlockUntilContext,
		ledger:     ledger,
		lobby:      lobby,
		engine:     engine,
		events:     events,
	}
}

func (e *engineEnv) user(t *testing.T, id string, coins int64, deposit string) *models.UserAccount {
	t.Helper()

	acct := &models.UserAccount{
		ID:             id,
		Name:           "Player " + id,
		PhotoURL:       "https://example.com/" + id,
		Coins:          coins,
		DepositBalance: decimal.RequireFromString(deposit),
	}
	_, _, err := e.ledger.EnsureAccount(context.Background(), acct)
	require.NoError(t, err)
	return acct
}

func (e *engineEnv) session(t *testing.T, id string) *Session {
	t.Helper()

	e.engine.mu.Lock()
	defer e.engine.mu.Unlock()
	s, ok := e.engine.sessions[id]
	require.True(t, ok)
	return s
}

func (e *engineEnv) history(t *testing.T, userID string) []models.BattleRecord {
	t.Helper()

	h, err := e.ledger.History(context.Background(), userID)
	require.NoError(t, err)
	return h
}

func tapUntilDone(t *testing.T, env *engineEnv, userID, sessionID string, taps int) SessionView {
	t.Helper()

	var v SessionView
	var err error
	for i := 0; i < taps; i++ {
		v, err = env.engine.Act(context.Background(), userID, sessionID, 0)
		require.NoError(t, err)
	}
	return v
}

func TestCreateOwnChallengeWins(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "30")

	v, err := env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Equal(t, StatePublishing, v.State)
	require.Equal(t, RoleCreator, v.Role)

	bal, err := env.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, bal.DepositBalance.Equal(decimal.NewFromInt(20)))

	_, err = env.lobby.Find(ctx, v.ChallengeID)
	require.NoError(t, err)

	_, err = env.engine.Act(ctx, "u1", v.ID, 0)
	require.ErrorIs(t, err, ErrSessionNotActive)

	env.advance(5 * time.Second)
	v, err = env.engine.Get(ctx, "u1", v.ID)
	require.NoError(t, err)
	require.Equal(t, StateActive, v.State)
	require.NotEmpty(t, v.OpponentName)

	_, err = env.lobby.Find(ctx, v.ChallengeID)
	require.ErrorIs(t, err, ErrChallengeNotFound)

	v = tapUntilDone(t, env, "u1", v.ID, 15)
	require.Equal(t, StateFinished, v.State)
	require.Equal(t, models.OutcomeWin, v.Outcome)
	require.Equal(t, int64(1800), v.Reward)

	bal, err = env.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(1800), bal.Coins)

	history := env.history(t, "u1")
	require.Len(t, history, 1)
	require.Equal(t, "Tap Ball Battle", history[0].GameTitle)
}

func TestCreateOwnChallengeInsufficientFunds(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 50, "8")

	_, err := env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	all, err := env.lobby.List(ctx, "", "")
	require.NoError(t, err)
	require.Empty(t, all)

	_, live := env.engine.Current(ctx, "u1")
	require.False(t, live)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "30")

	_, err := env.engine.CreateChallenge(ctx, user, "Chess Battle", decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrUnknownGame)

	_, err = env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(-1))
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	bal, err := env.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, bal.DepositBalance.Equal(decimal.NewFromInt(30)))
}

func TestAcceptChallengeFlow(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 5000, "0")

	ch, err := env.lobby.Create(ctx, Creator{ID: "bot1", Name: "Rahul Kumar"}, "Balloon Pop Battle", decimal.NewFromInt(20))
	require.NoError(t, err)

	v, err := env.engine.AcceptChallenge(ctx, user, ch.ID)
	require.NoError(t, err)
	require.Equal(t, StateSearching, v.State)
	require.Equal(t, "Rahul Kumar", v.OpponentName)

	_, err = env.lobby.Find(ctx, ch.ID)
	require.ErrorIs(t, err, ErrChallengeNotFound)

	bal, err := env.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(3000), bal.Coins)

	env.advance(1500 * time.Millisecond)
	v = tapUntilDone(t, env, "u1", v.ID, 15)
	require.Equal(t, models.OutcomeWin, v.Outcome)
	require.Equal(t, int64(3600), v.Reward)
	require.Len(t, env.history(t, "u1"), 1)
}

func TestAcceptChallengeInsufficientFundsKeepsChallenge(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 50, "8")

	ch, err := env.lobby.Create(ctx, Creator{ID: "bot1", Name: "Priya S."}, "Mines Battle", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = env.engine.AcceptChallenge(ctx, user, ch.ID)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = env.lobby.Find(ctx, ch.ID)
	require.NoError(t, err)

	bal, err := env.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(50), bal.Coins)
}

func TestAcceptOwnChallengeRejected(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "100")

	ch, err := env.lobby.Create(ctx, Creator{ID: "u1", Name: user.Name}, "Ludo Battle", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = env.engine.AcceptChallenge(ctx, user, ch.ID)
	require.ErrorIs(t, err, ErrOwnChallenge)

	_, err = env.lobby.Find(ctx, ch.ID)
	require.NoError(t, err)

	_, err = env.engine.AcceptChallenge(ctx, user, "missing")
	require.ErrorIs(t, err, ErrChallengeNotFound)

	_, live := env.engine.Current(ctx, "u1")
	require.False(t, live)
}

func TestSlowFinishLoses(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "10")

	v, err := env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(10))
	require.NoError(t, err)

	env.advance(5 * time.Second)
	env.advance(12 * time.Second)

	v = tapUntilDone(t, env, "u1", v.ID, 15)
	require.Equal(t, StateFinished, v.State)
	require.Equal(t, models.OutcomeLoss, v.Outcome)
	require.Equal(t, int64(0), v.Reward)
	require.GreaterOrEqual(t, v.ElapsedMS, v.OpponentTimeMS)

	bal, err := env.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(0), bal.Coins)
}

func TestMinesHitAlwaysLoses(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "50")

	v, err := env.engine.CreateChallenge(ctx, user, "Mines Battle", decimal.NewFromInt(50))
	require.NoError(t, err)
	env.advance(6 * time.Second)

	task := env.session(t, v.ID).task.(*gemTask)
	var mine int
	for m := range task.mines {
		mine = m
		break
	}

	v, err = env.engine.Act(ctx, "u1", v.ID, mine)
	require.NoError(t, err)
	require.Equal(t, StateFinished, v.State)
	require.Equal(t, models.OutcomeLoss, v.Outcome)
	require.Equal(t, int64(0), v.ElapsedMS)
	require.Contains(t, v.Task, "mines")

	_, err = env.engine.Act(ctx, "u1", v.ID, 0)
	require.ErrorIs(t, err, ErrSessionNotActive)
	require.Len(t, env.history(t, "u1"), 1)
}

func TestEmojiPenaltyCountsTowardsRace(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "10")

	v, err := env.engine.CreateChallenge(ctx, user, "Emoji Hunt Battle", decimal.NewFromInt(10))
	require.NoError(t, err)
	env.advance(5 * time.Second)

	s := env.session(t, v.ID)
	task := s.task.(*emojiTask)

	// Three misses cost 6s, at or beyond the fastest opponent.
	for i := 0; i < 3; i++ {
		s.mu.Lock()
		wrong := (task.oddCell() + 1) % emojiGridCells
		s.mu.Unlock()
		_, err = env.engine.Act(ctx, "u1", v.ID, wrong)
		require.NoError(t, err)
	}

	v, err = env.engine.Get(ctx, "u1", v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(6000), v.ElapsedMS)

	for i := 0; i < 5; i++ {
		s.mu.Lock()
		odd := task.oddCell()
		s.mu.Unlock()
		v, err = env.engine.Act(ctx, "u1", v.ID, odd)
		require.NoError(t, err)
	}
	require.Equal(t, StateFinished, v.State)
	require.Equal(t, v.ElapsedMS < v.OpponentTimeMS, v.Outcome == models.OutcomeWin)
}

func TestLudoFinishesAutomatically(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "10")

	v, err := env.engine.CreateChallenge(ctx, user, "Ludo Battle", decimal.NewFromInt(10))
	require.NoError(t, err)

	env.advance(6 * time.Second)
	v, err = env.engine.Get(ctx, "u1", v.ID)
	require.NoError(t, err)
	require.Equal(t, StateActive, v.State)

	env.advance(15 * time.Second)
	v, err = env.engine.Get(ctx, "u1", v.ID)
	require.NoError(t, err)
	require.Equal(t, StateFinished, v.State)
	require.Equal(t, models.OutcomeWin, v.Outcome)
	require.Equal(t, int64(15000), v.ElapsedMS)
	require.Len(t, env.history(t, "u1"), 1)
}

func TestAbandonWhilePublishingWithdrawsChallenge(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "10")

	v, err := env.engine.CreateChallenge(ctx, user, "Memory Match Battle", decimal.NewFromInt(10))
	require.NoError(t, err)

	v, err = env.engine.Abandon(ctx, "u1", v.ID)
	require.NoError(t, err)
	require.Equal(t, StateAbandoned, v.State)
	require.Equal(t, models.OutcomeLoss, v.Outcome)

	_, err = env.lobby.Find(ctx, v.ChallengeID)
	require.ErrorIs(t, err, ErrChallengeNotFound)

	// Fees are not refunded.
	bal, err := env.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, bal.DepositBalance.IsZero())

	v, err = env.engine.Abandon(ctx, "u1", v.ID)
	require.NoError(t, err)
	require.Equal(t, StateAbandoned, v.State)

	env.advance(time.Minute)
	_, err = env.engine.Get(ctx, "u1", v.ID)
	require.NoError(t, err)
	require.Len(t, env.history(t, "u1"), 1)
}

func TestBattleRecordedExactlyOnce(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "10")

	v, err := env.engine.CreateChallenge(ctx, user, "Island Adventure Battle", decimal.NewFromInt(10))
	require.NoError(t, err)
	env.advance(5 * time.Second)

	tapUntilDone(t, env, "u1", v.ID, 40)

	for i := 0; i < 5; i++ {
		env.advance(time.Second)
		_, err = env.engine.Get(ctx, "u1", v.ID)
		require.NoError(t, err)
		_, err = env.engine.Abandon(ctx, "u1", v.ID)
		require.NoError(t, err)
	}
	env.engine.CleanupStaleSessions(ctx, time.Hour)

	require.Len(t, env.history(t, "u1"), 1)
}

func TestOneLiveSessionPerUser(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "100")

	v, err := env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrSessionInProgress)

	current, live := env.engine.Current(ctx, "u1")
	require.True(t, live)
	require.Equal(t, v.ID, current.ID)

	_, err = env.engine.Abandon(ctx, "u1", v.ID)
	require.NoError(t, err)

	_, err = env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(10))
	require.NoError(t, err)
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "100")

	v, err := env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = env.engine.Get(ctx, "u2", v.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = env.engine.Abandon(ctx, "u2", v.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCleanupStaleSessions(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "100")

	v, err := env.engine.CreateChallenge(ctx, user, "Balloon Pop Battle", decimal.NewFromInt(10))
	require.NoError(t, err)

	require.Equal(t, 0, env.engine.CleanupStaleSessions(ctx, 10*time.Minute))

	env.advance(11 * time.Minute)
	require.Equal(t, 1, env.engine.CleanupStaleSessions(ctx, 10*time.Minute))

	_, live := env.engine.Current(ctx, "u1")
	require.False(t, live)
	require.Len(t, env.history(t, "u1"), 1)

	env.advance(11 * time.Minute)
	require.Equal(t, 0, env.engine.CleanupStaleSessions(ctx, 10*time.Minute))
	_, err = env.engine.Get(ctx, "u1", v.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDriverBroadcastsUntilFinished(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	user := env.user(t, "u1", 0, "10")

	v, err := env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(10))
	require.NoError(t, err)

	require.NoError(t, env.blockUntil(ctx, 1))
	env.advance(TickInterval)

	require.Eventually(t, func() bool {
		env.events.mu.Lock()
		defer env.events.mu.Unlock()
		return len(env.events.sessions) > 0
	}, time.Second, 10*time.Millisecond)

	env.events.mu.Lock()
	require.Equal(t, v.ID, env.events.sessions[0].ID)
	require.NotEmpty(t, env.events.balances)
	env.events.mu.Unlock()

	_, err = env.engine.Abandon(ctx, "u1", v.ID)
	require.NoError(t, err)
}

func TestCreateChallengePublishFailureRecordsForfeit(t *testing.T) {
	env := newEngineEnvWithBackend(t, &failingBackend{
		MemoryBackend: store.NewMemoryBackend(),
		failKey:       store.KeyGlobalChallenges,
	})
	ctx := context.Background()
	user := env.user(t, "u1", 0, "30")

	_, err := env.engine.CreateChallenge(ctx, user, "Tap Ball Battle", decimal.NewFromInt(10))
	require.Error(t, err)

	bal, err := env.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, bal.DepositBalance.Equal(decimal.NewFromInt(20)))

	history := env.history(t, "u1")
	require.Len(t, history, 1)
	require.Equal(t, models.OutcomeLoss, history[0].Outcome)
	require.Equal(t, int64(0), history[0].Reward)

	_, live := env.engine.Current(ctx, "u1")
	require.False(t, live)
}

func TestConcurrentEmojiHuntSessions(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const players = 8

	sessions := make([]*Session, players)
	for i := range sessions {
		user := env.user(t, fmt.Sprintf("u%d", i), 0, "10")
		v, err := env.engine.CreateChallenge(ctx, user, "Emoji Hunt Battle", decimal.NewFromInt(10))
		require.NoError(t, err)
		sessions[i] = env.session(t, v.ID)
	}
	late := make([]*models.UserAccount, players)
	for i := range late {
		late[i] = env.user(t, fmt.Sprintf("late%d", i), 0, "10")
	}
	env.advance(5 * time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, players*2)
	for i, s := range sessions {
		wg.Add(2)
		go func(s *Session) {
			defer wg.Done()
			task := s.task.(*emojiTask)
			for {
				s.mu.Lock()
				done := task.Completed()
				odd := task.oddCell()
				s.mu.Unlock()
				if done {
					return
				}
				if _, err := env.engine.Act(ctx, s.UserID, s.ID, odd); err != nil {
					errs <- err
					return
				}
			}
		}(s)
		go func(user *models.UserAccount) {
			defer wg.Done()
			if _, err := env.engine.CreateChallenge(ctx, user, "Emoji Hunt Battle", decimal.NewFromInt(10)); err != nil {
				errs <- err
			}
		}(late[i])
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	for _, s := range sessions {
		v, err := env.engine.Get(ctx, s.UserID, s.ID)
		require.NoError(t, err)
		require.Equal(t, StateFinished, v.State)
		require.Equal(t, models.OutcomeWin, v.Outcome)
	}
}
