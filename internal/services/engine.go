package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashbattle-backend/internal/models"
)

var (
	ErrSessionNotFound   = errors.New("battle not found")
	ErrSessionInProgress = errors.New("another battle is already in progress")
	ErrSessionNotActive  = errors.New("battle is not active")
)

// Engine runs battle sessions. Each live session has a driver goroutine that
// polls it on the clock's ticker until the session ends.
type Engine struct {
	ledger      *Ledger
	lobby       *Lobby
	clock       clockwork.Clock
	logger      *zap.Logger
	broadcaster Broadcaster

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]string

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

func NewEngine(ledger *Ledger, lobby *Lobby, clock clockwork.Clock, rng *rand.Rand, logger *zap.Logger) *Engine {
	return &Engine{
		ledger:      ledger,
		lobby:       lobby,
		clock:       clock,
		logger:      logger,
		broadcaster: nopBroadcaster{},
		rng:         rng,
		sessions:    make(map[string]*Session),
		byUser:      make(map[string]string),
		done:        make(chan struct{}),
	}
}

func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

func (e *Engine) newTask(game GameConfig) Task {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return game.NewTask(e.rng)
}

func (e *Engine) sampleOpponent(game GameConfig) time.Duration {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return game.SampleOpponentTime(e.rng)
}

// reserve claims the user's single live-session slot.
func (e *Engine) reserve(userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.byUser[userID]; busy {
		return ErrSessionInProgress
	}
	e.byUser[userID] = ""
	return nil
}

func (e *Engine) unreserve(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.byUser[userID] == "" {
		delete(e.byUser, userID)
	}
}

func (e *Engine) register(s *Session) {
	e.mu.Lock()
	e.sessions[s.ID] = s
	e.byUser[s.UserID] = s.ID
	e.mu.Unlock()

	e.wg.Add(1)
	go e.drive(s)
}

func (e *Engine) release(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.byUser[s.UserID] == s.ID {
		delete(e.byUser, s.UserID)
	}
}

// CreateChallenge pays the fee, publishes a challenge and starts a session
// waiting for the simulated taker.
func (e *Engine) CreateChallenge(ctx context.Context, user *models.UserAccount, gameTitle string, fee decimal.Decimal) (SessionView, error) {
	game, ok := GameByTitle(gameTitle)
	if !ok {
		return SessionView{}, ErrUnknownGame
	}
	if !fee.IsPositive() {
		return SessionView{}, models.ErrInvalidAmount
	}

	if err := e.reserve(user.ID); err != nil {
		return SessionView{}, err
	}

	if _, err := e.ledger.PayFee(ctx, user.ID, fee, game.Title); err != nil {
		e.unreserve(user.ID)
		return SessionView{}, err
	}

	creator := Creator{ID: user.ID, Name: user.Name, Photo: user.PhotoURL}
	ch, err := e.lobby.Create(ctx, creator, game.Title, fee)
	if err != nil {
		e.unreserve(user.ID)
		e.logger.Error("fee paid but challenge not published",
			zap.String("user_id", user.ID), zap.Error(err))
		// The paid fee still gets its one battle record, as a forfeit.
		if _, recErr := e.ledger.RecordBattle(ctx, user.ID, game.Title, fee, models.OutcomeLoss, 0); recErr != nil {
			e.logger.Error("failed to record forfeited battle",
				zap.String("user_id", user.ID), zap.Error(recErr))
		}
		return SessionView{}, fmt.Errorf("failed to publish challenge: %w", err)
	}

	now := e.clock.Now()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Game:         game,
		Fee:          fee,
		Role:         RoleCreator,
		ChallengeID:  ch.ID,
		State:        StatePublishing,
		CreatedAt:    now,
		ReadyAt:      now.Add(game.PublishDelay),
		LastActivity: now,
		task:         e.newTask(game),
		stop:         make(chan struct{}),
	}
	e.register(s)

	e.logger.Info("battle published",
		zap.String("session_id", s.ID),
		zap.String("user_id", user.ID),
		zap.String("game", game.Title),
		zap.String("fee", fee.String()))

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(now), nil
}

// AcceptChallenge takes a challenge off the lobby and pays its fee. If the
// fee cannot be paid the challenge goes back to the lobby.
func (e *Engine) AcceptChallenge(ctx context.Context, user *models.UserAccount, challengeID string) (SessionView, error) {
	if err := e.reserve(user.ID); err != nil {
		return SessionView{}, err
	}

	listed, err := e.lobby.Find(ctx, challengeID)
	if err != nil {
		e.unreserve(user.ID)
		return SessionView{}, err
	}
	affordable, err := e.ledger.CanAfford(ctx, user.ID, listed.EntryFee)
	if err != nil {
		e.unreserve(user.ID)
		return SessionView{}, err
	}
	if !affordable {
		e.unreserve(user.ID)
		return SessionView{}, ErrInsufficientFunds
	}

	ch, err := e.lobby.Accept(ctx, challengeID, user.ID)
	if err != nil {
		e.unreserve(user.ID)
		return SessionView{}, err
	}

	game, ok := GameByTitle(ch.GameTitle)
	if !ok {
		e.unreserve(user.ID)
		return SessionView{}, ErrUnknownGame
	}

	if _, err := e.ledger.PayFee(ctx, user.ID, ch.EntryFee, game.Title); err != nil {
		e.unreserve(user.ID)
		if restoreErr := e.lobby.Restore(ctx, ch); restoreErr != nil {
			e.logger.Error("failed to restore challenge",
				zap.String("challenge_id", ch.ID), zap.Error(restoreErr))
		}
		return SessionView{}, err
	}

	now := e.clock.Now()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Game:         game,
		Fee:          ch.EntryFee,
		Role:         RoleAcceptor,
		ChallengeID:  ch.ID,
		Opponent:     Creator{ID: ch.CreatorID, Name: ch.CreatorName, Photo: ch.CreatorPhoto},
		State:        StateSearching,
		CreatedAt:    now,
		ReadyAt:      now.Add(game.SearchDelay),
		LastActivity: now,
		task:         e.newTask(game),
		stop:         make(chan struct{}),
	}
	e.register(s)

	e.logger.Info("challenge accepted",
		zap.String("session_id", s.ID),
		zap.String("user_id", user.ID),
		zap.String("challenge_id", ch.ID))

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(now), nil
}

func (e *Engine) lookup(userID, sessionID string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// advance applies every transition due at now. Callers hold s.mu.
func (e *Engine) advance(ctx context.Context, s *Session, now time.Time) {
	if (s.State == StatePublishing || s.State == StateSearching) && !now.Before(s.ReadyAt) {
		if s.State == StatePublishing {
			// The simulated taker consumes the published challenge.
			if err := e.lobby.Remove(ctx, s.ChallengeID); err != nil {
				e.logger.Warn("failed to remove matched challenge",
					zap.String("challenge_id", s.ChallengeID), zap.Error(err))
			}
			e.rngMu.Lock()
			name := botNames[e.rng.Intn(len(botNames))]
			e.rngMu.Unlock()
			s.Opponent = Creator{ID: "bot_" + s.ID, Name: name, Photo: avatarURL(name)}
		}
		s.State = StateActive
		s.StartedAt = s.ReadyAt
		s.OpponentTime = e.sampleOpponent(s.Game)
	}

	if outcome, over := s.judge(now); over {
		e.finish(ctx, s, now, outcome, StateFinished)
	}
}

// finish records the outcome once and stops the driver. Callers hold s.mu.
func (e *Engine) finish(ctx context.Context, s *Session, now time.Time, outcome models.Outcome, final SessionState) {
	if s.recorded {
		return
	}

	s.elapsed = s.elapsedAt(now)
	if s.Game.AutoFinishAfter > 0 && s.elapsed > s.Game.AutoFinishAfter {
		s.elapsed = s.Game.AutoFinishAfter
	}
	s.outcome = outcome
	if outcome == models.OutcomeWin {
		s.reward = RewardFor(s.Fee)
	}
	s.State = final
	s.recorded = true
	close(s.stop)
	e.release(s)

	if _, err := e.ledger.RecordBattle(ctx, s.UserID, s.Game.Title, s.Fee, s.outcome, s.reward); err != nil {
		e.logger.Error("failed to record battle",
			zap.String("session_id", s.ID), zap.Error(err))
	}

	e.logger.Info("battle finished",
		zap.String("session_id", s.ID),
		zap.String("user_id", s.UserID),
		zap.String("outcome", string(s.outcome)),
		zap.Int64("reward", s.reward),
		zap.Duration("elapsed", s.elapsed),
		zap.Duration("opponent_time", s.OpponentTime))
}

func (e *Engine) Get(ctx context.Context, userID, sessionID string) (SessionView, error) {
	s, err := e.lookup(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}

	now := e.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e.advance(ctx, s, now)
	return s.view(now), nil
}

// Act feeds one player input into an active session.
func (e *Engine) Act(ctx context.Context, userID, sessionID string, cell int) (SessionView, error) {
	s, err := e.lookup(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}

	now := e.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e.advance(ctx, s, now)
	if s.State != StateActive {
		return s.view(now), ErrSessionNotActive
	}

	if err := s.task.Act(cell); err != nil {
		return s.view(now), err
	}
	s.LastActivity = now

	e.advance(ctx, s, now)
	v := s.view(now)
	e.broadcaster.BroadcastSession(s.UserID, v)
	return v, nil
}

// Abandon ends a session early. A published challenge is withdrawn and the
// battle is recorded as a loss; the entry fee is not refunded.
func (e *Engine) Abandon(ctx context.Context, userID, sessionID string) (SessionView, error) {
	s, err := e.lookup(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}

	now := e.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e.advance(ctx, s, now)
	if s.State.Terminal() {
		return s.view(now), nil
	}

	e.abandon(ctx, s, now)
	return s.view(now), nil
}

// abandon must be called with s.mu held on a non-terminal session.
func (e *Engine) abandon(ctx context.Context, s *Session, now time.Time) {
	if s.State == StatePublishing {
		if err := e.lobby.Remove(ctx, s.ChallengeID); err != nil {
			e.logger.Warn("failed to withdraw challenge",
				zap.String("challenge_id", s.ChallengeID), zap.Error(err))
		}
	}
	e.finish(ctx, s, now, models.OutcomeLoss, StateAbandoned)
}

// Current returns the user's live session, if any.
func (e *Engine) Current(ctx context.Context, userID string) (SessionView, bool) {
	e.mu.Lock()
	id := e.byUser[userID]
	e.mu.Unlock()

	if id == "" {
		return SessionView{}, false
	}
	v, err := e.Get(ctx, userID, id)
	if err != nil {
		return SessionView{}, false
	}
	return v, true
}

func (e *Engine) drive(s *Session) {
	defer e.wg.Done()

	ticker := e.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-ticker.Chan():
			now := e.clock.Now()
			s.mu.Lock()
			e.advance(ctx, s, now)
			v := s.view(now)
			over := s.State.Terminal()
			s.mu.Unlock()

			e.broadcaster.BroadcastSession(s.UserID, v)
			if over {
				return
			}

		case <-s.stop:
			return

		case <-e.done:
			return
		}
	}
}

// CleanupStaleSessions abandons live sessions with no activity for maxAge and
// forgets terminal ones older than maxAge.
func (e *Engine) CleanupStaleSessions(ctx context.Context, maxAge time.Duration) int {
	e.mu.Lock()
	snapshot := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		snapshot = append(snapshot, s)
	}
	e.mu.Unlock()

	now := e.clock.Now()
	cleaned := 0
	for _, s := range snapshot {
		s.mu.Lock()
		e.advance(ctx, s, now)
		stale := now.Sub(s.LastActivity) > maxAge
		if stale && !s.State.Terminal() {
			e.abandon(ctx, s, now)
			cleaned++
		}
		forget := stale && s.State.Terminal()
		s.mu.Unlock()

		if forget {
			e.mu.Lock()
			delete(e.sessions, s.ID)
			e.mu.Unlock()
		}
	}

	if cleaned > 0 {
		e.logger.Info("stale battles abandoned", zap.Int("count", cleaned))
	}
	return cleaned
}

// Shutdown stops every driver goroutine and waits for them to exit.
func (e *Engine) Shutdown() {
	e.once.Do(func() { close(e.done) })
	e.wg.Wait()
}
