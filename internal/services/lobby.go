package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/store"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrOwnChallenge      = errors.New("cannot accept your own challenge")
	ErrUnknownGame       = errors.New("unknown game")
)

const (
	// BotFillThreshold is the lobby size at or above which no bots are added.
	BotFillThreshold = 8
)

var (
	botNames = []string{"Aryan", "Deepak", "Sonia", "Vikram", "Anjali", "Karan", "Meena", "Rohan", "Sneha"}
	botFees  = []int64{10, 20, 50, 100}
)

func avatarURL(seed string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + seed
}

type Creator struct {
	ID    string
	Name  string
	Photo string
}

// Lobby is the shared list of open challenges, newest last.
type Lobby struct {
	store  *store.Store
	clock  clockwork.Clock
	logger *zap.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	botChance float64
}

func NewLobby(s *store.Store, clock clockwork.Clock, rng *rand.Rand, botChance float64, logger *zap.Logger) *Lobby {
	return &Lobby{
		store:     s,
		clock:     clock,
		logger:    logger,
		rng:       rng,
		botChance: botChance,
	}
}

func (l *Lobby) load(ctx context.Context) ([]models.Challenge, error) {
	challenges, err := store.List[models.Challenge](ctx, l.store, store.KeyGlobalChallenges)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenges: %w", err)
	}
	return challenges, nil
}

// save trims to the newest MaxChallenges entries before writing.
func (l *Lobby) save(ctx context.Context, challenges []models.Challenge) error {
	if len(challenges) > store.MaxChallenges {
		challenges = challenges[len(challenges)-store.MaxChallenges:]
	}
	return l.write(ctx, challenges)
}

func (l *Lobby) write(ctx context.Context, challenges []models.Challenge) error {
	if err := l.store.Set(ctx, store.KeyGlobalChallenges, challenges); err != nil {
		return fmt.Errorf("failed to save challenges: %w", err)
	}
	return nil
}

// List returns open challenges, optionally filtered by game title and
// excluding those created by excludeCreator.
func (l *Lobby) List(ctx context.Context, gameTitle, excludeCreator string) ([]models.Challenge, error) {
	challenges, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Challenge, 0, len(challenges))
	for _, ch := range challenges {
		if gameTitle != "" && ch.GameTitle != gameTitle {
			continue
		}
		if excludeCreator != "" && ch.CreatorID == excludeCreator {
			continue
		}
		filtered = append(filtered, ch)
	}
	return filtered, nil
}

func (l *Lobby) Find(ctx context.Context, id string) (*models.Challenge, error) {
	challenges, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, ch := range challenges {
		if ch.ID == id {
			return &ch, nil
		}
	}
	return nil, ErrChallengeNotFound
}

func (l *Lobby) Create(ctx context.Context, creator Creator, gameTitle string, fee decimal.Decimal) (*models.Challenge, error) {
	if _, ok := GameByTitle(gameTitle); !ok {
		return nil, ErrUnknownGame
	}
	if !fee.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	ch := models.Challenge{
		ID:           models.GenerateChallengeID(),
		CreatorID:    creator.ID,
		CreatorName:  creator.Name,
		CreatorPhoto: creator.Photo,
		GameTitle:    gameTitle,
		EntryFee:     fee,
		Status:       models.ChallengeStatusOpen,
		CreatedAt:    l.clock.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	challenges, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.save(ctx, append(challenges, ch)); err != nil {
		return nil, err
	}

	l.logger.Info("challenge created",
		zap.String("challenge_id", ch.ID),
		zap.String("creator_id", creator.ID),
		zap.String("game", gameTitle))
	return &ch, nil
}

// take removes the challenge with id and returns it, or nil when absent.
// Callers must hold l.mu.
func (l *Lobby) take(ctx context.Context, id string) (*models.Challenge, error) {
	challenges, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	for i, ch := range challenges {
		if ch.ID != id {
			continue
		}
		rest := append(challenges[:i:i], challenges[i+1:]...)
		if err := l.save(ctx, rest); err != nil {
			return nil, err
		}
		return &ch, nil
	}
	return nil, nil
}

// Remove withdraws a challenge. Removing an absent id is a no-op.
func (l *Lobby) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.take(ctx, id)
	return err
}

// RemoveOwned withdraws a challenge only if userID created it. Unlike
// Remove, a missing or foreign challenge is ErrChallengeNotFound.
func (l *Lobby) RemoveOwned(ctx context.Context, id, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, err := l.Find(ctx, id)
	if err != nil {
		return err
	}
	if ch.CreatorID != userID {
		return ErrChallengeNotFound
	}

	_, err = l.take(ctx, id)
	return err
}

// Accept removes the challenge and hands it to the acceptor. Exactly one of
// several concurrent accepts succeeds; the rest get ErrChallengeNotFound.
func (l *Lobby) Accept(ctx context.Context, id, acceptorID string) (*models.Challenge, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	challenges, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, ch := range challenges {
		if ch.ID == id && ch.CreatorID == acceptorID {
			return nil, ErrOwnChallenge
		}
	}

	ch, err := l.take(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChallengeNotFound
	}
	return ch, nil
}

// Restore puts back a challenge whose acceptance was not paid for, at its
// creation-order position. It never evicts another challenge.
func (l *Lobby) Restore(ctx context.Context, ch *models.Challenge) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	challenges, err := l.load(ctx)
	if err != nil {
		return err
	}

	pos := len(challenges)
	for i, existing := range challenges {
		if existing.CreatedAt.After(ch.CreatedAt) {
			pos = i
			break
		}
	}
	restored := make([]models.Challenge, 0, len(challenges)+1)
	restored = append(restored, challenges[:pos]...)
	restored = append(restored, *ch)
	restored = append(restored, challenges[pos:]...)
	return l.write(ctx, restored)
}

// GenerateBotChallenge adds a random bot challenge on a coin flip while the
// lobby holds fewer than BotFillThreshold entries.
func (l *Lobby) GenerateBotChallenge(ctx context.Context) (*models.Challenge, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	challenges, err := l.load(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(challenges) >= BotFillThreshold || l.rng.Float64() >= l.botChance {
		return nil, false, nil
	}

	now := l.clock.Now()
	name := botNames[l.rng.Intn(len(botNames))]
	game := Catalog[l.rng.Intn(len(Catalog))]
	ch := models.Challenge{
		ID:           models.GenerateChallengeID(),
		CreatorID:    fmt.Sprintf("bot_%d", now.UnixNano()),
		CreatorName:  name,
		CreatorPhoto: avatarURL(name),
		GameTitle:    game.Title,
		EntryFee:     decimal.NewFromInt(botFees[l.rng.Intn(len(botFees))]),
		Status:       models.ChallengeStatusOpen,
		CreatedAt:    now,
	}

	if err := l.save(ctx, append(challenges, ch)); err != nil {
		return nil, false, err
	}

	l.logger.Debug("bot challenge generated",
		zap.String("challenge_id", ch.ID),
		zap.String("game", ch.GameTitle))
	return &ch, true, nil
}

// Seed writes the starter lobby when none has been stored yet.
func (l *Lobby) Seed(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var existing []models.Challenge
	found, err := l.store.Get(ctx, store.KeyGlobalChallenges, &existing)
	if err != nil {
		return false, fmt.Errorf("failed to get challenges: %w", err)
	}
	if found {
		return false, nil
	}

	now := l.clock.Now()
	seed := []models.Challenge{
		{
			ID:           "c1",
			CreatorID:    "bot1",
			CreatorName:  "Rahul Kumar",
			CreatorPhoto: avatarURL("Rahul"),
			GameTitle:    "Ludo Battle",
			EntryFee:     decimal.NewFromInt(10),
			Status:       models.ChallengeStatusOpen,
			CreatedAt:    now,
		},
		{
			ID:           "c2",
			CreatorID:    "bot2",
			CreatorName:  "Priya S.",
			CreatorPhoto: avatarURL("Priya"),
			GameTitle:    "Mines Battle",
			EntryFee:     decimal.NewFromInt(50),
			Status:       models.ChallengeStatusOpen,
			CreatedAt:    now,
		},
	}

	if err := l.save(ctx, seed); err != nil {
		return false, err
	}
	l.logger.Info("lobby seeded", zap.Int("challenges", len(seed)))
	return true, nil
}
