package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/store"
)

var (
	ErrAlreadyClaimed = errors.New("already claimed today")
	ErrNoFreeTurn     = errors.New("free turn used today, watch an ad to play again")
)

type RewardKind string

const (
	RewardDaily   RewardKind = "daily"
	RewardScratch RewardKind = "scratch"
	RewardSpin    RewardKind = "spin"
)

const (
	DailyBonusCoins int64 = 50
	claimDateLayout       = "2006-01-02"
)

// SpinSegments are the wheel payouts in coins, in wheel order.
var SpinSegments = []int64{50, 10, 100, 0, 200, 20}

type Grant struct {
	Kind    RewardKind     `json:"kind"`
	Coins   int64          `json:"coins"`
	Segment int            `json:"segment"`
	Free    bool           `json:"free"`
	Balance models.Balance `json:"balance"`
}

type RewardStatus struct {
	DailyAvailable   bool  `json:"daily_available"`
	FreeScratch      bool  `json:"free_scratch"`
	FreeSpin         bool  `json:"free_spin"`
	DailyBonusAmount int64 `json:"daily_bonus_amount"`
}

// Rewards grants the once-per-day bonuses. Day boundaries are UTC.
type Rewards struct {
	ledger *Ledger
	store  *store.Store
	clock  clockwork.Clock
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRewards(ledger *Ledger, s *store.Store, clock clockwork.Clock, rng *rand.Rand, logger *zap.Logger) *Rewards {
	return &Rewards{
		ledger: ledger,
		store:  s,
		clock:  clock,
		logger: logger,
		rng:    rng,
	}
}

func (r *Rewards) today() string {
	return r.clock.Now().UTC().Format(claimDateLayout)
}

func (r *Rewards) claimedToday(ctx context.Context, userID string, kind RewardKind) (bool, error) {
	var last string
	found, err := r.store.Get(ctx, store.ClaimKey(userID, string(kind)), &last)
	if err != nil {
		return false, fmt.Errorf("failed to get claim marker: %w", err)
	}
	return found && last == r.today(), nil
}

func (r *Rewards) markClaimed(ctx context.Context, userID string, kind RewardKind) error {
	if err := r.store.Set(ctx, store.ClaimKey(userID, string(kind)), r.today()); err != nil {
		return fmt.Errorf("failed to save claim marker: %w", err)
	}
	return nil
}

func (r *Rewards) Status(ctx context.Context, userID string) (RewardStatus, error) {
	status := RewardStatus{DailyBonusAmount: DailyBonusCoins}

	for kind, dst := range map[RewardKind]*bool{
		RewardDaily:   &status.DailyAvailable,
		RewardScratch: &status.FreeScratch,
		RewardSpin:    &status.FreeSpin,
	} {
		claimed, err := r.claimedToday(ctx, userID, kind)
		if err != nil {
			return RewardStatus{}, err
		}
		*dst = !claimed
	}
	return status, nil
}

func (r *Rewards) ClaimDaily(ctx context.Context, userID string) (Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claimed, err := r.claimedToday(ctx, userID, RewardDaily)
	if err != nil {
		return Grant{}, err
	}
	if claimed {
		return Grant{}, ErrAlreadyClaimed
	}

	balance, err := r.ledger.Grant(ctx, userID, DailyBonusCoins, models.TransactionTypeDailyBonus, "Daily bonus")
	if err != nil {
		return Grant{}, err
	}
	if err := r.markClaimed(ctx, userID, RewardDaily); err != nil {
		return Grant{}, err
	}

	r.logger.Info("daily bonus claimed", zap.String("user_id", userID))
	return Grant{Kind: RewardDaily, Coins: DailyBonusCoins, Free: true, Balance: balance}, nil
}

// turn decides whether a scratch or spin may be played: the first of the day
// is free, later ones need a watched ad. The free turn is only spent by
// markClaimed once the grant has gone through.
func (r *Rewards) turn(ctx context.Context, userID string, kind RewardKind, adWatched bool) (bool, error) {
	claimed, err := r.claimedToday(ctx, userID, kind)
	if err != nil {
		return false, err
	}
	if !claimed {
		return true, nil
	}
	if !adWatched {
		return false, ErrNoFreeTurn
	}
	return false, nil
}

func (r *Rewards) Scratch(ctx context.Context, userID string, adWatched bool) (Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	free, err := r.turn(ctx, userID, RewardScratch, adWatched)
	if err != nil {
		return Grant{}, err
	}

	coins := int64(r.rng.Intn(200) + 10)
	balance, err := r.ledger.Grant(ctx, userID, coins, models.TransactionTypeScratch,
		fmt.Sprintf("Won %d coins from scratch card", coins))
	if err != nil {
		return Grant{}, err
	}
	if free {
		if err := r.markClaimed(ctx, userID, RewardScratch); err != nil {
			return Grant{}, err
		}
	}
	return Grant{Kind: RewardScratch, Coins: coins, Free: free, Balance: balance}, nil
}

func (r *Rewards) Spin(ctx context.Context, userID string, adWatched bool) (Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	free, err := r.turn(ctx, userID, RewardSpin, adWatched)
	if err != nil {
		return Grant{}, err
	}

	segment := r.rng.Intn(len(SpinSegments))
	coins := SpinSegments[segment]
	balance, err := r.ledger.Grant(ctx, userID, coins, models.TransactionTypeSpin,
		fmt.Sprintf("Won %d coins from spin wheel", coins))
	if err != nil {
		return Grant{}, err
	}
	if free {
		if err := r.markClaimed(ctx, userID, RewardSpin); err != nil {
			return Grant{}, err
		}
	}
	return Grant{Kind: RewardSpin, Coins: coins, Segment: segment, Free: free, Balance: balance}, nil
}
