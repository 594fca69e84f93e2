package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/store"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientCoins      = errors.New("insufficient coins")
	ErrBelowMinimumWithdrawal = errors.New("withdrawal below minimum")
	ErrProductNotFound        = errors.New("product not found")
)

// Ledger owns every balance mutation. Each operation is a single
// read-modify-write of the profile under the ledger lock.
type Ledger struct {
	store       *store.Store
	clock       clockwork.Clock
	logger      *zap.Logger
	broadcaster Broadcaster

	mu sync.Mutex
}

func NewLedger(s *store.Store, clock clockwork.Clock, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:       s,
		clock:       clock,
		logger:      logger,
		broadcaster: nopBroadcaster{},
	}
}

func (l *Ledger) SetBroadcaster(b Broadcaster) {
	l.broadcaster = b
}

func (l *Ledger) load(ctx context.Context, userID string) (*models.UserAccount, error) {
	var acct models.UserAccount
	found, err := l.store.Get(ctx, store.UserProfileKey(userID), &acct)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if !found {
		return nil, ErrAccountNotFound
	}
	return &acct, nil
}

func (l *Ledger) save(ctx context.Context, acct *models.UserAccount) error {
	if err := l.store.Set(ctx, store.UserProfileKey(acct.ID), acct); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	l.broadcaster.BroadcastBalance(acct.ID, acct.Balance())
	return nil
}

func (l *Ledger) appendTransaction(ctx context.Context, userID string, txType models.TransactionType, amount decimal.Decimal, description string) error {
	now := l.clock.Now()
	tx := models.Transaction{
		ID:          models.GenerateTransactionID(now),
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Timestamp:   now,
	}
	if err := store.PushFront(ctx, l.store, store.TransactionsKey(userID), tx, store.MaxTransactions); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// EnsureAccount stores acct unless a profile already exists for its id and
// returns the stored profile. created reports whether acct was written.
func (l *Ledger) EnsureAccount(ctx context.Context, acct *models.UserAccount) (*models.UserAccount, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.load(ctx, acct.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	if err := l.save(ctx, acct); err != nil {
		return nil, false, err
	}
	return acct, true, nil
}

func (l *Ledger) Account(ctx context.Context, userID string) (*models.UserAccount, error) {
	return l.load(ctx, userID)
}

func (l *Ledger) Balance(ctx context.Context, userID string) (models.Balance, error) {
	acct, err := l.load(ctx, userID)
	if err != nil {
		return models.Balance{}, err
	}
	return acct.Balance(), nil
}

func applyCredit(acct *models.UserAccount, coinDelta int64, depositDelta decimal.Decimal) {
	acct.Coins += coinDelta
	if acct.Coins < 0 {
		acct.Coins = 0
	}

	acct.DepositBalance = acct.DepositBalance.Add(depositDelta)
	if acct.DepositBalance.IsNegative() {
		acct.DepositBalance = decimal.Zero
	}

	if coinDelta > 0 {
		acct.TotalEarned += coinDelta
	}
}

// Credit adjusts both balances, clamping each at zero. Positive coin deltas
// also count towards lifetime earnings. It never fails on balance grounds.
func (l *Ledger) Credit(ctx context.Context, userID string, coinDelta int64, depositDelta decimal.Decimal) (models.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.load(ctx, userID)
	if err != nil {
		return models.Balance{}, err
	}

	applyCredit(acct, coinDelta, depositDelta)
	if err := l.save(ctx, acct); err != nil {
		return models.Balance{}, err
	}
	return acct.Balance(), nil
}

// CanAfford reports whether deposit plus converted coins covers fee.
func (l *Ledger) CanAfford(ctx context.Context, userID string, fee decimal.Decimal) (bool, error) {
	acct, err := l.load(ctx, userID)
	if err != nil {
		return false, err
	}
	return !acct.Balance().SpendingPower.LessThan(fee), nil
}

// PayFee deducts fee from the deposit balance first and covers any remainder
// with coins at the fixed rate, rounding the coin cost down. When the
// combined balance is short nothing is changed and ErrInsufficientFunds is
// returned.
func (l *Ledger) PayFee(ctx context.Context, userID string, fee decimal.Decimal, gameTitle string) (models.Balance, error) {
	if !fee.IsPositive() {
		return models.Balance{}, models.ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.load(ctx, userID)
	if err != nil {
		return models.Balance{}, err
	}

	if acct.Balance().SpendingPower.LessThan(fee) {
		return models.Balance{}, ErrInsufficientFunds
	}

	if acct.DepositBalance.GreaterThanOrEqual(fee) {
		acct.DepositBalance = acct.DepositBalance.Sub(fee)
	} else {
		remaining := fee.Sub(acct.DepositBalance)
		acct.DepositBalance = decimal.Zero
		acct.Coins -= models.RupeesToCoins(remaining)
		if acct.Coins < 0 {
			acct.Coins = 0
		}
	}

	if err := l.save(ctx, acct); err != nil {
		return models.Balance{}, err
	}

	if err := l.appendTransaction(ctx, userID, models.TransactionTypeBattleEntry, fee,
		fmt.Sprintf("Entry fee for %s", gameTitle)); err != nil {
		l.logger.Warn("fee paid without transaction entry", zap.String("user_id", userID), zap.Error(err))
	}

	l.logger.Info("entry fee paid",
		zap.String("user_id", userID),
		zap.String("fee", fee.String()),
		zap.Int64("coins", acct.Coins),
		zap.String("deposit", acct.DepositBalance.String()))

	return acct.Balance(), nil
}

// RecordBattle credits a winning reward and prepends the battle to history.
func (l *Ledger) RecordBattle(ctx context.Context, userID, gameTitle string, fee decimal.Decimal, outcome models.Outcome, reward int64) (*models.BattleRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if outcome == models.OutcomeWin && reward > 0 {
		acct, err := l.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		applyCredit(acct, reward, decimal.Zero)
		if err := l.save(ctx, acct); err != nil {
			return nil, err
		}
		if err := l.appendTransaction(ctx, userID, models.TransactionTypeBattleWin, decimal.NewFromInt(reward),
			fmt.Sprintf("Won %s", gameTitle)); err != nil {
			l.logger.Warn("reward credited without transaction entry", zap.String("user_id", userID), zap.Error(err))
		}
	} else {
		reward = 0
	}

	record := models.BattleRecord{
		ID:        models.GenerateBattleID(),
		GameTitle: gameTitle,
		EntryFee:  fee,
		Outcome:   outcome,
		Reward:    reward,
		Timestamp: l.clock.Now(),
	}
	if err := store.PushFront(ctx, l.store, store.BattleHistoryKey(userID), record, store.MaxBattleHistory); err != nil {
		return nil, fmt.Errorf("failed to record battle: %w", err)
	}

	return &record, nil
}

func (l *Ledger) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, models.ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.load(ctx, userID)
	if err != nil {
		return models.Balance{}, err
	}

	applyCredit(acct, 0, amount)
	if err := l.save(ctx, acct); err != nil {
		return models.Balance{}, err
	}

	if err := l.appendTransaction(ctx, userID, models.TransactionTypeDeposit, amount,
		fmt.Sprintf("Deposited %s to wallet", models.FormatRupees(amount))); err != nil {
		return models.Balance{}, err
	}
	return acct.Balance(), nil
}

// Withdraw converts coins into a pending cash-out request.
func (l *Ledger) Withdraw(ctx context.Context, userID string, coins int64) (*models.RedeemRequest, error) {
	if coins < models.MinWithdrawalCoins {
		return nil, ErrBelowMinimumWithdrawal
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct.Coins < coins {
		return nil, ErrInsufficientCoins
	}

	title := fmt.Sprintf("Redeem %s", models.FormatRupees(models.CoinsToRupees(coins)))
	return l.redeem(ctx, acct, title, coins)
}

func (l *Ledger) RedeemProduct(ctx context.Context, userID, productID string) (*models.RedeemRequest, error) {
	product, ok := models.FindProduct(productID)
	if !ok || !product.IsActive {
		return nil, ErrProductNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct.Coins < product.CoinCost {
		return nil, ErrInsufficientCoins
	}

	return l.redeem(ctx, acct, product.Title, product.CoinCost)
}

// redeem must be called with l.mu held and coins already checked.
func (l *Ledger) redeem(ctx context.Context, acct *models.UserAccount, title string, coins int64) (*models.RedeemRequest, error) {
	acct.Coins -= coins
	if err := l.save(ctx, acct); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	req := models.RedeemRequest{
		RequestID:    models.GenerateRequestID(now),
		UserID:       acct.ID,
		Email:        acct.Email,
		ProductTitle: title,
		CoinCost:     coins,
		Status:       models.RequestStatusPending,
		RequestedAt:  now,
	}
	if err := store.PushFront(ctx, l.store, store.RedeemRequestsKey(acct.ID), req, store.MaxRedeemRequests); err != nil {
		return nil, fmt.Errorf("failed to record redeem request: %w", err)
	}

	if err := l.appendTransaction(ctx, acct.ID, models.TransactionTypeRedeem, decimal.NewFromInt(coins), title); err != nil {
		return nil, err
	}

	l.logger.Info("redeem requested",
		zap.String("user_id", acct.ID),
		zap.String("title", title),
		zap.Int64("coins", coins))

	return &req, nil
}

// Grant credits a reward and records it as a transaction of txType.
func (l *Ledger) Grant(ctx context.Context, userID string, coins int64, txType models.TransactionType, description string) (models.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.load(ctx, userID)
	if err != nil {
		return models.Balance{}, err
	}

	applyCredit(acct, coins, decimal.Zero)
	if err := l.save(ctx, acct); err != nil {
		return models.Balance{}, err
	}

	if coins > 0 {
		if err := l.appendTransaction(ctx, userID, txType, decimal.NewFromInt(coins), description); err != nil {
			return models.Balance{}, err
		}
	}
	return acct.Balance(), nil
}

func (l *Ledger) History(ctx context.Context, userID string) ([]models.BattleRecord, error) {
	return store.List[models.BattleRecord](ctx, l.store, store.BattleHistoryKey(userID))
}

func (l *Ledger) Transactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	return store.List[models.Transaction](ctx, l.store, store.TransactionsKey(userID))
}

func (l *Ledger) RedeemRequests(ctx context.Context, userID string) ([]models.RedeemRequest, error) {
	return store.List[models.RedeemRequest](ctx, l.store, store.RedeemRequestsKey(userID))
}
