package models

import "github.com/shopspring/decimal"

// CoinsPerRupee is the fixed conversion rate between win-coins and currency units.
var CoinsPerRupee = decimal.NewFromInt(100)

const (
	WelcomeBonusCoins  int64 = 100
	MinWithdrawalCoins int64 = 500
)

type Balance struct {
	Coins          int64           `json:"coins"`
	DepositBalance decimal.Decimal `json:"deposit_balance"`
	TotalEarned    int64           `json:"total_earned"`
	// SpendingPower is deposit plus coins at the conversion rate.
	SpendingPower decimal.Decimal `json:"spending_power"`
}

func (u *UserAccount) Balance() Balance {
	return Balance{
		Coins:          u.Coins,
		DepositBalance: u.DepositBalance,
		TotalEarned:    u.TotalEarned,
		SpendingPower:  u.DepositBalance.Add(CoinsToRupees(u.Coins)),
	}
}
