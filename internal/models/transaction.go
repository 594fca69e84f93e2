package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeScratch     TransactionType = "Scratch"
	TransactionTypeSpin        TransactionType = "Spin"
	TransactionTypeDailyBonus  TransactionType = "Daily_Bonus"
	TransactionTypeRedeem      TransactionType = "Redeem"
	TransactionTypeDeposit     TransactionType = "Deposit"
	TransactionTypeBattleEntry TransactionType = "Battle_Entry"
	TransactionTypeBattleWin   TransactionType = "Battle_Win"
)

// Transaction amounts are coins for reward and battle-win entries and
// currency units for deposits and battle entries.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "Pending"
	RequestStatusApproved RequestStatus = "Approved"
	RequestStatusRejected RequestStatus = "Rejected"
)

type RedeemRequest struct {
	RequestID    string        `json:"request_id"`
	UserID       string        `json:"user_id"`
	Email        string        `json:"email"`
	ProductTitle string        `json:"product_title"`
	CoinCost     int64         `json:"coin_cost"`
	Status       RequestStatus `json:"status"`
	RedeemCode   string        `json:"redeem_code"`
	RequestedAt  time.Time     `json:"requested_at"`
}
