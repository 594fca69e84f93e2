package models

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AmountInput is a client-supplied money amount, sent either as a JSON
// string ("10.50") or a JSON number (10.5). Validation happens in Parse.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = AmountInput(s)
		return nil
	}
	*a = AmountInput(bytes.TrimSpace(data))
	return nil
}

func (a AmountInput) Parse() (decimal.Decimal, error) {
	return ParseAmount(string(a))
}

type CreateBattleRequest struct {
	GameTitle string      `json:"game_title" binding:"required"`
	EntryFee  AmountInput `json:"entry_fee" binding:"required"`
}

type AcceptBattleRequest struct {
	ChallengeID string `json:"challenge_id" binding:"required"`
}

// BattleActionRequest carries one player input. Cell is used by grid games,
// counter games ignore it.
type BattleActionRequest struct {
	Cell int `json:"cell"`
}

type DepositRequest struct {
	Amount AmountInput `json:"amount" binding:"required"`
}

type WithdrawRequest struct {
	Coins int64 `json:"coins" binding:"required"`
}

type ShopRedeemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

type RewardClaimRequest struct {
	AdWatched bool `json:"ad_watched"`
}

type LoginRequest struct {
	Method string `json:"method" binding:"required,oneof=google phone"`
	Phone  string `json:"phone"`
	OTP    string `json:"otp"`
}
