package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ChallengeStatus string

// Open is the only status a stored challenge ever carries. Acceptance and
// withdrawal remove the record from the lobby.
const ChallengeStatusOpen ChallengeStatus = "Open"

type Challenge struct {
	ID           string          `json:"id"`
	CreatorID    string          `json:"creator_id"`
	CreatorName  string          `json:"creator_name"`
	CreatorPhoto string          `json:"creator_photo"`
	GameTitle    string          `json:"game_title"`
	EntryFee     decimal.Decimal `json:"entry_fee"`
	Status       ChallengeStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Outcome string

const (
	OutcomeWin  Outcome = "Win"
	OutcomeLoss Outcome = "Loss"
)

type BattleRecord struct {
	ID        string          `json:"id"`
	GameTitle string          `json:"game_title"`
	EntryFee  decimal.Decimal `json:"entry_fee"`
	Outcome   Outcome         `json:"outcome"`
	Reward    int64           `json:"reward"`
	Timestamp time.Time       `json:"timestamp"`
}
