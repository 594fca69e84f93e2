package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserAccount struct {
	ID             string          `json:"uid"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	PhotoURL       string          `json:"photo_url"`
	PhoneNumber    string          `json:"phone_number,omitempty"`
	Coins          int64           `json:"current_coins"`
	DepositBalance decimal.Decimal `json:"deposit_balance"`
	TotalEarned    int64           `json:"total_earned_coins"`
	CreatedAt      time.Time       `json:"created_at"`
}

type UserSession struct {
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}
