package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("amount must be a positive number")

func GenerateChallengeID() string {
	return fmt.Sprintf("CHL_%s", uuid.NewString())
}

func GenerateBattleID() string {
	return fmt.Sprintf("BTL_%s", uuid.NewString())
}

func GenerateTransactionID(now time.Time) string {
	return fmt.Sprintf("TX_%d_%d", now.UnixMilli(), uuid.New().ID())
}

func GenerateRequestID(now time.Time) string {
	return fmt.Sprintf("REQ_%d_%d", now.UnixMilli(), uuid.New().ID())
}

// ParseAmount parses a user-entered currency amount. Non-numeric and
// non-positive values are rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// CoinsToRupees converts win-coins into currency units at the fixed rate.
func CoinsToRupees(coins int64) decimal.Decimal {
	return decimal.NewFromInt(coins).Div(CoinsPerRupee)
}

// RupeesToCoins converts a currency amount to coins, rounding down.
func RupeesToCoins(amount decimal.Decimal) int64 {
	return amount.Mul(CoinsPerRupee).Floor().IntPart()
}

func FormatRupees(amount decimal.Decimal) string {
	return "₹" + amount.StringFixed(2)
}
