package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/services"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, services.ErrUnknownGame),
		errors.Is(err, services.ErrInvalidAction),
		errors.Is(err, services.ErrBelowMinimumWithdrawal),
		errors.Is(err, services.ErrInvalidPhone),
		errors.Is(err, services.ErrInvalidOTP),
		errors.Is(err, services.ErrUnknownMethod):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrInsufficientCoins):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrChallengeNotFound),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyClaimed),
		errors.Is(err, services.ErrNoFreeTurn),
		errors.Is(err, services.ErrSessionInProgress),
		errors.Is(err, services.ErrSessionNotActive),
		errors.Is(err, services.ErrOwnChallenge):
		return http.StatusConflict
	case errors.Is(err, services.ErrSessionExpired):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, message string, err error) {
	c.JSON(statusFor(err), gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}
