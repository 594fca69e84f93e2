package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/services"
)

type AuthHandler struct {
	accounts *services.Accounts
}

func NewAuthHandler(accounts *services.Accounts) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.accounts.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Login failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   res.Token,
		"user":    res.User,
		"created": res.Created,
	})
}
