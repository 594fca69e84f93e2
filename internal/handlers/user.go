package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cashbattle-backend/internal/services"
)

type UserHandler struct {
	accounts *services.Accounts
	ledger   *services.Ledger
	engine   *services.Engine
}

func NewUserHandler(accounts *services.Accounts, ledger *services.Ledger, engine *services.Engine) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		ledger:   ledger,
		engine:   engine,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString("user_id")
	sessionID := c.GetString("session_id")
	ctx := c.Request.Context()

	session, err := h.accounts.Session(ctx, userID, sessionID)
	if err != nil {
		respondError(c, "Session expired or invalid", err)
		return
	}

	user, err := h.ledger.Account(ctx, userID)
	if err != nil {
		respondError(c, "Failed to get account", err)
		return
	}

	resp := gin.H{
		"success": true,
		"user":    user,
		"balance": user.Balance(),
		"session": gin.H{
			"session_id":    session.SessionID,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessed,
		},
	}
	if battle, live := h.engine.Current(ctx, userID); live {
		resp["battle"] = battle
	}

	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Logout(c *gin.Context) {
	userID := c.GetString("user_id")
	sessionID := c.GetString("session_id")

	if err := h.accounts.Logout(c.Request.Context(), userID, sessionID); err != nil {
		respondError(c, "Failed to logout", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Successfully logged out"})
}
