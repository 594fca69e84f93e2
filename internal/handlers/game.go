package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/services"
)

type GameHandler struct {
	engine *services.Engine
	lobby  *services.Lobby
	ledger *services.Ledger
}

func NewGameHandler(engine *services.Engine, lobby *services.Lobby, ledger *services.Ledger) *GameHandler {
	return &GameHandler{
		engine: engine,
		lobby:  lobby,
		ledger: ledger,
	}
}

func (h *GameHandler) GetGames(c *gin.Context) {
	games := make([]gin.H, 0, len(services.Catalog))
	for _, g := range services.Catalog {
		games = append(games, gin.H{
			"title":          g.Title,
			"slug":           g.Slug,
			"opponent_min":   g.OpponentMin.Milliseconds(),
			"opponent_max":   g.OpponentMax.Milliseconds(),
			"auto_finish_ms": g.AutoFinishAfter.Milliseconds(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "games": games})
}

func (h *GameHandler) GetLobby(c *gin.Context) {
	gameTitle := c.Query("game")
	if slug := c.Query("slug"); slug != "" {
		game, ok := services.GameBySlug(slug)
		if !ok {
			respondError(c, "Unknown game", services.ErrUnknownGame)
			return
		}
		gameTitle = game.Title
	}

	challenges, err := h.lobby.List(c.Request.Context(), gameTitle, c.GetString("user_id"))
	if err != nil {
		respondError(c, "Failed to fetch lobby", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"challenges": challenges,
		"count":      len(challenges),
	})
}

// DeleteChallenge withdraws one of the caller's own challenges. A challenge
// still backing a publishing battle abandons that battle as well.
func (h *GameHandler) DeleteChallenge(c *gin.Context) {
	userID := c.GetString("user_id")
	challengeID := c.Param("id")
	ctx := c.Request.Context()

	if current, live := h.engine.Current(ctx, userID); live && current.ChallengeID == challengeID && current.State == services.StatePublishing {
		view, err := h.engine.Abandon(ctx, userID, current.ID)
		if err != nil {
			respondError(c, "Failed to withdraw challenge", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "battle": view})
		return
	}

	if err := h.lobby.RemoveOwned(ctx, challengeID, userID); err != nil {
		respondError(c, "Failed to withdraw challenge", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *GameHandler) CreateBattle(c *gin.Context) {
	var req models.CreateBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	fee, err := req.EntryFee.Parse()
	if err != nil {
		respondError(c, "Invalid entry fee", err)
		return
	}
	if _, ok := services.GameByTitle(req.GameTitle); !ok {
		respondError(c, "Unknown game", services.ErrUnknownGame)
		return
	}

	ctx := c.Request.Context()
	user, err := h.ledger.Account(ctx, c.GetString("user_id"))
	if err != nil {
		respondError(c, "Failed to get account", err)
		return
	}

	view, err := h.engine.CreateChallenge(ctx, user, req.GameTitle, fee)
	if err != nil {
		respondError(c, "Failed to create battle", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "battle": view})
}

func (h *GameHandler) AcceptBattle(c *gin.Context) {
	var req models.AcceptBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.ledger.Account(ctx, c.GetString("user_id"))
	if err != nil {
		respondError(c, "Failed to get account", err)
		return
	}

	view, err := h.engine.AcceptChallenge(ctx, user, req.ChallengeID)
	if err != nil {
		respondError(c, "Failed to accept battle", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "battle": view})
}

func (h *GameHandler) GetBattle(c *gin.Context) {
	view, err := h.engine.Get(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, "Battle not found", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "battle": view})
}

func (h *GameHandler) BattleAction(c *gin.Context) {
	var req models.BattleActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.engine.Act(c.Request.Context(), c.GetString("user_id"), c.Param("id"), req.Cell)
	if err != nil {
		respondError(c, "Action rejected", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "battle": view})
}

func (h *GameHandler) AbandonBattle(c *gin.Context) {
	view, err := h.engine.Abandon(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to abandon battle", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "battle": view})
}

func (h *GameHandler) GetBattleHistory(c *gin.Context) {
	history, err := h.ledger.History(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, "Failed to fetch battle history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": history,
		"count":   len(history),
	})
}
