package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/services"
)

type RewardsHandler struct {
	rewards *services.Rewards
}

func NewRewardsHandler(rewards *services.Rewards) *RewardsHandler {
	return &RewardsHandler{rewards: rewards}
}

func (h *RewardsHandler) GetStatus(c *gin.Context) {
	status, err := h.rewards.Status(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, "Failed to get reward status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": status})
}

func (h *RewardsHandler) ClaimDaily(c *gin.Context) {
	grant, err := h.rewards.ClaimDaily(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, "Daily bonus unavailable", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "grant": grant})
}

// adWatched reads the optional body; an empty body means no ad was watched.
func adWatched(c *gin.Context) bool {
	var req models.RewardClaimRequest
	if c.Request.ContentLength == 0 {
		return false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return false
	}
	return req.AdWatched
}

func (h *RewardsHandler) Scratch(c *gin.Context) {
	grant, err := h.rewards.Scratch(c.Request.Context(), c.GetString("user_id"), adWatched(c))
	if err != nil {
		respondError(c, "Scratch card unavailable", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "grant": grant})
}

func (h *RewardsHandler) Spin(c *gin.Context) {
	grant, err := h.rewards.Spin(c.Request.Context(), c.GetString("user_id"), adWatched(c))
	if err != nil {
		respondError(c, "Spin unavailable", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "grant": grant})
}
