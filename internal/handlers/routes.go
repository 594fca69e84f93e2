package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Wallet    *WalletHandler
	Rewards   *RewardsHandler
	Game      *GameHandler
	WebSocket *WebSocketHandler
}

// Register mounts the public auth route and the /api group guarded by auth.
func (h *Handlers) Register(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/auth/login", h.Auth.Login)

	protected := router.Group("/api")
	protected.Use(auth)
	{
		protected.GET("/me", h.User.GetCurrentUser)
		protected.POST("/logout", h.User.Logout)

		if h.WebSocket != nil {
			protected.GET("/ws", h.WebSocket.HandleWebSocket)
		}

		wallet := protected.Group("/wallet")
		{
			wallet.GET("/balance", h.Wallet.GetBalance)
			wallet.POST("/deposit", h.Wallet.Deposit)
			wallet.POST("/withdraw", h.Wallet.Withdraw)
			wallet.GET("/transactions", h.Wallet.GetTransactions)
			wallet.GET("/redeem-requests", h.Wallet.GetRedeemRequests)
		}

		shop := protected.Group("/shop")
		{
			shop.GET("/products", h.Wallet.GetProducts)
			shop.POST("/redeem", h.Wallet.RedeemProduct)
		}

		rewards := protected.Group("/rewards")
		{
			rewards.GET("/status", h.Rewards.GetStatus)
			rewards.POST("/daily", h.Rewards.ClaimDaily)
			rewards.POST("/scratch", h.Rewards.Scratch)
			rewards.POST("/spin", h.Rewards.Spin)
		}

		protected.GET("/games", h.Game.GetGames)
		protected.GET("/lobby", h.Game.GetLobby)
		protected.DELETE("/lobby/:id", h.Game.DeleteChallenge)

		battles := protected.Group("/battles")
		{
			battles.POST("", h.Game.CreateBattle)
			battles.POST("/accept", h.Game.AcceptBattle)
			battles.GET("/history", h.Game.GetBattleHistory)
			battles.GET("/:id", h.Game.GetBattle)
			battles.POST("/:id/action", h.Game.BattleAction)
			battles.POST("/:id/abandon", h.Game.AbandonBattle)
		}
	}
}
