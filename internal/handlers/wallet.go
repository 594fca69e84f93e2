package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/services"
)

type WalletHandler struct {
	ledger *services.Ledger
}

func NewWalletHandler(ledger *services.Ledger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	balance, err := h.ledger.Balance(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, "Failed to get balance", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance})
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	amount, err := req.Amount.Parse()
	if err != nil {
		respondError(c, "Invalid amount", err)
		return
	}

	balance, err := h.ledger.Deposit(c.Request.Context(), c.GetString("user_id"), amount)
	if err != nil {
		respondError(c, "Deposit failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance})
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	request, err := h.ledger.Withdraw(c.Request.Context(), c.GetString("user_id"), req.Coins)
	if err != nil {
		respondError(c, "Withdrawal failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "request": request})
}

func (h *WalletHandler) GetTransactions(c *gin.Context) {
	txs, err := h.ledger.Transactions(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, "Failed to fetch transactions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": txs, "count": len(txs)})
}

func (h *WalletHandler) GetRedeemRequests(c *gin.Context) {
	reqs, err := h.ledger.RedeemRequests(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, "Failed to fetch redeem requests", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "requests": reqs, "count": len(reqs)})
}

func (h *WalletHandler) GetProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "products": models.ShopCatalog})
}

func (h *WalletHandler) RedeemProduct(c *gin.Context) {
	var req models.ShopRedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	request, err := h.ledger.RedeemProduct(c.Request.Context(), c.GetString("user_id"), req.ProductID)
	if err != nil {
		respondError(c, "Redeem failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "request": request})
}
