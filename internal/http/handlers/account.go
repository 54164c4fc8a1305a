package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	accountdomain "github.com/tinhptlocal/credit-bot/internal/domain/account"
	transactiondomain "github.com/tinhptlocal/credit-bot/internal/domain/transaction"
)

type AccountService interface {
	Balance(ctx context.Context, userID, username string) (*accountdomain.Entity, error)
	ApplyTokenReceipt(ctx context.Context, userID, username, externalTxID string, amount int64) error
	Transactions(ctx context.Context, userID string, limit int32) ([]transactiondomain.Entity, error)
}

type AccountHandler struct {
	accounts AccountService
}

func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) Balance(c *gin.Context) {
	ent, err := h.accounts.Balance(c.Request.Context(), currentUserID(c), c.GetString("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":      ent.PlatformID,
		"balance":      ent.Balance,
		"credit_score": ent.CreditScore,
	})
}

// TokenReceipt ingests a token-transfer event reported by the
// platform. Redeliveries carry the same transaction id and are
// silently dropped.
func (h *AccountHandler) TokenReceipt(c *gin.Context) {
	var req struct {
		UserID        string `json:"user_id"`
		Username      string `json:"username"`
		TransactionID string `json:"transaction_id"`
		Amount        int64  `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	err := h.accounts.ApplyTokenReceipt(c.Request.Context(), req.UserID, req.Username, req.TransactionID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *AccountHandler) Transactions(c *gin.Context) {
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "20")), 10, 32)
	items, err := h.accounts.Transactions(c.Request.Context(), currentUserID(c), int32(limit))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
