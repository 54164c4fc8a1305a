package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	loandomain "github.com/tinhptlocal/credit-bot/internal/domain/loan"
)

type LoanService interface {
	RequestLoan(ctx context.Context, userID, username string, principal int64, termMonths int32) (*loandomain.Offer, error)
	ConfirmLoan(ctx context.Context, userID, token string) (*loandomain.Entity, error)
	CancelLoan(ctx context.Context, userID string, loanID int64) error
	GetLoan(ctx context.Context, userID string, loanID int64) (*loandomain.Entity, error)
	LoansByUser(ctx context.Context, userID string) ([]loandomain.Entity, error)
}

type LoanHandler struct {
	loans LoanService
}

func NewLoanHandler(loans LoanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

func (h *LoanHandler) RequestLoan(c *gin.Context) {
	var req struct {
		Amount     int64 `json:"amount"`
		TermMonths int32 `json:"term_months"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	offer, err := h.loans.RequestLoan(c.Request.Context(), currentUserID(c), c.GetString("username"), req.Amount, req.TermMonths)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (h *LoanHandler) ConfirmLoan(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	ent, err := h.loans.ConfirmLoan(c.Request.Context(), currentUserID(c), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ent)
}

func (h *LoanHandler) CancelLoan(c *gin.Context) {
	loanID, ok := pathID(c, "loanId")
	if !ok {
		return
	}
	if err := h.loans.CancelLoan(c.Request.Context(), currentUserID(c), loanID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	loanID, ok := pathID(c, "loanId")
	if !ok {
		return
	}
	ent, err := h.loans.GetLoan(c.Request.Context(), currentUserID(c), loanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ent)
}

func (h *LoanHandler) ListLoans(c *gin.Context) {
	items, err := h.loans.LoansByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}
