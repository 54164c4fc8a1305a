package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	loandomain "github.com/tinhptlocal/credit-bot/internal/domain/loan"
)

type AdminLoanService interface {
	ApproveLoan(ctx context.Context, adminID string, loanID int64) (*loandomain.Entity, error)
	RejectLoan(ctx context.Context, adminID string, loanID int64, reason string) error
	PendingLoans(ctx context.Context, adminID string) ([]loandomain.Entity, error)
	ActiveLoans(ctx context.Context, adminID string) ([]loandomain.Entity, error)
}

type AdminAccountService interface {
	AdjustCreditScore(ctx context.Context, adminID, userID string, delta int) (int, error)
}

type SweepRunner interface {
	RunOnce(ctx context.Context)
}

type Counter interface {
	Count(ctx context.Context) (int64, error)
}

type Stats struct {
	Users        Counter
	Payments     Counter
	Transactions Counter
	Loans        loandomain.Repository
}

type AdminHandler struct {
	loans    AdminLoanService
	accounts AdminAccountService
	sweeper  SweepRunner
	stats    Stats
}

func NewAdminHandler(loans AdminLoanService, accounts AdminAccountService, sweeper SweepRunner, stats Stats) *AdminHandler {
	return &AdminHandler{loans: loans, accounts: accounts, sweeper: sweeper, stats: stats}
}

func (h *AdminHandler) ApproveLoan(c *gin.Context) {
	loanID, ok := pathID(c, "loanId")
	if !ok {
		return
	}
	ent, err := h.loans.ApproveLoan(c.Request.Context(), currentUserID(c), loanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ent)
}

func (h *AdminHandler) RejectLoan(c *gin.Context) {
	loanID, ok := pathID(c, "loanId")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := h.loans.RejectLoan(c.Request.Context(), currentUserID(c), loanID, strings.TrimSpace(req.Reason)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *AdminHandler) PendingLoans(c *gin.Context) {
	items, err := h.loans.PendingLoans(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *AdminHandler) ActiveLoans(c *gin.Context) {
	items, err := h.loans.ActiveLoans(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *AdminHandler) AdjustCreditScore(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
		Delta  int    `json:"delta"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	score, err := h.accounts.AdjustCreditScore(c.Request.Context(), currentUserID(c), req.UserID, req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "credit_score": score})
}

// RunSweep triggers the daily passes out of schedule.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	h.sweeper.RunOnce(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "done"})
}

func (h *AdminHandler) SystemStats(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.stats.Users.Count(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	payments, err := h.stats.Payments.Count(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	transactions, err := h.stats.Transactions.Count(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	loans, err := h.stats.Loans.Count(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	byStatus := gin.H{}
	var outstanding int64
	for _, status := range []loandomain.Status{
		loandomain.StatusPending, loandomain.StatusApproved, loandomain.StatusDue,
		loandomain.StatusOverdue, loandomain.StatusRepaid, loandomain.StatusRejected,
	} {
		n, err := h.stats.Loans.CountByStatus(ctx, status)
		if err != nil {
			respondError(c, err)
			return
		}
		byStatus[string(status)] = n
	}
	for _, status := range loandomain.ActiveStatuses {
		sum, err := h.stats.Loans.SumPrincipalByStatus(ctx, status)
		if err != nil {
			respondError(c, err)
			return
		}
		outstanding += sum
	}

	c.JSON(http.StatusOK, gin.H{
		"users":                 users,
		"loans":                 loans,
		"loans_by_status":       byStatus,
		"payments":              payments,
		"transactions":          transactions,
		"outstanding_principal": outstanding,
	})
}
