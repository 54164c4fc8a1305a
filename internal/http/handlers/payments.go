package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/tinhptlocal/credit-bot/internal/domain/payment"
)

type PaymentService interface {
	ProcessPayment(ctx context.Context, userID string, paymentID int64, amount int64) (*paymentdomain.Receipt, error)
	OpenPayments(ctx context.Context, userID string) ([]paymentdomain.Entity, error)
	UpcomingPayments(ctx context.Context, userID string, within time.Duration) ([]paymentdomain.Entity, error)
	History(ctx context.Context, userID string, limit int) ([]paymentdomain.Entity, error)
	ScheduleByLoan(ctx context.Context, userID string, loanID int64) ([]paymentdomain.Entity, error)
	QuotePayoff(ctx context.Context, userID string, loanID int64) (*paymentdomain.PayoffQuote, error)
	ExecutePayoff(ctx context.Context, userID string, loanID int64) (*paymentdomain.PayoffQuote, error)
}

type PaymentHandler struct {
	payments PaymentService
}

func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) Pay(c *gin.Context) {
	paymentID, ok := pathID(c, "paymentId")
	if !ok {
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	receipt, err := h.payments.ProcessPayment(c.Request.Context(), currentUserID(c), paymentID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *PaymentHandler) ListOpen(c *gin.Context) {
	items, err := h.payments.OpenPayments(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *PaymentHandler) ListUpcoming(c *gin.Context) {
	days, _ := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("days", "30")))
	if days <= 0 {
		days = 30
	}
	items, err := h.payments.UpcomingPayments(c.Request.Context(), currentUserID(c), time.Duration(days)*24*time.Hour)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *PaymentHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("limit", "20")))
	items, err := h.payments.History(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *PaymentHandler) Schedule(c *gin.Context) {
	loanID, ok := pathID(c, "loanId")
	if !ok {
		return
	}
	items, err := h.payments.ScheduleByLoan(c.Request.Context(), currentUserID(c), loanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *PaymentHandler) PayoffQuote(c *gin.Context) {
	loanID, ok := pathID(c, "loanId")
	if !ok {
		return
	}
	quote, err := h.payments.QuotePayoff(c.Request.Context(), currentUserID(c), loanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *PaymentHandler) Payoff(c *gin.Context) {
	loanID, ok := pathID(c, "loanId")
	if !ok {
		return
	}
	quote, err := h.payments.ExecutePayoff(c.Request.Context(), currentUserID(c), loanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
