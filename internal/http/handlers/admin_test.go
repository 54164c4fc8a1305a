package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	loandomain "github.com/tinhptlocal/credit-bot/internal/domain/loan"
	"github.com/tinhptlocal/credit-bot/internal/http/handlers"
	"github.com/tinhptlocal/credit-bot/internal/ledger/ledgertest"
)

func TestSystemStatsCountsEveryLoanStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := ledgertest.NewStore(func() time.Time { return now })
	store.SeedUser("u1", "alice", 0, 100)

	ctx := context.Background()
	for _, status := range []loandomain.Status{
		loandomain.StatusPending, loandomain.StatusApproved, loandomain.StatusDue,
		loandomain.StatusOverdue, loandomain.StatusRepaid, loandomain.StatusRejected,
	} {
		if _, err := store.Loans().Create(ctx, loandomain.CreateInput{
			UserID:        "u1",
			Principal:     100_000,
			AnnualRatePct: 12,
			TermMonths:    3,
			Status:        status,
		}); err != nil {
			t.Fatalf("create %s loan: %v", status, err)
		}
	}

	h := handlers.NewAdminHandler(nil, nil, nil, handlers.Stats{
		Users:        store.Users(),
		Payments:     store.Payments(),
		Transactions: store.Transactions(),
		Loans:        store.Loans(),
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/system/stats", nil)
	h.SystemStats(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Loans                int64            `json:"loans"`
		LoansByStatus        map[string]int64 `json:"loans_by_status"`
		OutstandingPrincipal int64            `json:"outstanding_principal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if body.Loans != 6 {
		t.Fatalf("expected 6 loans total, got %d", body.Loans)
	}
	for _, status := range []string{"pending", "approved", "due", "overdue", "repaid", "rejected"} {
		if body.LoansByStatus[status] != 1 {
			t.Fatalf("expected one %s loan in the breakdown, got %d", status, body.LoansByStatus[status])
		}
	}
	// Only approved and overdue count toward outstanding principal.
	if body.OutstandingPrincipal != 200_000 {
		t.Fatalf("expected outstanding principal 200000, got %d", body.OutstandingPrincipal)
	}
}
