// Package ledgertest provides an in-memory implementation of the
// repositories and the transaction runner for service and job tests.
// InTx snapshots the whole state and restores it on error, mirroring
// the rollback behavior of the real store.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tinhptlocal/credit-bot/internal/domain/account"
	"github.com/tinhptlocal/credit-bot/internal/domain/loan"
	"github.com/tinhptlocal/credit-bot/internal/domain/payment"
	"github.com/tinhptlocal/credit-bot/internal/domain/transaction"
	"github.com/tinhptlocal/credit-bot/internal/faults"
)

type txDepthKey struct{}

type state struct {
	users    map[string]account.Entity
	loans    map[int64]loan.Entity
	payments map[int64]payment.Entity
	txs      map[string]transaction.Entity

	nextUserID    int64
	nextLoanID    int64
	nextPaymentID int64
	nextTxRowID   int64
}

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	now  func() time.Time
	st   state
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now: now,
		st: state{
			users:    map[string]account.Entity{},
			loans:    map[int64]loan.Entity{},
			payments: map[int64]payment.Entity{},
			txs:      map[string]transaction.Entity{},
		},
	}
}

// InTx serializes transactions and restores the pre-transaction state
// when fn fails. Nested calls join the ambient transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if depth, _ := ctx.Value(txDepthKey{}).(int); depth > 0 {
		return fn(context.WithValue(ctx, txDepthKey{}, depth+1))
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txDepthKey{}, 1)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (st state) clone() state {
	out := state{
		users:         make(map[string]account.Entity, len(st.users)),
		loans:         make(map[int64]loan.Entity, len(st.loans)),
		payments:      make(map[int64]payment.Entity, len(st.payments)),
		txs:           make(map[string]transaction.Entity, len(st.txs)),
		nextUserID:    st.nextUserID,
		nextLoanID:    st.nextLoanID,
		nextPaymentID: st.nextPaymentID,
		nextTxRowID:   st.nextTxRowID,
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.loans {
		out.loans[k] = v
	}
	for k, v := range st.payments {
		out.payments[k] = v
	}
	for k, v := range st.txs {
		out.txs[k] = v
	}
	return out
}

func (s *Store) Users() *UserRepo               { return &UserRepo{s: s} }
func (s *Store) Loans() *LoanRepo               { return &LoanRepo{s: s} }
func (s *Store) Payments() *PaymentRepo         { return &PaymentRepo{s: s} }
func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{s: s} }

// SeedUser inserts a user directly, bypassing the repository API.
func (s *Store) SeedUser(platformID, username string, balance int64, creditScore int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextUserID++
	s.st.users[platformID] = account.Entity{
		ID:          s.st.nextUserID,
		PlatformID:  platformID,
		Username:    username,
		Balance:     balance,
		CreditScore: creditScore,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
}

type UserRepo struct {
	s *Store
}

func (r *UserRepo) GetByPlatformID(_ context.Context, platformID string) (*account.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.st.users[platformID]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *UserRepo) Create(_ context.Context, in account.CreateInput) (*account.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.st.users[in.PlatformID]; ok {
		u.Username = in.Username
		r.s.st.users[in.PlatformID] = u
		return &u, nil
	}
	r.s.st.nextUserID++
	u := account.Entity{
		ID:          r.s.st.nextUserID,
		PlatformID:  in.PlatformID,
		Username:    in.Username,
		Balance:     in.Balance,
		CreditScore: in.CreditScore,
		CreatedAt:   r.s.now(),
		UpdatedAt:   r.s.now(),
	}
	r.s.st.users[in.PlatformID] = u
	return &u, nil
}

func (r *UserRepo) Credit(_ context.Context, platformID string, amount int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[platformID]
	if !ok {
		return faults.New(faults.NotFound, "user_not_found", "user not found")
	}
	u.Balance += amount
	u.UpdatedAt = r.s.now()
	r.s.st.users[platformID] = u
	return nil
}

func (r *UserRepo) Debit(_ context.Context, platformID string, amount int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[platformID]
	if !ok || u.Balance < amount {
		return false, nil
	}
	u.Balance -= amount
	u.UpdatedAt = r.s.now()
	r.s.st.users[platformID] = u
	return true, nil
}

func (r *UserRepo) AdjustCreditScore(_ context.Context, platformID string, delta, min, max int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[platformID]
	if !ok {
		return 0, faults.New(faults.NotFound, "user_not_found", "user not found")
	}
	score := u.CreditScore + delta
	if score < min {
		score = min
	}
	if score > max {
		score = max
	}
	u.CreditScore = score
	u.UpdatedAt = r.s.now()
	r.s.st.users[platformID] = u
	return score, nil
}

func (r *UserRepo) SetCreditScore(_ context.Context, platformID string, score int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[platformID]
	if !ok {
		return faults.New(faults.NotFound, "user_not_found", "user not found")
	}
	u.CreditScore = score
	u.UpdatedAt = r.s.now()
	r.s.st.users[platformID] = u
	return nil
}

func (r *UserRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.st.users)), nil
}

type LoanRepo struct {
	s *Store
}

func (r *LoanRepo) Create(_ context.Context, in loan.CreateInput) (*loan.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	status := in.Status
	if status == "" {
		status = loan.StatusPending
	}
	r.s.st.nextLoanID++
	l := loan.Entity{
		ID:            r.s.st.nextLoanID,
		UserID:        in.UserID,
		Principal:     in.Principal,
		AnnualRatePct: in.AnnualRatePct,
		TermMonths:    in.TermMonths,
		Status:        status,
		CreatedAt:     r.s.now(),
		UpdatedAt:     r.s.now(),
	}
	r.s.st.loans[l.ID] = l
	return &l, nil
}

func (r *LoanRepo) GetByID(_ context.Context, id int64) (*loan.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l, ok := r.s.st.loans[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (r *LoanRepo) ListByUser(_ context.Context, userID string) ([]loan.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []loan.Entity
	for _, l := range r.s.st.loans {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sortLoans(out)
	return out, nil
}

func (r *LoanRepo) ListByStatus(_ context.Context, status loan.Status) ([]loan.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []loan.Entity
	for _, l := range r.s.st.loans {
		if l.Status == status {
			out = append(out, l)
		}
	}
	sortLoans(out)
	return out, nil
}

func (r *LoanRepo) HasActive(_ context.Context, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.hasActiveLocked(userID, 0), nil
}

func (r *LoanRepo) hasActiveLocked(userID string, excludeID int64) bool {
	for _, l := range r.s.st.loans {
		if l.UserID != userID || l.ID == excludeID {
			continue
		}
		for _, st := range loan.ActiveStatuses {
			if l.Status == st {
				return true
			}
		}
	}
	return false
}

func (r *LoanRepo) Approve(_ context.Context, loanID int64, start, end time.Time) (*loan.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.st.loans[loanID]
	if !ok || l.Status != loan.StatusPending || r.hasActiveLocked(l.UserID, loanID) {
		return nil, faults.New(faults.Conflict, "loan_not_approvable", "loan is not pending or the borrower already holds an active loan")
	}
	l.Status = loan.StatusApproved
	l.StartDate = start
	l.EndDate = end
	l.UpdatedAt = r.s.now()
	r.s.st.loans[loanID] = l
	return &l, nil
}

func (r *LoanRepo) UpdateStatus(_ context.Context, loanID int64, from []loan.Status, to loan.Status) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.st.loans[loanID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, st := range from {
		if l.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	l.Status = to
	l.UpdatedAt = r.s.now()
	r.s.st.loans[loanID] = l
	return true, nil
}

func (r *LoanRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.st.loans)), nil
}

func (r *LoanRepo) CountByStatus(_ context.Context, status loan.Status) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, l := range r.s.st.loans {
		if l.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *LoanRepo) SumPrincipalByStatus(_ context.Context, status loan.Status) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, l := range r.s.st.loans {
		if l.Status == status {
			total += l.Principal
		}
	}
	return total, nil
}

type PaymentRepo struct {
	s *Store
}

func (r *PaymentRepo) CreateSchedule(_ context.Context, loanID int64, userID string, entries []loan.ScheduleEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range entries {
		r.s.st.nextPaymentID++
		p := payment.Entity{
			ID:            r.s.st.nextPaymentID,
			LoanID:        loanID,
			UserID:        userID,
			Sequence:      e.Sequence,
			Amount:        e.Amount,
			MinimumAmount: e.MinimumAmount,
			RatePct:       e.RatePct,
			DueDate:       e.DueDate,
			Status:        payment.StatusPending,
			CreatedAt:     r.s.now(),
			UpdatedAt:     r.s.now(),
		}
		r.s.st.payments[p.ID] = p
	}
	return nil
}

func (r *PaymentRepo) GetByID(_ context.Context, id int64) (*payment.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.st.payments[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *PaymentRepo) ListByLoan(_ context.Context, loanID int64) ([]payment.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payment.Entity
	for _, p := range r.s.st.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *PaymentRepo) ListOpenByUser(_ context.Context, userID string) ([]payment.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payment.Entity
	for _, p := range r.s.st.payments {
		if p.UserID == userID && !p.Settled() {
			out = append(out, p)
		}
	}
	sortByDue(out)
	return out, nil
}

func (r *PaymentRepo) ListByUser(_ context.Context, userID string, limit int) ([]payment.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payment.Entity
	for _, p := range r.s.st.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.After(out[j].DueDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PaymentRepo) ListDueOn(_ context.Context, status payment.Status, due time.Time) ([]payment.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payment.Entity
	for _, p := range r.s.st.payments {
		if p.Status == status && sameDay(p.DueDate, due) {
			out = append(out, p)
		}
	}
	sortByDue(out)
	return out, nil
}

func (r *PaymentRepo) ListOverdueCandidates(_ context.Context, before time.Time) ([]payment.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payment.Entity
	for _, p := range r.s.st.payments {
		if p.Status == payment.StatusPending && p.DueDate.Before(before) {
			out = append(out, p)
		}
	}
	sortByDue(out)
	return out, nil
}

func (r *PaymentRepo) ListPaidOnUnrewarded(_ context.Context, paidOn time.Time) ([]payment.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payment.Entity
	for _, p := range r.s.st.payments {
		if p.Status != payment.StatusPaid || p.RewardedAt != nil || p.PaidDate == nil {
			continue
		}
		if sameDay(*p.PaidDate, paidOn) && !dayAfter(*p.PaidDate, p.DueDate) {
			out = append(out, p)
		}
	}
	sortByDue(out)
	return out, nil
}

func (r *PaymentRepo) CountOpenByLoan(_ context.Context, loanID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, p := range r.s.st.payments {
		if p.LoanID == loanID && !p.Settled() {
			n++
		}
	}
	return n, nil
}

func (r *PaymentRepo) Settle(_ context.Context, id int64, to payment.Status, paidDate time.Time, transactionID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.payments[id]
	if !ok || p.Settled() {
		return false, nil
	}
	p.Status = to
	p.PaidDate = &paidDate
	p.TransactionID = transactionID
	p.UpdatedAt = r.s.now()
	r.s.st.payments[id] = p
	return true, nil
}

func (r *PaymentRepo) MarkOverdue(_ context.Context, id int64, lateFee int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.payments[id]
	if !ok || p.Status != payment.StatusPending {
		return false, nil
	}
	p.Status = payment.StatusOverdue
	p.LateFee = lateFee
	p.UpdatedAt = r.s.now()
	r.s.st.payments[id] = p
	return true, nil
}

func (r *PaymentRepo) MarkRewarded(_ context.Context, id int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.payments[id]
	if !ok || p.RewardedAt != nil {
		return false, nil
	}
	p.RewardedAt = &at
	p.UpdatedAt = r.s.now()
	r.s.st.payments[id] = p
	return true, nil
}

func (r *PaymentRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.st.payments)), nil
}

type TransactionRepo struct {
	s *Store
}

func (r *TransactionRepo) Insert(_ context.Context, e transaction.Entity) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.txs[e.TransactionID]; ok {
		return false, nil
	}
	r.s.st.nextTxRowID++
	e.ID = r.s.st.nextTxRowID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.s.now()
	}
	r.s.st.txs[e.TransactionID] = e
	return true, nil
}

func (r *TransactionRepo) ListByUser(_ context.Context, userID string, limit int32) ([]transaction.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []transaction.Entity
	for _, t := range r.s.st.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TransactionRepo) ListByLoan(_ context.Context, loanID int64) ([]transaction.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []transaction.Entity
	for _, t := range r.s.st.txs {
		if t.LoanID != nil && *t.LoanID == loanID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *TransactionRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.st.txs)), nil
}

// CountByType tallies recorded movements by type, handy for asserting
// which movements a flow produced.
func (r *TransactionRepo) CountByType(typ transaction.Type) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int
	for _, t := range r.s.st.txs {
		if t.Type == typ {
			n++
		}
	}
	return n
}

func sortLoans(out []loan.Entity) {
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
}

func sortByDue(out []payment.Entity) {
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// dayAfter reports whether a falls on a later calendar day than b.
func dayAfter(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
