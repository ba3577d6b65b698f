// Package ledger owns the only mutable state of the engine: the liquidity
// pool balance and the per-subject loan history. Every mutation goes through
// the store and is serialized by a single lock.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvariantViolation signals a concurrency-control or programming defect.
	ErrInvariantViolation = errors.New("ledger invariant violation")
	ErrLoanNotFound       = errors.New("loan not found")
	ErrDuplicateLoan      = errors.New("loan id already recorded")
	ErrInvalidAmount      = errors.New("amount must be positive with at most 2 decimal places")
	// ErrSettledAfterVoid means funds left through the external ledger for a loan already voided here.
	ErrSettledAfterVoid   = fmt.Errorf("%w: settlement confirmed for a voided loan", ErrInvariantViolation)
)

// Store is the in-memory ledger
type Store struct {
	mu       sync.Mutex
	balance  decimal.Decimal
	subjects map[string][]*models.LoanRecord
	loans    map[string]*models.LoanRecord
}

// NewStore creates a store with the given initial pool balance
func NewStore(initialBalance decimal.Decimal) (*Store, error) {
	if initialBalance.IsNegative() {
		return nil, fmt.Errorf("%w: negative initial pool balance %s", ErrInvariantViolation, initialBalance)
	}
	return &Store{
		balance:  initialBalance,
		subjects: make(map[string][]*models.LoanRecord),
		loans:    make(map[string]*models.LoanRecord),
	}, nil
}

// Snapshot is a consistent view of the state a loan decision depends on.
type Snapshot struct {
	Balance      decimal.Decimal
	LastIssuedAt time.Time
	HasHistory   bool
}

// Tx is the handle passed to Transact. It is only valid inside the callback.
type Tx struct {
	s        *Store
	reserved decimal.Decimal
	appended []*models.LoanRecord
}

// Snapshot returns the pool balance and the subject's most recent issuance.
func (tx *Tx) Snapshot(subjectID string) Snapshot {
	snap := Snapshot{Balance: tx.s.balance}
	history := tx.s.subjects[subjectID]
	if n := len(history); n > 0 {
		snap.LastIssuedAt = history[n-1].IssuedAt
		snap.HasHistory = true
	}
	return snap
}

// Reserve decrements the pool. The balance can never go below zero.
func (tx *Tx) Reserve(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	next := tx.s.balance.Sub(amount)
	if next.IsNegative() {
		return fmt.Errorf("%w: reserve %s exceeds balance %s", ErrInvariantViolation, amount, tx.s.balance)
	}
	tx.s.balance = next
	tx.reserved = tx.reserved.Add(amount)
	return nil
}

// Append adds a record to the end of its subject's history.
func (tx *Tx) Append(rec models.LoanRecord) error {
	if _, exists := tx.s.loans[rec.LoanID]; exists {
		return ErrDuplicateLoan
	}
	history := tx.s.subjects[rec.SubjectID]
	if n := len(history); n > 0 && rec.IssuedAt.Before(history[n-1].IssuedAt) {
		return fmt.Errorf("%w: loan %s issued before last entry of %s", ErrInvariantViolation, rec.LoanID, rec.SubjectID)
	}
	r := rec
	tx.s.subjects[rec.SubjectID] = append(history, &r)
	tx.s.loans[rec.LoanID] = &r
	tx.appended = append(tx.appended, &r)
	return nil
}

// rollback undoes the effects of a failed transaction
func (tx *Tx) rollback() {
	tx.s.balance = tx.s.balance.Add(tx.reserved)
	for i := len(tx.appended) - 1; i >= 0; i-- {
		rec := tx.appended[i]
		delete(tx.s.loans, rec.LoanID)
		history := tx.s.subjects[rec.SubjectID]
		if n := len(history); n > 0 && history[n-1] == rec {
			tx.s.subjects[rec.SubjectID] = history[:n-1]
		}
	}
}

// Transact runs fn while holding the ledger lock. If fn returns an error every
// reservation and append made through the Tx is undone. fn must not block on
// I/O.
func (s *Store) Transact(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{s: s, reserved: decimal.Zero}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Balance returns the current pool balance
func (s *Store) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Deposit adds liquidity to the pool
func (s *Store) Deposit(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return decimal.Zero, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = s.balance.Add(amount)
	return s.balance, nil
}

// History returns a copy of the subject's loans, oldest first
func (s *Store) History(subjectID string) []models.LoanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.subjects[subjectID]
	out := make([]models.LoanRecord, len(history))
	for i, r := range history {
		out[i] = *r
	}
	return out
}

// Loan returns a copy of a single record
func (s *Store) Loan(loanID string) (models.LoanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.loans[loanID]
	if !ok {
		return models.LoanRecord{}, ErrLoanNotFound
	}
	return *rec, nil
}

// Settle records the external settlement reference of a pending loan.
// Settling a voided loan keeps the reference and reserves the amount again
// when the pool still holds it; either way it returns ErrSettledAfterVoid.
func (s *Store) Settle(loanID, ref string) (rec models.LoanRecord, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.loans[loanID]
	if !ok {
		return models.LoanRecord{}, false, ErrLoanNotFound
	}
	if r.Status == models.LoanVoided {
		changed = r.SettlementRef != ref
		r.SettlementRef = ref
		if !s.balance.LessThan(r.Amount) {
			s.balance = s.balance.Sub(r.Amount)
			r.Status = models.LoanSettled
			r.VoidedAt = nil
			changed = true
		}
		return *r, changed, ErrSettledAfterVoid
	}
	if r.Status != models.LoanPendingSettlement {
		return *r, false, nil
	}
	r.SettlementRef = ref
	r.Status = models.LoanSettled
	return *r, true, nil
}

// Void restores the pool balance for a pending loan exactly once and marks
// the record voided. The record stays in the ledger. A second call is a no-op.
func (s *Store) Void(loanID string, at time.Time, canVoid func(models.LoanRecord) error) (rec models.LoanRecord, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.loans[loanID]
	if !ok {
		return models.LoanRecord{}, false, ErrLoanNotFound
	}
	if r.Status == models.LoanVoided {
		return *r, false, nil
	}
	if canVoid != nil {
		if err := canVoid(*r); err != nil {
			return *r, false, err
		}
	}
	voidedAt := at
	r.Status = models.LoanVoided
	r.VoidedAt = &voidedAt
	s.balance = s.balance.Add(r.Amount)
	return *r, true, nil
}

// PendingOlderThan lists loans still awaiting settlement issued before cutoff.
func (s *Store) PendingOlderThan(cutoff time.Time) []models.LoanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LoanRecord
	for _, r := range s.loans {
		if r.Status == models.LoanPendingSettlement && r.IssuedAt.Before(cutoff) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out
}

// Stats summarizes the pool
func (s *Store) Stats() models.PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := models.PoolStats{Balance: s.balance, Outstanding: decimal.Zero}
	for _, r := range s.loans {
		stats.TotalLoans++
		if r.Status == models.LoanVoided {
			stats.Voided++
			continue
		}
		stats.Outstanding = stats.Outstanding.Add(r.Amount)
	}
	return stats
}

// Restore replaces the state with a previously persisted ledger. Records are
// ordered per subject by issuance time.
func (s *Store) Restore(balance decimal.Decimal, records []models.LoanRecord) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: negative restored balance %s", ErrInvariantViolation, balance)
	}
	subjects := make(map[string][]*models.LoanRecord)
	loans := make(map[string]*models.LoanRecord, len(records))
	sorted := append([]models.LoanRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].IssuedAt.Before(sorted[j].IssuedAt) })
	for i := range sorted {
		r := sorted[i]
		if _, dup := loans[r.LoanID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateLoan, r.LoanID)
		}
		loans[r.LoanID] = &r
		subjects[r.SubjectID] = append(subjects[r.SubjectID], &r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
	s.subjects = subjects
	s.loans = loans
	return nil
}
