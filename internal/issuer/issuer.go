// Package issuer turns approved loan requests into ledger records and
// reverses them when settlement fails.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/gigcredit/internal/eligibility"
	"github.com/Dan9191/gigcredit/internal/ledger"
	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrAlreadySettled is returned when reversing a loan whose funds were transferred.
var ErrAlreadySettled = errors.New("loan already settled")

const pendingRefPrefix = "pending:"

// Sealer produces a tamper-evident seal over a loan record
type Sealer interface {
	Seal(rec models.LoanRecord) string
}

// Outcome is the result of an issuance attempt. Loan is nil unless approved.
type Outcome struct {
	Decision eligibility.Decision
	Loan     *models.LoanRecord
}

// Issuer commits approved loans to the ledger
type Issuer struct {
	store  *ledger.Store
	gate   *eligibility.Gate
	sealer Sealer
	log    *logrus.Logger
	now    func() time.Time
	newID  func() string
}

// Option customizes an Issuer
type Option func(*Issuer)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithIDGenerator overrides loan id generation
func WithIDGenerator(gen func() string) Option {
	return func(i *Issuer) { i.newID = gen }
}

// NewIssuer creates a new loan issuer
func NewIssuer(store *ledger.Store, gate *eligibility.Gate, sealer Sealer, log *logrus.Logger, opts ...Option) *Issuer {
	i := &Issuer{
		store:  store,
		gate:   gate,
		sealer: sealer,
		log:    log,
		now:    time.Now,
		newID:  NewLoanID,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewLoanID generates a unique loan identifier
func NewLoanID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "LOAN_" + id[:16]
}

// Issue evaluates the request and, if approved, reserves pool funds and
// appends the loan to the subject's ledger in one atomic step.
func (i *Issuer) Issue(ctx context.Context, req models.LoanRequest) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	var out Outcome
	err := i.store.Transact(func(tx *ledger.Tx) error {
		// Journal timestamps keep microseconds.
		now := i.now().UTC().Truncate(time.Microsecond)
		decision := i.gate.Evaluate(req, tx.Snapshot(req.SubjectID), now)
		out.Decision = decision
		if !decision.Approved() {
			return nil
		}

		loanID := i.newID()
		rec := models.LoanRecord{
			LoanID:        loanID,
			SubjectID:     req.SubjectID,
			Amount:        decision.ApprovedAmount,
			Score:         req.Score,
			InterestRate:  InterestRate(req.Score, req.Purpose),
			Purpose:       req.Purpose,
			RepaymentPlan: req.RepaymentPlan,
			IssuedAt:      now,
			DueAt:         DueDate(now, req.RepaymentPlan),
			SettlementRef: pendingRefPrefix + loanID,
			Status:        models.LoanPendingSettlement,
		}
		if i.sealer != nil {
			rec.Seal = i.sealer.Seal(rec)
		}

		if err := tx.Reserve(rec.Amount); err != nil {
			return err
		}
		if err := tx.Append(rec); err != nil {
			return err
		}
		out.Loan = &rec
		out.Decision.PoolBalance = tx.Snapshot(req.SubjectID).Balance
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInvariantViolation) {
			i.log.WithFields(logrus.Fields{
				"subject_id": req.SubjectID,
				"amount":     req.Amount.String(),
			}).Errorf("Ledger invariant violated during issuance: %v", err)
		}
		return Outcome{}, fmt.Errorf("failed to issue loan: %w", err)
	}

	if out.Loan != nil {
		i.log.WithFields(logrus.Fields{
			"loan_id":       out.Loan.LoanID,
			"subject_id":    out.Loan.SubjectID,
			"amount":        out.Loan.Amount.String(),
			"interest_rate": out.Loan.InterestRate.String(),
		}).Info("Loan issued")
	} else {
		i.log.WithFields(logrus.Fields{
			"subject_id": req.SubjectID,
			"reason":     out.Decision.Reason,
		}).Info("Loan declined")
	}
	return out, nil
}

// Reverse voids a pending loan and returns its amount to the pool. Calling it
// again for the same loan has no further effect.
func (i *Issuer) Reverse(ctx context.Context, loanID string) (models.LoanRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.LoanRecord{}, err
	}

	rec, changed, err := i.store.Void(loanID, i.now().UTC(), func(r models.LoanRecord) error {
		if r.Status == models.LoanSettled {
			return ErrAlreadySettled
		}
		return nil
	})
	if err != nil {
		return rec, fmt.Errorf("failed to reverse loan %s: %w", loanID, err)
	}

	if changed {
		i.log.WithFields(logrus.Fields{
			"loan_id":    rec.LoanID,
			"subject_id": rec.SubjectID,
			"amount":     rec.Amount.String(),
		}).Warn("Loan reservation reversed")
	}
	return rec, nil
}

// ConfirmSettlement records the reference returned by the settlement collaborator.
func (i *Issuer) ConfirmSettlement(loanID, ref string) (models.LoanRecord, error) {
	if ref == "" {
		return models.LoanRecord{}, fmt.Errorf("empty settlement reference for loan %s", loanID)
	}
	rec, changed, err := i.store.Settle(loanID, ref)
	if errors.Is(err, ledger.ErrSettledAfterVoid) {
		i.log.WithFields(logrus.Fields{
			"loan_id":        loanID,
			"subject_id":     rec.SubjectID,
			"amount":         rec.Amount.String(),
			"settlement_ref": ref,
			"reserved_again": rec.Status == models.LoanSettled,
		}).Error("Settlement confirmed for a voided loan")
	}
	if err != nil {
		return rec, fmt.Errorf("failed to confirm settlement of %s: %w", loanID, err)
	}
	if changed {
		i.log.WithFields(logrus.Fields{"loan_id": loanID, "settlement_ref": ref}).Info("Loan settled")
	}
	return rec, nil
}

// Loan returns a ledger record by id
func (i *Issuer) Loan(loanID string) (models.LoanRecord, error) {
	return i.store.Loan(loanID)
}

// History returns the subject's loans, oldest first
func (i *Issuer) History(subjectID string) []models.LoanRecord {
	return i.store.History(subjectID)
}
