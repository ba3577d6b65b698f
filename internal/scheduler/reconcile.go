package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/Dan9191/gigcredit/internal/issuer"
	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/sirupsen/logrus"
)

// PendingSource lists loans still waiting for settlement
type PendingSource interface {
	PendingOlderThan(cutoff time.Time) []models.LoanRecord
}

// Reverser voids a loan and returns its reservation to the pool
type Reverser interface {
	Reverse(ctx context.Context, loanID string) (models.LoanRecord, error)
}

// Reporter receives a summary of each reconciliation run that did something
type Reporter interface {
	SendReconciliationReport(reversed []string, failed []string) error
}

// ReconcileJob reverses loans whose settlement never confirmed
type ReconcileJob struct {
	pending  PendingSource
	reverser Reverser
	reporter Reporter
	after    time.Duration
	timeout  time.Duration
	log      *logrus.Entry
	now      func() time.Time
}

// ReconcileConfig holds configuration for the reconcile job
type ReconcileConfig struct {
	Pending  PendingSource
	Reverser Reverser
	Reporter Reporter // optional
	After    time.Duration
	Timeout  time.Duration
	Log      *logrus.Logger
	Now      func() time.Time // defaults to time.Now
}

// NewReconcileJob creates a new reconcile job
func NewReconcileJob(cfg ReconcileConfig) *ReconcileJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ReconcileJob{
		pending:  cfg.Pending,
		reverser: cfg.Reverser,
		reporter: cfg.Reporter,
		after:    cfg.After,
		timeout:  cfg.Timeout,
		log:      cfg.Log.WithField("job", "reconcile"),
		now:      now,
	}
}

// Name returns the job name
func (j *ReconcileJob) Name() string {
	return "reconcile"
}

// Run reverses every loan that has been pending for longer than the threshold
func (j *ReconcileJob) Run() error {
	stale := j.pending.PendingOlderThan(j.now().UTC().Add(-j.after))
	if len(stale) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	var reversed, failed []string
	var errs []error
	for _, loan := range stale {
		entry := j.log.WithFields(logrus.Fields{
			"loan_id":    loan.LoanID,
			"subject_id": loan.SubjectID,
			"issued_at":  loan.IssuedAt,
		})
		if _, err := j.reverser.Reverse(ctx, loan.LoanID); err != nil {
			// Settlement confirmed between listing and reversal.
			if errors.Is(err, issuer.ErrAlreadySettled) {
				entry.Info("Loan settled before reconciliation")
				continue
			}
			entry.Errorf("Failed to reverse stale loan: %v", err)
			failed = append(failed, loan.LoanID)
			errs = append(errs, err)
			continue
		}
		entry.Warn("Stale pending loan reversed")
		reversed = append(reversed, loan.LoanID)
	}

	if j.reporter != nil {
		if err := j.reporter.SendReconciliationReport(reversed, failed); err != nil {
			j.log.Errorf("Failed to send reconciliation report: %v", err)
		}
	}
	return errors.Join(errs...)
}
