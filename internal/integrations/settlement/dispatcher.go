package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Settler submits a transfer to the external ledger
type Settler interface {
	Settle(ctx context.Context, req Request) (string, error)
}

// Compensator is the issuer side of the two-phase hand-off
type Compensator interface {
	ConfirmSettlement(loanID, ref string) (models.LoanRecord, error)
	Reverse(ctx context.Context, loanID string) (models.LoanRecord, error)
}

// Alerter notifies an operator when compensation itself fails
type Alerter interface {
	SendDoubleFaultAlert(loanID, subjectID string, amount decimal.Decimal, settleErr, reverseErr error) error
}

// Dispatcher settles reserved loans in the background. The reservation is
// already committed when Dispatch is called, so nothing here holds the
// ledger lock while waiting on the network.
type Dispatcher struct {
	settler     Settler
	compensator Compensator
	alerter     Alerter
	timeout     time.Duration
	log         *logrus.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewDispatcher creates a dispatcher. alerter may be nil.
func NewDispatcher(settler Settler, compensator Compensator, alerter Alerter, timeout time.Duration, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		settler:     settler,
		compensator: compensator,
		alerter:     alerter,
		timeout:     timeout,
		log:         log,
	}
}

// Dispatch starts settlement of a loan. It returns immediately.
func (d *Dispatcher) Dispatch(rec models.LoanRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return fmt.Errorf("dispatcher stopped, loan %s left pending", rec.LoanID)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.settle(rec)
	}()
	return nil
}

// settle runs one hand-off to completion
func (d *Dispatcher) settle(rec models.LoanRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	entry := d.log.WithFields(logrus.Fields{
		"loan_id":    rec.LoanID,
		"subject_id": rec.SubjectID,
		"amount":     rec.Amount.String(),
	})

	ref, err := d.settler.Settle(ctx, Request{
		LoanID:    rec.LoanID,
		SubjectID: rec.SubjectID,
		Amount:    rec.Amount,
	})
	switch {
	case err == nil:
		if _, err := d.compensator.ConfirmSettlement(rec.LoanID, ref); err != nil {
			entry.Errorf("Failed to record settlement reference %s: %v", ref, err)
		}
		return
	case errors.Is(err, ErrSettlementPending):
		entry.Info("Settlement accepted but not final, awaiting confirmation")
		return
	}

	entry.Warnf("Settlement failed, reversing reservation: %v", err)
	d.Compensate(rec, err)
}

// Compensate reverses a loan whose settlement failed and alerts an operator
// if the reversal fails as well.
func (d *Dispatcher) Compensate(rec models.LoanRecord, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if _, err := d.compensator.Reverse(ctx, rec.LoanID); err != nil {
		d.log.WithFields(logrus.Fields{
			"loan_id":    rec.LoanID,
			"subject_id": rec.SubjectID,
		}).Errorf("Reversal failed after settlement failure: %v", err)
		if d.alerter == nil {
			return
		}
		if alertErr := d.alerter.SendDoubleFaultAlert(rec.LoanID, rec.SubjectID, rec.Amount, cause, err); alertErr != nil {
			d.log.Errorf("Failed to alert operator about loan %s: %v", rec.LoanID, alertErr)
		}
	}
}

// Shutdown stops accepting loans and waits for in-flight settlements.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
