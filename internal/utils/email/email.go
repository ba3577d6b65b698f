package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/gigcredit/internal/config"
	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// sendFunc delivers a composed message
type sendFunc func(e *email.Email) error

// Sender handles sending operator emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: logger,
	}
	s.send = s.sendSMTP
	return s
}

func (s *Sender) sendSMTP(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	return e.Send(addr, auth)
}

// SendDoubleFaultAlert tells the operator that a loan reservation could not be
// reversed after its settlement failed. Pool funds stay reserved until someone
// reconciles the loan by hand.
func (s *Sender) SendDoubleFaultAlert(loanID, subjectID string, amount decimal.Decimal, settleErr, reverseErr error) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.AlertEmail}
	e.Subject = fmt.Sprintf("[gigcredit] Manual reconciliation required for %s", loanID)

	body := fmt.Sprintf(
		"Loan %s for subject %s could not be settled and the reservation of %s was not reversed.\n\n"+
			"Settlement error: %v\n"+
			"Reversal error: %v\n"+
			"Detected at: %s\n\n"+
			"The pool balance is understated by this amount until the loan is reversed.\n",
		loanID, subjectID, amount.StringFixed(2), settleErr, reverseErr,
		time.Now().UTC().Format("2006-01-02 15:04:05"),
	)
	e.Text = []byte(body)

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send alert for %s to %s: %v", loanID, s.cfg.AlertEmail, err)
		return fmt.Errorf("failed to send alert: %w", err)
	}

	s.logger.Infof("Alert sent to %s: %s", s.cfg.AlertEmail, e.Subject)
	return nil
}

// SendLateSettlementAlert reports a settlement confirmed after its loan was voided.
func (s *Sender) SendLateSettlementAlert(loan models.LoanRecord) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.AlertEmail}
	e.Subject = fmt.Sprintf("[gigcredit] Late settlement for voided loan %s", loan.LoanID)

	outcome := "The amount was reserved from the pool again and the loan is now settled."
	if loan.Status != models.LoanSettled {
		outcome = "The pool could not cover the amount, so the pool balance is overstated until reconciled by hand."
	}
	body := fmt.Sprintf(
		"Loan %s for subject %s was voided, but the external ledger confirmed its settlement.\n\n"+
			"Amount: %s\n"+
			"Settlement reference: %s\n"+
			"Detected at: %s\n\n"+
			"%s\n",
		loan.LoanID, loan.SubjectID, loan.Amount.StringFixed(2), loan.SettlementRef,
		time.Now().UTC().Format("2006-01-02 15:04:05"), outcome,
	)
	e.Text = []byte(body)

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send late settlement alert for %s: %v", loan.LoanID, err)
		return fmt.Errorf("failed to send alert: %w", err)
	}

	s.logger.Infof("Alert sent to %s: %s", s.cfg.AlertEmail, e.Subject)
	return nil
}

// SendReconciliationReport summarizes loans reversed by the reconciler
func (s *Sender) SendReconciliationReport(reversed []string, failed []string) error {
	if len(reversed) == 0 && len(failed) == 0 {
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.AlertEmail}
	e.Subject = fmt.Sprintf("[gigcredit] Reconciliation: %d reversed, %d failed", len(reversed), len(failed))

	body := "Loans whose settlement never confirmed:\n\n"
	for _, id := range reversed {
		body += fmt.Sprintf("  reversed  %s\n", id)
	}
	for _, id := range failed {
		body += fmt.Sprintf("  FAILED    %s\n", id)
	}
	e.Text = []byte(body)

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send reconciliation report: %v", err)
		return fmt.Errorf("failed to send reconciliation report: %w", err)
	}
	return nil
}
