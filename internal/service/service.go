package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/gigcredit/internal/config"
	"github.com/Dan9191/gigcredit/internal/eligibility"
	"github.com/Dan9191/gigcredit/internal/income"
	"github.com/Dan9191/gigcredit/internal/issuer"
	"github.com/Dan9191/gigcredit/internal/ledger"
	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/Dan9191/gigcredit/internal/scoring"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a loan does not exist
var ErrNotFound = errors.New("not found")

// Journal persists ledger changes outside the ledger lock
type Journal interface {
	SaveLoan(ctx context.Context, loan models.LoanRecord) error
	UpdateLoanStatus(ctx context.Context, loan models.LoanRecord) error
	SaveDeposit(ctx context.Context, amount decimal.Decimal, at time.Time) error
}

// Dispatcher hands committed loans to settlement
type Dispatcher interface {
	Dispatch(loan models.LoanRecord) error
}

// Alerter notifies an operator about settlements the ledger cannot absorb
type Alerter interface {
	SendLateSettlementAlert(loan models.LoanRecord) error
}

// Service handles business logic
type Service struct {
	engine     *scoring.Engine
	issuer     *issuer.Issuer
	store      *ledger.Store
	journal    Journal
	dispatcher Dispatcher
	alerter    Alerter
	log        *logrus.Logger
	config     *config.Config
	now        func() time.Time
}

// NewService initializes a new service. journal may be nil when running
// without persistence.
func NewService(engine *scoring.Engine, iss *issuer.Issuer, store *ledger.Store, journal Journal, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{
		engine:  engine,
		issuer:  iss,
		store:   store,
		journal: journal,
		log:     log,
		config:  cfg,
		now:     time.Now,
	}
}

// AttachDispatcher wires the settlement hand-off. Without one, loans stay
// pending until the settlement callback or the reconciler resolves them.
func (s *Service) AttachDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// AttachAlerter wires operator notifications
func (s *Service) AttachAlerter(a Alerter) {
	s.alerter = a
}

// AttributesInput is the raw behavioral input of a scoring request
type AttributesInput struct {
	AverageHoursPerWeek float64 `json:"average_hours_per_week"`
	YearsExperience     float64 `json:"years_experience"`
	EducationLevel      string  `json:"education_level"`
	EmploymentType      string  `json:"employment_type"`
	AccountAgeMonths    int     `json:"bank_account_age_months"`
	HasSavings          bool    `json:"has_savings"`
	DebtToIncomeRatio   float64 `json:"debt_to_income_ratio"`
}

// ScoreRequest is the input of a scoring evaluation
type ScoreRequest struct {
	SubjectID   string                  `json:"subject_id"`
	Granularity string                  `json:"granularity"`
	Platforms   []models.PlatformSeries `json:"platforms"`
	Attributes  AttributesInput         `json:"attributes"`
}

// ScoreResponse carries the score together with the history it was computed on
type ScoreResponse struct {
	Result  models.CreditScoreResult `json:"result"`
	History models.IncomeHistory     `json:"income_history"`
}

// Score aggregates the platform income and scores it
func (s *Service) Score(req ScoreRequest) (*ScoreResponse, error) {
	var errs models.ValidationErrors

	granularity, err := models.ParseGranularity(req.Granularity)
	if err != nil {
		errs = append(errs, err.Error())
	}
	education, err := models.ParseEducationLevel(req.Attributes.EducationLevel)
	if err != nil {
		errs = append(errs, err.Error())
	}
	employment, err := models.ParseEmploymentType(req.Attributes.EmploymentType)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if req.Attributes.AverageHoursPerWeek < 0 || req.Attributes.AverageHoursPerWeek > 168 {
		errs = append(errs, "average_hours_per_week must be between 0 and 168")
	}
	if req.Attributes.YearsExperience < 0 {
		errs = append(errs, "years_experience cannot be negative")
	}
	if req.Attributes.AccountAgeMonths < 0 {
		errs = append(errs, "bank_account_age_months cannot be negative")
	}
	if req.Attributes.DebtToIncomeRatio < 0 {
		errs = append(errs, "debt_to_income_ratio cannot be negative")
	}

	history, err := income.Aggregate(req.SubjectID, granularity, req.Platforms)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return nil, errs
	}

	result := s.engine.Score(history, models.Attributes{
		AverageHoursPerWeek: req.Attributes.AverageHoursPerWeek,
		YearsExperience:     req.Attributes.YearsExperience,
		EducationLevel:      education,
		EmploymentType:      employment,
		AccountAgeMonths:    req.Attributes.AccountAgeMonths,
		HasSavings:          req.Attributes.HasSavings,
		DebtToIncomeRatio:   req.Attributes.DebtToIncomeRatio,
	})

	s.log.WithFields(logrus.Fields{
		"subject_id": req.SubjectID,
		"score":      result.Score,
		"eligible":   result.Eligible,
	}).Info("Credit score computed")
	return &ScoreResponse{Result: result, History: history}, nil
}

// LoanApplication is the raw loan request as received from a caller.
// Numbers are kept raw so non-numeric input becomes a validation error.
type LoanApplication struct {
	SubjectID     string          `json:"subject_id"`
	Amount        json.RawMessage `json:"amount"`
	CreditScore   json.RawMessage `json:"credit_score"`
	Purpose       string          `json:"purpose"`
	RepaymentPlan string          `json:"repayment_plan"`
}

// LoanResponse is the result of a loan request
type LoanResponse struct {
	Success          bool             `json:"success"`
	LoanID           string           `json:"loan_id,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	InterestRate     *decimal.Decimal `json:"interest_rate,omitempty"`
	IssuedAt         *time.Time       `json:"issued_at,omitempty"`
	DueAt            *time.Time       `json:"due_at,omitempty"`
	SettlementRef    string           `json:"settlement_ref,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	Message          string           `json:"message,omitempty"`
	CooldownSeconds  int64            `json:"cooldown_remaining_seconds,omitempty"`
	PoolBalance      *decimal.Decimal `json:"pool_balance,omitempty"`
	MinScore         int              `json:"min_score,omitempty"`
	ValidationErrors []string         `json:"validation_errors,omitempty"`
}

// Validate converts an application into a typed request, collecting every problem
func (s *Service) Validate(app LoanApplication) (models.LoanRequest, models.ValidationErrors) {
	var errs models.ValidationErrors
	req := models.LoanRequest{SubjectID: strings.TrimSpace(app.SubjectID)}

	if req.SubjectID == "" {
		errs = append(errs, "subject_id is required")
	}

	if amount, err := parseNumber(app.Amount); err != nil {
		errs = append(errs, "amount is required and must be a number")
	} else if !amount.Equal(amount.Round(2)) {
		errs = append(errs, "amount must have at most 2 decimal places")
	} else if amount.LessThan(s.config.MinLoanAmount) {
		errs = append(errs, fmt.Sprintf("minimum loan amount is %s", s.config.MinLoanAmount))
	} else if amount.GreaterThan(s.config.MaxLoanAmount) {
		errs = append(errs, fmt.Sprintf("maximum loan amount is %s", s.config.MaxLoanAmount))
	} else {
		req.Amount = amount
	}

	if score, err := parseNumber(app.CreditScore); err != nil || !score.IsInteger() {
		errs = append(errs, "credit_score is required and must be an integer")
	} else if score.LessThan(decimal.NewFromInt(300)) || score.GreaterThan(decimal.NewFromInt(850)) {
		errs = append(errs, "credit_score must be between 300 and 850")
	} else {
		req.Score = int(score.IntPart())
	}

	if p, err := models.ParsePurpose(app.Purpose); err != nil {
		errs = append(errs, "purpose must be one of: emergency, business, personal, education")
	} else {
		req.Purpose = p
	}

	if plan, err := models.ParseRepaymentPlan(app.RepaymentPlan); err != nil {
		errs = append(errs, "repayment_plan must be one of: weekly, bi_weekly, monthly")
	} else {
		req.RepaymentPlan = plan
	}

	return req, errs
}

// RequestLoan validates, evaluates and, if approved, issues a loan and
// hands it to settlement. Validation failures and declines are normal
// results; only invariant violations and cancellation surface as errors.
func (s *Service) RequestLoan(ctx context.Context, app LoanApplication) (*LoanResponse, error) {
	req, verrs := s.Validate(app)
	if len(verrs) > 0 {
		s.log.WithField("subject_id", app.SubjectID).Infof("Loan request rejected: %v", verrs)
		return &LoanResponse{Success: false, ValidationErrors: verrs}, nil
	}

	out, err := s.issuer.Issue(ctx, req)
	if err != nil {
		return nil, err
	}

	if !out.Decision.Approved() {
		balance := out.Decision.PoolBalance
		resp := &LoanResponse{
			Success:         false,
			Reason:          string(out.Decision.Reason),
			Message:         out.Decision.Message,
			CooldownSeconds: out.Decision.CooldownSeconds,
			MinScore:        out.Decision.MinScore,
		}
		if out.Decision.Reason == eligibility.ReasonInsufficientPool {
			resp.PoolBalance = &balance
		}
		return resp, nil
	}

	loan := *out.Loan
	if s.journal != nil {
		// Issuance is already committed in memory; a journal failure must not undo it.
		if err := s.journal.SaveLoan(ctx, loan); err != nil {
			s.log.WithField("loan_id", loan.LoanID).Errorf("Failed to journal loan: %v", err)
		}
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(loan); err != nil {
			s.log.WithField("loan_id", loan.LoanID).Warnf("Settlement not dispatched: %v", err)
		}
	}

	return &LoanResponse{
		Success:       true,
		LoanID:        loan.LoanID,
		Amount:        &loan.Amount,
		InterestRate:  &loan.InterestRate,
		IssuedAt:      &loan.IssuedAt,
		DueAt:         &loan.DueAt,
		SettlementRef: loan.SettlementRef,
	}, nil
}

// Reverse voids a loan and restores its reservation. Safe to call repeatedly.
func (s *Service) Reverse(ctx context.Context, loanID string) (models.LoanRecord, error) {
	loan, err := s.issuer.Reverse(ctx, loanID)
	if err != nil {
		if errors.Is(err, ledger.ErrLoanNotFound) {
			return loan, fmt.Errorf("loan %s: %w", loanID, ErrNotFound)
		}
		return loan, err
	}
	s.persistStatus(ctx, loan)
	return loan, nil
}

// ConfirmSettlement records the external settlement reference
func (s *Service) ConfirmSettlement(loanID, ref string) (models.LoanRecord, error) {
	loan, err := s.issuer.ConfirmSettlement(loanID, ref)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrLoanNotFound):
			return loan, fmt.Errorf("loan %s: %w", loanID, ErrNotFound)
		case errors.Is(err, ledger.ErrSettledAfterVoid):
			// The reference and any renewed reservation must survive a restart.
			s.persistStatus(context.Background(), loan)
			s.alertLateSettlement(loan)
		}
		return loan, err
	}
	s.persistStatus(context.Background(), loan)
	return loan, nil
}

// SettlementFailed handles a failure reported by the settlement collaborator
func (s *Service) SettlementFailed(ctx context.Context, loanID, reason string) (models.LoanRecord, error) {
	s.log.WithField("loan_id", loanID).Warnf("Settlement failure reported: %s", reason)
	return s.Reverse(ctx, loanID)
}

func (s *Service) alertLateSettlement(loan models.LoanRecord) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.SendLateSettlementAlert(loan); err != nil {
		s.log.WithField("loan_id", loan.LoanID).Errorf("Failed to alert operator about late settlement: %v", err)
	}
}

func (s *Service) persistStatus(ctx context.Context, loan models.LoanRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.UpdateLoanStatus(ctx, loan); err != nil {
		s.log.WithField("loan_id", loan.LoanID).Errorf("Failed to journal loan status: %v", err)
	}
}

// LoanDetails is a loan with its repayment schedule
type LoanDetails struct {
	Loan     models.LoanRecord    `json:"loan"`
	Schedule []models.Installment `json:"schedule"`
}

// Loan returns a loan and its repayment schedule
func (s *Service) Loan(loanID string) (*LoanDetails, error) {
	loan, err := s.issuer.Loan(loanID)
	if err != nil {
		return nil, fmt.Errorf("loan %s: %w", loanID, ErrNotFound)
	}
	return &LoanDetails{Loan: loan, Schedule: issuer.Schedule(loan)}, nil
}

// LoanHistory is the ledger of one subject
type LoanHistory struct {
	SubjectID  string              `json:"subject_id"`
	Loans      []models.LoanRecord `json:"loans"`
	TotalLoans int                 `json:"total_loans"`
}

// History returns the subject's loan history, oldest first
func (s *Service) History(subjectID string) LoanHistory {
	loans := s.issuer.History(subjectID)
	return LoanHistory{SubjectID: subjectID, Loans: loans, TotalLoans: len(loans)}
}

// PoolStats summarizes the liquidity pool
func (s *Service) PoolStats() models.PoolStats {
	return s.store.Stats()
}

// Deposit adds liquidity to the pool
func (s *Service) Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := s.store.Deposit(amount)
	if err != nil {
		return decimal.Zero, err
	}
	if s.journal != nil {
		if err := s.journal.SaveDeposit(ctx, amount, s.now().UTC()); err != nil {
			s.log.Errorf("Failed to journal deposit of %s: %v", amount, err)
		}
	}
	s.log.Infof("Pool deposit of %s, balance now %s", amount, balance)
	return balance, nil
}

// DemoIncome returns deterministic sample income for display
func (s *Service) DemoIncome(subjectID string) models.IncomeHistory {
	return income.Demo(subjectID, s.now())
}

func parseNumber(raw json.RawMessage) (decimal.Decimal, error) {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" || strings.HasPrefix(v, `"`) {
		return decimal.Zero, fmt.Errorf("not a number: %s", v)
	}
	return decimal.NewFromString(v)
}
