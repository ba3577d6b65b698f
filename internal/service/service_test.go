package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Dan9191/gigcredit/internal/config"
	"github.com/Dan9191/gigcredit/internal/eligibility"
	"github.com/Dan9191/gigcredit/internal/issuer"
	"github.com/Dan9191/gigcredit/internal/ledger"
	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/Dan9191/gigcredit/internal/scoring"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJournal struct {
	mu       sync.Mutex
	saved    []models.LoanRecord
	updated  []models.LoanRecord
	deposits []decimal.Decimal
}

func (j *fakeJournal) SaveLoan(_ context.Context, loan models.LoanRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.saved = append(j.saved, loan)
	return nil
}

func (j *fakeJournal) UpdateLoanStatus(_ context.Context, loan models.LoanRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.updated = append(j.updated, loan)
	return nil
}

func (j *fakeJournal) SaveDeposit(_ context.Context, amount decimal.Decimal, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.deposits = append(j.deposits, amount)
	return nil
}

type fakeDispatcher struct {
	dispatched []models.LoanRecord
}

func (d *fakeDispatcher) Dispatch(loan models.LoanRecord) error {
	d.dispatched = append(d.dispatched, loan)
	return nil
}

type fakeAlerter struct {
	alerts []models.LoanRecord
}

func (a *fakeAlerter) SendLateSettlementAlert(loan models.LoanRecord) error {
	a.alerts = append(a.alerts, loan)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		MinCreditScore:     700,
		Cooldown:           24 * time.Hour,
		MinLoanAmount:      decimal.NewFromInt(50),
		MaxLoanAmount:      decimal.NewFromInt(2000),
		MaxLoanCap:         decimal.NewFromInt(2000),
		PoolInitialBalance: decimal.NewFromInt(5000),
	}
}

func newTestService(t *testing.T, balance int64) (*Service, *fakeJournal, *fakeDispatcher) {
	t.Helper()
	cfg := testConfig()
	store, err := ledger.NewStore(decimal.NewFromInt(balance))
	require.NoError(t, err)
	gate := eligibility.NewGate(eligibility.Rules{
		MinScore:  cfg.MinCreditScore,
		Cooldown:  cfg.Cooldown,
		MaxAmount: cfg.MaxLoanAmount,
	})
	log, _ := test.NewNullLogger()
	iss := issuer.NewIssuer(store, gate, nil, log)
	journal := &fakeJournal{}
	dispatcher := &fakeDispatcher{}
	svc := NewService(scoring.NewEngine(scoring.DefaultPolicy()), iss, store, journal, log, cfg)
	svc.AttachDispatcher(dispatcher)
	return svc, journal, dispatcher
}

func application(subject, amount, score string) LoanApplication {
	return LoanApplication{
		SubjectID:     subject,
		Amount:        json.RawMessage(amount),
		CreditScore:   json.RawMessage(score),
		Purpose:       "business",
		RepaymentPlan: "monthly",
	}
}

func TestRequestLoan_Approved(t *testing.T) {
	svc, journal, dispatcher := newTestService(t, 5000)

	resp, err := svc.RequestLoan(context.Background(), application("worker-1", "1000", "780"))
	require.NoError(t, err)
	require.True(t, resp.Success)

	assert.NotEmpty(t, resp.LoanID)
	assert.True(t, decimal.NewFromInt(1000).Equal(*resp.Amount))
	assert.Equal(t, "pending:"+resp.LoanID, resp.SettlementRef)
	assert.Equal(t, 30*24*time.Hour, resp.DueAt.Sub(*resp.IssuedAt))

	require.Len(t, journal.saved, 1)
	assert.Equal(t, resp.LoanID, journal.saved[0].LoanID)
	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, resp.LoanID, dispatcher.dispatched[0].LoanID)
	assert.True(t, decimal.NewFromInt(4000).Equal(svc.PoolStats().Balance))
}

func TestRequestLoan_ValidationErrors(t *testing.T) {
	svc, journal, _ := newTestService(t, 5000)

	tests := []struct {
		name string
		app  LoanApplication
		want []string
	}{
		{
			name: "amount below minimum",
			app:  application("worker-1", "10", "780"),
			want: []string{"minimum loan amount is 50"},
		},
		{
			name: "amount above maximum",
			app:  application("worker-1", "2500", "780"),
			want: []string{"maximum loan amount is 2000"},
		},
		{
			name: "non numeric amount",
			app:  application("worker-1", `"abc"`, "780"),
			want: []string{"amount is required and must be a number"},
		},
		{
			name: "score out of range",
			app:  application("worker-1", "500", "900"),
			want: []string{"credit_score must be between 300 and 850"},
		},
		{
			name: "fractional score",
			app:  application("worker-1", "500", "720.5"),
			want: []string{"credit_score is required and must be an integer"},
		},
		{
			name: "everything missing",
			app:  LoanApplication{},
			want: []string{
				"subject_id is required",
				"amount is required and must be a number",
				"credit_score is required and must be an integer",
				"purpose must be one of: emergency, business, personal, education",
				"repayment_plan must be one of: weekly, bi_weekly, monthly",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.RequestLoan(context.Background(), tt.app)
			require.NoError(t, err)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want, resp.ValidationErrors)
		})
	}
	assert.Empty(t, journal.saved)
}

func TestRequestLoan_Declines(t *testing.T) {
	svc, _, dispatcher := newTestService(t, 1500)

	resp, err := svc.RequestLoan(context.Background(), application("worker-1", "500", "650"))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "below_minimum_score", resp.Reason)
	assert.Equal(t, 700, resp.MinScore)

	resp, err = svc.RequestLoan(context.Background(), application("worker-1", "1800", "780"))
	require.NoError(t, err)
	assert.Equal(t, "insufficient_pool_liquidity", resp.Reason)
	require.NotNil(t, resp.PoolBalance)
	assert.True(t, decimal.NewFromInt(1500).Equal(*resp.PoolBalance))

	resp, err = svc.RequestLoan(context.Background(), application("worker-1", "500", "780"))
	require.NoError(t, err)
	require.True(t, resp.Success)

	resp, err = svc.RequestLoan(context.Background(), application("worker-1", "100", "780"))
	require.NoError(t, err)
	assert.Equal(t, "cooldown_active", resp.Reason)
	assert.Positive(t, resp.CooldownSeconds)

	assert.Len(t, dispatcher.dispatched, 1)
}

func TestReverse_JournalsAndRestoresPool(t *testing.T) {
	svc, journal, _ := newTestService(t, 5000)

	resp, err := svc.RequestLoan(context.Background(), application("worker-1", "800", "780"))
	require.NoError(t, err)
	require.True(t, resp.Success)

	loan, err := svc.SettlementFailed(context.Background(), resp.LoanID, "RJCT")
	require.NoError(t, err)
	assert.True(t, loan.Voided())
	assert.True(t, decimal.NewFromInt(5000).Equal(svc.PoolStats().Balance))

	_, err = svc.Reverse(context.Background(), resp.LoanID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(svc.PoolStats().Balance))
	assert.Len(t, journal.updated, 2)

	_, err = svc.Reverse(context.Background(), "LOAN_MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmSettlement(t *testing.T) {
	svc, journal, _ := newTestService(t, 5000)

	resp, err := svc.RequestLoan(context.Background(), application("worker-1", "800", "780"))
	require.NoError(t, err)

	loan, err := svc.ConfirmSettlement(resp.LoanID, "TX-42")
	require.NoError(t, err)
	assert.Equal(t, models.LoanSettled, loan.Status)
	assert.Equal(t, "TX-42", loan.SettlementRef)
	require.Len(t, journal.updated, 1)

	_, err = svc.Reverse(context.Background(), resp.LoanID)
	assert.ErrorIs(t, err, issuer.ErrAlreadySettled)

	details, err := svc.Loan(resp.LoanID)
	require.NoError(t, err)
	require.Len(t, details.Schedule, 1)

	_, err = svc.ConfirmSettlement("LOAN_MISSING", "TX-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmSettlement_AfterReverse(t *testing.T) {
	svc, journal, _ := newTestService(t, 5000)
	alerter := &fakeAlerter{}
	svc.AttachAlerter(alerter)

	resp, err := svc.RequestLoan(context.Background(), application("worker-1", "1000", "780"))
	require.NoError(t, err)
	require.True(t, resp.Success)

	_, err = svc.Reverse(context.Background(), resp.LoanID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(svc.PoolStats().Balance))

	loan, err := svc.ConfirmSettlement(resp.LoanID, "chain-tx-1")
	assert.ErrorIs(t, err, ledger.ErrSettledAfterVoid)
	assert.Equal(t, "chain-tx-1", loan.SettlementRef)
	assert.Equal(t, models.LoanSettled, loan.Status)
	assert.True(t, decimal.NewFromInt(4000).Equal(svc.PoolStats().Balance))

	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, resp.LoanID, alerter.alerts[0].LoanID)
	require.Len(t, journal.updated, 2)
	assert.Equal(t, "chain-tx-1", journal.updated[1].SettlementRef)
	assert.Equal(t, models.LoanSettled, journal.updated[1].Status)

	details, err := svc.Loan(resp.LoanID)
	require.NoError(t, err)
	assert.Equal(t, "chain-tx-1", details.Loan.SettlementRef)
}

func TestHistoryAndDeposit(t *testing.T) {
	svc, journal, _ := newTestService(t, 1000)

	balance, err := svc.Deposit(context.Background(), decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1250).Equal(balance))
	assert.Len(t, journal.deposits, 1)

	_, err = svc.Deposit(context.Background(), decimal.NewFromInt(-5))
	assert.Error(t, err)
	_, err = svc.Deposit(context.Background(), decimal.RequireFromString("100.005"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	assert.Len(t, journal.deposits, 1)

	_, err = svc.RequestLoan(context.Background(), application("worker-1", "200", "780"))
	require.NoError(t, err)

	h := svc.History("worker-1")
	assert.Equal(t, 1, h.TotalLoans)
	assert.Empty(t, svc.History("worker-2").Loans)

	_, err = svc.Loan("LOAN_MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScore(t *testing.T) {
	svc, _, _ := newTestService(t, 1000)

	earnings := func(amounts ...int64) []models.PeriodEarning {
		out := make([]models.PeriodEarning, len(amounts))
		for i, a := range amounts {
			out[i] = models.PeriodEarning{Period: i + 1, Amount: decimal.NewFromInt(a)}
		}
		return out
	}

	resp, err := svc.Score(ScoreRequest{
		SubjectID: "worker-1",
		Platforms: []models.PlatformSeries{
			{Platform: "Uber", Earnings: earnings(400, 420, 410, 430)},
			{Platform: "Rappi", Earnings: earnings(300, 310, 290, 305)},
		},
		Attributes: AttributesInput{
			AverageHoursPerWeek: 40,
			YearsExperience:     3,
			EducationLevel:      "bachelor",
			EmploymentType:      "full_time_gig",
			AccountAgeMonths:    24,
			HasSavings:          true,
			DebtToIncomeRatio:   0.2,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rappi", "Uber"}, resp.History.Platforms)
	assert.GreaterOrEqual(t, resp.Result.Score, scoring.MinScore)
	assert.LessOrEqual(t, resp.Result.Score, scoring.MaxScore)

	_, err = svc.Score(ScoreRequest{
		SubjectID:   "worker-1",
		Granularity: "daily",
		Attributes:  AttributesInput{EducationLevel: "phd", EmploymentType: "robot"},
	})
	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestDemoIncome_Deterministic(t *testing.T) {
	svc, _, _ := newTestService(t, 1000)
	fixed := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	a := svc.DemoIncome("worker-1")
	b := svc.DemoIncome("worker-1")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a.Records)
}
