package issuer

import (
	"time"

	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
)

var (
	minRate     = decimal.RequireFromString("0.05")
	maxRate     = decimal.RequireFromString("0.25")
	defaultRate = decimal.RequireFromString("0.15")
	daysPerYear = decimal.NewFromInt(365)
)

// InterestRate returns the annual rate as a fraction (0.12 = 12%).
func InterestRate(score int, purpose models.Purpose) decimal.Decimal {
	rate := defaultRate
	switch {
	case score >= 800:
		rate = decimal.RequireFromString("0.08")
	case score >= 750:
		rate = decimal.RequireFromString("0.10")
	case score >= 700:
		rate = decimal.RequireFromString("0.12")
	}

	switch purpose {
	case models.PurposeEmergency:
		rate = rate.Add(decimal.RequireFromString("0.01"))
	case models.PurposeBusiness:
		rate = rate.Sub(decimal.RequireFromString("0.01"))
	case models.PurposeEducation:
		rate = rate.Sub(decimal.RequireFromString("0.02"))
	case models.PurposePersonal:
	}

	return decimal.Max(minRate, decimal.Min(maxRate, rate))
}

// TermDays is the repayment window of a plan
func TermDays(plan models.RepaymentPlan) int {
	switch plan {
	case models.PlanWeekly:
		return 7
	case models.PlanBiWeekly:
		return 14
	case models.PlanMonthly:
		return 30
	}
	return 30
}

// DueDate is the issuance time plus the plan's term
func DueDate(issuedAt time.Time, plan models.RepaymentPlan) time.Time {
	return issuedAt.Add(time.Duration(TermDays(plan)) * 24 * time.Hour)
}

// Schedule returns the repayment installments of a loan. Loans are repaid in a
// single payment at DueAt with simple interest accrued over the term.
func Schedule(rec models.LoanRecord) []models.Installment {
	if rec.Voided() {
		return []models.Installment{}
	}
	days := decimal.NewFromInt(int64(TermDays(rec.RepaymentPlan)))
	interest := rec.Amount.Mul(rec.InterestRate).Mul(days).Div(daysPerYear).Round(2)
	return []models.Installment{{
		LoanID:   rec.LoanID,
		DueAt:    rec.DueAt,
		Amount:   rec.Amount.Add(interest),
		Interest: interest,
	}}
}
