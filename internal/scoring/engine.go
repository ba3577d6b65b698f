// Package scoring turns a normalized income history and behavioral attributes
// into an explainable credit score. Every function here is pure.
package scoring

import (
	"math"

	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

const (
	MinScore = 500
	MaxScore = 850

	weightStability  = 0.25
	weightLevel      = 0.25
	weightEmployment = 0.20
	weightBehavior   = 0.20
	weightDiversity  = 0.10
	weightEducation  = 0.20

	minStabilityPeriods = 3
)

// Policy holds the tunables of the engine
type Policy struct {
	// EligibleScore is the minimum score that makes a subject eligible.
	EligibleScore int
	// MaxLoanCap bounds the max loan amount regardless of income.
	MaxLoanCap decimal.Decimal
	// IncomeShare is the fraction of mean period income offered as max loan.
	IncomeShare decimal.Decimal
}

// DefaultPolicy returns the production policy
func DefaultPolicy() Policy {
	return Policy{
		EligibleScore: 700,
		MaxLoanCap:    decimal.NewFromInt(2000),
		IncomeShare:   decimal.NewFromFloat(0.5),
	}
}

// Engine computes credit scores
type Engine struct {
	policy Policy
}

// NewEngine creates a new scoring engine
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Score evaluates a history. It never fails; missing income degrades the score.
func (e *Engine) Score(history models.IncomeHistory, attrs models.Attributes) models.CreditScoreResult {
	amounts := history.PeriodAmounts()

	factors := models.ScoreFactors{
		IncomeStability:   IncomeStability(amounts),
		IncomeLevel:       IncomeLevel(amounts),
		EmploymentHistory: EmploymentHistory(attrs.YearsExperience, attrs.AccountAgeMonths),
		FinancialBehavior: FinancialBehavior(attrs.DebtToIncomeRatio, attrs.HasSavings, attrs.EmploymentType),
		PlatformDiversity: PlatformDiversity(len(history.Platforms), attrs.AverageHoursPerWeek),
		EducationBonus:    EducationBonus(attrs.EducationLevel),
	}

	score := Composite(factors)
	eligible := score >= e.policy.EligibleScore

	mean := decimal.Zero
	if len(amounts) > 0 {
		mean = history.PeriodAverage
	}

	maxLoan := decimal.Zero
	if eligible {
		maxLoan = decimal.Min(e.policy.MaxLoanCap, mean.Mul(e.policy.IncomeShare).Round(0))
	}

	return models.CreditScoreResult{
		Score:          score,
		Factors:        factors,
		Eligible:       eligible,
		MaxLoanAmount:  maxLoan,
		Recommendation: Recommendation(score),
		PeriodAverage:  mean.Round(2),
		Consistency:    Consistency(amounts),
	}
}

// Composite weights the factors and maps the total onto [MinScore, MaxScore].
func Composite(f models.ScoreFactors) int {
	total := clamp(f.IncomeStability, 0, 100)*weightStability +
		clamp(f.IncomeLevel, 0, 100)*weightLevel +
		clamp(f.EmploymentHistory, 0, 100)*weightEmployment +
		clamp(f.FinancialBehavior, 0, 100)*weightBehavior +
		clamp(f.PlatformDiversity, 0, 100)*weightDiversity +
		clamp(f.EducationBonus, 0, 50)*weightEducation

	score := int(math.Round(MinScore + (total/100)*(MaxScore-MinScore)))
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// coefficientOfVariation uses the population standard deviation
func coefficientOfVariation(amounts []float64) (float64, bool) {
	if len(amounts) == 0 {
		return 0, false
	}
	mean, std := stat.PopMeanStdDev(amounts, nil)
	if mean <= 0 {
		return 0, false
	}
	return std / mean, true
}

// IncomeStability penalizes volatile earnings; fewer than three periods score 0.
func IncomeStability(amounts []float64) float64 {
	if len(amounts) < minStabilityPeriods {
		return 0
	}
	cv, ok := coefficientOfVariation(amounts)
	if !ok {
		return 0
	}
	return clamp(100-cv*100, 0, 100)
}

// IncomeLevel maps mean period income onto a step function
func IncomeLevel(amounts []float64) float64 {
	if len(amounts) == 0 {
		return 0
	}
	mean := stat.Mean(amounts, nil)
	switch {
	case mean >= 5000:
		return 100
	case mean >= 3000:
		return 80
	case mean >= 2000:
		return 60
	case mean >= 1000:
		return 40
	case mean >= 500:
		return 20
	default:
		return 10
	}
}

// EmploymentHistory rewards experience and bank account age, 50 points each
func EmploymentHistory(yearsExperience float64, accountAgeMonths int) float64 {
	experience := math.Min(50, math.Max(0, yearsExperience)*10)
	account := math.Min(50, math.Max(0, float64(accountAgeMonths))*2)
	return clamp(experience+account, 0, 100)
}

// FinancialBehavior combines debt load, savings and employment type
func FinancialBehavior(debtToIncome float64, hasSavings bool, employment models.EmploymentType) float64 {
	var score float64
	switch {
	case debtToIncome <= 0.2:
		score += 40
	case debtToIncome <= 0.4:
		score += 30
	case debtToIncome <= 0.6:
		score += 20
	case debtToIncome <= 0.8:
		score += 10
	}

	if hasSavings {
		score += 30
	}

	switch employment {
	case models.EmploymentFullTimeGig:
		score += 30
	case models.EmploymentMixed:
		score += 20
	case models.EmploymentPartTimeGig:
		score += 10
	case models.EmploymentUnemployed:
	}

	return clamp(score, 0, 100)
}

// PlatformDiversity rewards working several platforms and committed hours
func PlatformDiversity(platformCount int, hoursPerWeek float64) float64 {
	var score float64
	switch {
	case platformCount >= 4:
		score += 50
	case platformCount == 3:
		score += 40
	case platformCount == 2:
		score += 25
	case platformCount == 1:
		score += 10
	}

	switch {
	case hoursPerWeek >= 40:
		score += 50
	case hoursPerWeek >= 30:
		score += 40
	case hoursPerWeek >= 20:
		score += 25
	case hoursPerWeek >= 10:
		score += 15
	default:
		score += 5
	}

	return clamp(score, 0, 100)
}

// EducationBonus is worth up to 50 points
func EducationBonus(level models.EducationLevel) float64 {
	switch level {
	case models.EducationPhD:
		return 50
	case models.EducationMaster:
		return 40
	case models.EducationBachelor:
		return 30
	case models.EducationHighSchool:
		return 20
	case models.EducationNone:
		return 0
	}
	return 0
}

// Consistency is 100 for perfectly flat income and 0 at a CV of 1 or more.
func Consistency(amounts []float64) int {
	cv, ok := coefficientOfVariation(amounts)
	if !ok {
		return 0
	}
	return int(math.Round((1 - math.Min(1, cv)) * 100))
}

// Recommendation describes the score bracket
func Recommendation(score int) string {
	switch {
	case score >= 800:
		return "Excellent credit profile! You qualify for our best rates."
	case score >= 750:
		return "Very good credit profile with low risk."
	case score >= 700:
		return "Good credit profile. You qualify for loans."
	case score >= 650:
		return "Fair credit. Consider improving income stability or reducing debt."
	default:
		return "Poor credit. Focus on increasing income and building financial history."
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
