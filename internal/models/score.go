package models

import "github.com/shopspring/decimal"

// Attributes are the behavioral inputs supplied alongside income
type Attributes struct {
	AverageHoursPerWeek float64        `json:"average_hours_per_week"`
	YearsExperience     float64        `json:"years_experience"`
	EducationLevel      EducationLevel `json:"education_level"`
	EmploymentType      EmploymentType `json:"employment_type"`
	AccountAgeMonths    int            `json:"bank_account_age_months"`
	HasSavings          bool           `json:"has_savings"`
	DebtToIncomeRatio   float64        `json:"debt_to_income_ratio"`
}

// ScoreFactors is the per-factor breakdown of a credit score
type ScoreFactors struct {
	IncomeStability   float64 `json:"income_stability"`
	IncomeLevel       float64 `json:"income_level"`
	EmploymentHistory float64 `json:"employment_history"`
	FinancialBehavior float64 `json:"financial_behavior"`
	PlatformDiversity float64 `json:"platform_diversity"`
	EducationBonus    float64 `json:"education_bonus"`
}

// CreditScoreResult is the outcome of one scoring evaluation
type CreditScoreResult struct {
	Score          int             `json:"credit_score"`
	Factors        ScoreFactors    `json:"factors"`
	Eligible       bool            `json:"eligible"`
	MaxLoanAmount  decimal.Decimal `json:"max_loan_amount"`
	Recommendation string          `json:"recommendation"`
	PeriodAverage  decimal.Decimal `json:"period_average"`
	Consistency    int             `json:"consistency"`
}
