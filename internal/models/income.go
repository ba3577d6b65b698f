package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodEarning is a single amount reported by a platform connector
type PeriodEarning struct {
	Period int             `json:"period"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

// PlatformSeries is the raw earnings series of one platform
type PlatformSeries struct {
	Platform string          `json:"platform"`
	Earnings []PeriodEarning `json:"earnings"`
}

// IncomeRecord is one platform's earnings for one period
type IncomeRecord struct {
	Period   int             `json:"period"`
	Platform string          `json:"platform"`
	Amount   decimal.Decimal `json:"amount"`
	Date     time.Time       `json:"date"`
}

// PeriodTotal is the sum across platforms for one period
type PeriodTotal struct {
	Period int             `json:"period"`
	Amount decimal.Decimal `json:"amount"`
}

// IncomeHistory is the normalized income of a subject
type IncomeHistory struct {
	SubjectID     string          `json:"subject_id"`
	Granularity   Granularity     `json:"granularity"`
	Records       []IncomeRecord  `json:"records"`
	PeriodTotals  []PeriodTotal   `json:"period_totals"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	PeriodAverage decimal.Decimal `json:"period_average"`
	Platforms     []string        `json:"platforms"`
}

// PeriodAmounts returns the aligned period totals as floats, ordered by period
func (h IncomeHistory) PeriodAmounts() []float64 {
	out := make([]float64, len(h.PeriodTotals))
	for i, t := range h.PeriodTotals {
		out[i] = t.Amount.InexactFloat64()
	}
	return out
}
