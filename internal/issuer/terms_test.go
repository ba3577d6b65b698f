package issuer

import (
	"testing"
	"time"

	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterestRate(t *testing.T) {
	tests := []struct {
		score   int
		purpose models.Purpose
		want    string
	}{
		{820, models.PurposePersonal, "0.08"},
		{820, models.PurposeEducation, "0.06"},
		{820, models.PurposeEmergency, "0.09"},
		{760, models.PurposeBusiness, "0.09"},
		{700, models.PurposePersonal, "0.12"},
		{700, models.PurposeEmergency, "0.13"},
		{650, models.PurposePersonal, "0.15"},
		{650, models.PurposeEducation, "0.13"},
	}
	for _, tt := range tests {
		got := InterestRate(tt.score, tt.purpose)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "score %d purpose %s: got %s", tt.score, tt.purpose, got)
		assert.True(t, got.GreaterThanOrEqual(minRate))
		assert.True(t, got.LessThanOrEqual(maxRate))
	}
}

func TestDueDate(t *testing.T) {
	issued := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, issued.Add(7*24*time.Hour), DueDate(issued, models.PlanWeekly))
	assert.Equal(t, issued.Add(14*24*time.Hour), DueDate(issued, models.PlanBiWeekly))
	assert.Equal(t, issued.Add(30*24*time.Hour), DueDate(issued, models.PlanMonthly))
}

func TestSchedule(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := models.LoanRecord{
		LoanID:        "LOAN_1",
		Amount:        decimal.NewFromInt(365),
		InterestRate:  decimal.RequireFromString("0.10"),
		RepaymentPlan: models.PlanMonthly,
		IssuedAt:      issued,
		DueAt:         DueDate(issued, models.PlanMonthly),
		Status:        models.LoanPendingSettlement,
	}

	plan := Schedule(rec)
	require.Len(t, plan, 1)
	assert.True(t, decimal.NewFromInt(3).Equal(plan[0].Interest))
	assert.True(t, decimal.NewFromInt(368).Equal(plan[0].Amount))
	assert.Equal(t, rec.DueAt, plan[0].DueAt)

	rec.Status = models.LoanVoided
	assert.Empty(t, Schedule(rec))
}
