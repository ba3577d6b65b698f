package utils

import (
	"testing"
	"time"

	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLoan() models.LoanRecord {
	issued := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	return models.LoanRecord{
		LoanID:        "LOAN_ABC",
		SubjectID:     "worker-7",
		Amount:        decimal.NewFromInt(450),
		Score:         771,
		InterestRate:  decimal.RequireFromString("0.1"),
		Purpose:       models.PurposePersonal,
		RepaymentPlan: models.PlanWeekly,
		IssuedAt:      issued,
		DueAt:         issued.Add(7 * 24 * time.Hour),
		Status:        models.LoanPendingSettlement,
	}
}

func TestLedgerSealer(t *testing.T) {
	s, err := NewLedgerSealer([]byte("0123456789abcdef"))
	require.NoError(t, err)

	rec := sampleLoan()
	rec.Seal = s.Seal(rec)
	assert.Len(t, rec.Seal, 64)
	assert.True(t, s.Verify(rec))

	// settlement outcome is not part of the seal
	rec.Status = models.LoanSettled
	rec.SettlementRef = "ref-1"
	assert.True(t, s.Verify(rec))

	tampered := rec
	tampered.Amount = decimal.NewFromInt(4500)
	assert.False(t, s.Verify(tampered))

	// journal round trip normalizes precision
	reloaded := rec
	reloaded.Amount = decimal.RequireFromString("450.00")
	reloaded.InterestRate = decimal.RequireFromString("0.1000")
	assert.True(t, s.Verify(reloaded))

	other, err := NewLedgerSealer([]byte("another-key"))
	require.NoError(t, err)
	assert.False(t, other.Verify(rec))
}

func TestNewLedgerSealer_KeyLength(t *testing.T) {
	_, err := NewLedgerSealer(nil)
	assert.Error(t, err)
	_, err = NewLedgerSealer(make([]byte, 65))
	assert.Error(t, err)
}
