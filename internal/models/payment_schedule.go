package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Installment is a scheduled repayment for a loan
type Installment struct {
	LoanID   string          `json:"loan_id"`
	DueAt    time.Time       `json:"due_at"`
	Amount   decimal.Decimal `json:"amount"`
	Interest decimal.Decimal `json:"interest"`
}
