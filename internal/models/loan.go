package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus tracks the settlement state of a loan record
type LoanStatus string

const (
	LoanPendingSettlement LoanStatus = "pending_settlement"
	LoanSettled           LoanStatus = "settled"
	LoanVoided            LoanStatus = "voided"
)

// LoanRequest is a validated request for a new loan
type LoanRequest struct {
	SubjectID     string          `json:"subject_id"`
	Amount        decimal.Decimal `json:"amount"`
	Score         int             `json:"credit_score"`
	Purpose       Purpose         `json:"purpose"`
	RepaymentPlan RepaymentPlan   `json:"repayment_plan"`
}

// LoanRecord represents an issued loan in the subject ledger
type LoanRecord struct {
	LoanID        string          `json:"loan_id"`
	SubjectID     string          `json:"subject_id"`
	Amount        decimal.Decimal `json:"amount"`
	Score         int             `json:"credit_score"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	Purpose       Purpose         `json:"purpose"`
	RepaymentPlan RepaymentPlan   `json:"repayment_plan"`
	IssuedAt      time.Time       `json:"issued_at"`
	DueAt         time.Time       `json:"due_at"`
	SettlementRef string          `json:"settlement_ref"`
	Status        LoanStatus      `json:"status"`
	VoidedAt      *time.Time      `json:"voided_at,omitempty"`
	Seal          string          `json:"seal"`
}

// Voided reports whether the loan reservation was reversed
func (l LoanRecord) Voided() bool {
	return l.Status == LoanVoided
}
