package models

import "github.com/shopspring/decimal"

// Pool is the shared liquidity from which loans are disbursed
type Pool struct {
	Balance decimal.Decimal `json:"balance"`
}

// PoolStats summarizes pool usage
type PoolStats struct {
	Balance     decimal.Decimal `json:"balance"`
	TotalLoans  int             `json:"total_loans"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Voided      int             `json:"voided"`
}
