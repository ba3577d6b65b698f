// Package eligibility decides whether a loan request may proceed.
package eligibility

import (
	"fmt"
	"math"
	"time"

	"github.com/Dan9191/gigcredit/internal/ledger"
	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
)

// State of a single loan attempt
type State string

const (
	StateEvaluating State = "EVALUATING"
	StateApproved   State = "APPROVED"
	StateDeclined   State = "DECLINED"
)

// Reason is the machine-readable cause of a decline
type Reason string

const (
	ReasonBelowMinimumScore Reason = "below_minimum_score"
	ReasonInsufficientPool  Reason = "insufficient_pool_liquidity"
	ReasonCooldownActive    Reason = "cooldown_active"
)

// Rules are the gate thresholds, fixed for the lifetime of the process
type Rules struct {
	MinScore  int
	Cooldown  time.Duration
	MaxAmount decimal.Decimal
}

// Decision is the terminal state of one evaluation
type Decision struct {
	State           State           `json:"state"`
	Reason          Reason          `json:"reason,omitempty"`
	Message         string          `json:"message,omitempty"`
	ApprovedAmount  decimal.Decimal `json:"approved_amount"`
	PoolBalance     decimal.Decimal `json:"pool_balance"`
	CooldownSeconds int64           `json:"cooldown_remaining_seconds,omitempty"`
	MinScore        int             `json:"min_score,omitempty"`
}

// Approved reports whether the attempt may be committed
func (d Decision) Approved() bool {
	return d.State == StateApproved
}

// Gate evaluates loan requests against a ledger snapshot
type Gate struct {
	rules Rules
}

// NewGate creates a gate with the given rules
func NewGate(rules Rules) *Gate {
	return &Gate{rules: rules}
}

// Evaluate moves an attempt out of EVALUATING. The snapshot must be taken
// inside the same ledger transaction that commits an approval.
func (g *Gate) Evaluate(req models.LoanRequest, snap ledger.Snapshot, now time.Time) Decision {
	d := Decision{
		State:          StateEvaluating,
		PoolBalance:    snap.Balance,
		ApprovedAmount: decimal.Zero,
	}

	if req.Score < g.rules.MinScore {
		d.State = StateDeclined
		d.Reason = ReasonBelowMinimumScore
		d.MinScore = g.rules.MinScore
		d.Message = fmt.Sprintf("below minimum score: %d < %d", req.Score, g.rules.MinScore)
		return d
	}

	if req.Amount.GreaterThan(snap.Balance) {
		d.State = StateDeclined
		d.Reason = ReasonInsufficientPool
		d.Message = fmt.Sprintf("insufficient pool liquidity: requested %s, available %s", req.Amount, snap.Balance)
		return d
	}

	if snap.HasHistory {
		elapsed := now.Sub(snap.LastIssuedAt)
		if elapsed < g.rules.Cooldown {
			remaining := g.rules.Cooldown - elapsed
			d.State = StateDeclined
			d.Reason = ReasonCooldownActive
			d.CooldownSeconds = int64(math.Ceil(remaining.Seconds()))
			d.Message = fmt.Sprintf("cooldown active: next loan available in %s", remaining.Round(time.Second))
			return d
		}
	}

	amount := req.Amount
	if g.rules.MaxAmount.IsPositive() && amount.GreaterThan(g.rules.MaxAmount) {
		amount = g.rules.MaxAmount
	}
	d.State = StateApproved
	d.ApprovedAmount = amount
	return d
}
