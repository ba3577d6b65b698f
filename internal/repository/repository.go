package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/shopspring/decimal"
)

const schema = `
	CREATE SCHEMA IF NOT EXISTS gigcredit;

	CREATE TABLE IF NOT EXISTS gigcredit.loans (
		loan_id        TEXT PRIMARY KEY,
		subject_id     TEXT NOT NULL,
		amount         NUMERIC(18, 2) NOT NULL,
		credit_score   INTEGER NOT NULL,
		interest_rate  NUMERIC(6, 4) NOT NULL,
		purpose        TEXT NOT NULL,
		repayment_plan TEXT NOT NULL,
		issued_at      TIMESTAMPTZ NOT NULL,
		due_at         TIMESTAMPTZ NOT NULL,
		settlement_ref TEXT NOT NULL,
		status         TEXT NOT NULL,
		voided_at      TIMESTAMPTZ,
		seal           TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS loans_subject_issued_idx ON gigcredit.loans (subject_id, issued_at);

	CREATE TABLE IF NOT EXISTS gigcredit.pool_deposits (
		id           BIGSERIAL PRIMARY KEY,
		amount       NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
		deposited_at TIMESTAMPTZ NOT NULL
	);`

// Repository journals the ledger to Postgres. The in-memory ledger stays
// authoritative while the process runs; the journal is replayed on startup.
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the journal tables if they do not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SaveLoan inserts a newly issued loan
func (r *Repository) SaveLoan(ctx context.Context, loan models.LoanRecord) error {
	query := `
		INSERT INTO gigcredit.loans (loan_id, subject_id, amount, credit_score, interest_rate, purpose,
			repayment_plan, issued_at, due_at, settlement_ref, status, voided_at, seal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query,
		loan.LoanID, loan.SubjectID, loan.Amount.String(), loan.Score, loan.InterestRate.String(),
		string(loan.Purpose), string(loan.RepaymentPlan), loan.IssuedAt, loan.DueAt,
		loan.SettlementRef, string(loan.Status), nullTime(loan.VoidedAt), loan.Seal)
	if err != nil {
		return fmt.Errorf("failed to save loan %s: %w", loan.LoanID, err)
	}
	return nil
}

// UpdateLoanStatus persists the settlement outcome or voiding of a loan
func (r *Repository) UpdateLoanStatus(ctx context.Context, loan models.LoanRecord) error {
	query := `
		UPDATE gigcredit.loans
		SET settlement_ref = $2, status = $3, voided_at = $4
		WHERE loan_id = $1`
	res, err := r.db.ExecContext(ctx, query, loan.LoanID, loan.SettlementRef, string(loan.Status), nullTime(loan.VoidedAt))
	if err != nil {
		return fmt.Errorf("failed to update loan %s: %w", loan.LoanID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("loan %s not found", loan.LoanID)
	}
	return nil
}

// SaveDeposit records liquidity added to the pool
func (r *Repository) SaveDeposit(ctx context.Context, amount decimal.Decimal, at time.Time) error {
	query := `INSERT INTO gigcredit.pool_deposits (amount, deposited_at) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, amount.String(), at); err != nil {
		return fmt.Errorf("failed to save deposit: %w", err)
	}
	return nil
}

// LoadLoans returns every journaled loan ordered by issuance time
func (r *Repository) LoadLoans(ctx context.Context) ([]models.LoanRecord, error) {
	query := `
		SELECT loan_id, subject_id, amount, credit_score, interest_rate, purpose, repayment_plan,
			issued_at, due_at, settlement_ref, status, voided_at, seal
		FROM gigcredit.loans
		ORDER BY issued_at, loan_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}
	defer rows.Close()

	var loans []models.LoanRecord
	for rows.Next() {
		var (
			loan                  models.LoanRecord
			amount, rate          string
			purpose, plan, status string
			voidedAt              sql.NullTime
		)
		if err := rows.Scan(&loan.LoanID, &loan.SubjectID, &amount, &loan.Score, &rate, &purpose, &plan,
			&loan.IssuedAt, &loan.DueAt, &loan.SettlementRef, &status, &voidedAt, &loan.Seal); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		if loan.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount for loan %s: %w", loan.LoanID, err)
		}
		if loan.InterestRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("invalid interest rate for loan %s: %w", loan.LoanID, err)
		}
		if loan.Purpose, err = models.ParsePurpose(purpose); err != nil {
			return nil, fmt.Errorf("loan %s: %w", loan.LoanID, err)
		}
		if loan.RepaymentPlan, err = models.ParseRepaymentPlan(plan); err != nil {
			return nil, fmt.Errorf("loan %s: %w", loan.LoanID, err)
		}
		loan.Status = models.LoanStatus(status)
		if voidedAt.Valid {
			t := voidedAt.Time
			loan.VoidedAt = &t
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}
	return loans, nil
}

// TotalDeposits sums every recorded pool deposit
func (r *Repository) TotalDeposits(ctx context.Context) (decimal.Decimal, error) {
	var total string
	query := `SELECT COALESCE(SUM(amount), 0)::TEXT FROM gigcredit.pool_deposits`
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum deposits: %w", err)
	}
	return decimal.NewFromString(total)
}

// PoolBalance derives the pool balance from the journal: initial liquidity
// plus deposits minus every loan that was not voided.
func PoolBalance(initial, deposits decimal.Decimal, loans []models.LoanRecord) decimal.Decimal {
	balance := initial.Add(deposits)
	for _, l := range loans {
		if l.Status != models.LoanVoided {
			balance = balance.Sub(l.Amount)
		}
	}
	return balance
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
