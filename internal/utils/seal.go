package utils

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/gigcredit/internal/models"
	"golang.org/x/crypto/blake2b"
)

// LedgerSealer seals loan records with a keyed BLAKE2b-256 hash
type LedgerSealer struct {
	key []byte
}

// NewLedgerSealer creates a sealer. The key must be 1 to 64 bytes.
func NewLedgerSealer(key []byte) (*LedgerSealer, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("seal key must be 1 to %d bytes, got %d", blake2b.Size, len(key))
	}
	return &LedgerSealer{key: append([]byte(nil), key...)}, nil
}

// Seal hashes the immutable fields of a loan record
func (s *LedgerSealer) Seal(rec models.LoanRecord) string {
	// New256 only fails for oversized keys, rejected in the constructor
	h, _ := blake2b.New256(s.key)
	h.Write([]byte(canonicalLoan(rec)))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a record against its stored seal
func (s *LedgerSealer) Verify(rec models.LoanRecord) bool {
	return rec.Seal != "" && rec.Seal == s.Seal(rec)
}

// canonicalLoan renders fields at the precision the journal stores them
func canonicalLoan(rec models.LoanRecord) string {
	return strings.Join([]string{
		rec.LoanID,
		rec.SubjectID,
		rec.Amount.StringFixed(2),
		fmt.Sprintf("%d", rec.Score),
		rec.InterestRate.StringFixed(4),
		string(rec.Purpose),
		string(rec.RepaymentPlan),
		rec.IssuedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
		rec.DueAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
	}, "|")
}
