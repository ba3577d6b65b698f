package email

import (
	"errors"
	"testing"

	"github.com/Dan9191/gigcredit/internal/config"
	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSender(send sendFunc) *Sender {
	log, _ := test.NewNullLogger()
	s := NewSender(&config.Config{SenderEmail: "engine@example.com", AlertEmail: "ops@example.com"}, log)
	s.send = send
	return s
}

func TestSendDoubleFaultAlert(t *testing.T) {
	var sent *email.Email
	s := newTestSender(func(e *email.Email) error {
		sent = e
		return nil
	})

	err := s.SendDoubleFaultAlert("LOAN_9", "worker-2", decimal.NewFromInt(300), errors.New("rejected"), errors.New("db down"))
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, []string{"ops@example.com"}, sent.To)
	assert.Contains(t, sent.Subject, "LOAN_9")
	assert.Contains(t, string(sent.Text), "300.00")
	assert.Contains(t, string(sent.Text), "db down")
}

func TestSendDoubleFaultAlert_SendError(t *testing.T) {
	s := newTestSender(func(e *email.Email) error { return errors.New("smtp refused") })
	err := s.SendDoubleFaultAlert("L", "s", decimal.NewFromInt(1), nil, nil)
	assert.Error(t, err)
}

func TestSendReconciliationReport(t *testing.T) {
	calls := 0
	var sent *email.Email
	s := newTestSender(func(e *email.Email) error {
		calls++
		sent = e
		return nil
	})

	require.NoError(t, s.SendReconciliationReport(nil, nil))
	assert.Equal(t, 0, calls)

	require.NoError(t, s.SendReconciliationReport([]string{"L1", "L2"}, []string{"L3"}))
	assert.Equal(t, 1, calls)
	assert.Contains(t, sent.Subject, "2 reversed, 1 failed")
	assert.Contains(t, string(sent.Text), "FAILED    L3")
}

func TestSendLateSettlementAlert(t *testing.T) {
	var sent *email.Email
	s := newTestSender(func(e *email.Email) error {
		sent = e
		return nil
	})

	loan := models.LoanRecord{
		LoanID:        "LOAN_4",
		SubjectID:     "worker-4",
		Amount:        decimal.NewFromInt(250),
		SettlementRef: "chain-tx-4",
		Status:        models.LoanSettled,
	}
	require.NoError(t, s.SendLateSettlementAlert(loan))
	require.NotNil(t, sent)
	assert.Contains(t, sent.Subject, "LOAN_4")
	assert.Contains(t, string(sent.Text), "chain-tx-4")
	assert.Contains(t, string(sent.Text), "250.00")
	assert.Contains(t, string(sent.Text), "reserved from the pool again")

	loan.Status = models.LoanVoided
	require.NoError(t, s.SendLateSettlementAlert(loan))
	assert.Contains(t, string(sent.Text), "overstated")

	s.send = func(e *email.Email) error { return errors.New("smtp refused") }
	assert.Error(t, s.SendLateSettlementAlert(loan))
}
