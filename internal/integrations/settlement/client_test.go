package settlement

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusReport(loanID, status, ref, reason string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.002.001.10">
  <CstmrPmtStsRpt>
    <OrgnlPmtInfAndSts>
      <TxInfAndSts>
        <OrgnlEndToEndId>` + loanID + `</OrgnlEndToEndId>
        <TxSts>` + status + `</TxSts>`
	if ref != "" {
		out += `<AcctSvcrRef>` + ref + `</AcctSvcrRef>`
	}
	if reason != "" {
		out += `<StsRsnInf><AddtlInf>` + reason + `</AddtlInf></StsRsnInf>`
	}
	return out + `
      </TxInfAndSts>
    </OrgnlPmtInfAndSts>
  </CstmrPmtStsRpt>
</Document>`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log, _ := test.NewNullLogger()
	c := NewClient(srv.URL, 5*time.Second, log)
	c.now = func() time.Time { return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestSettle_Accepted(t *testing.T) {
	var received []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		assert.Equal(t, "application/xml; charset=utf-8", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(statusReport("LOAN_1", "ACSC", "stellar-hash-42", "")))
	})

	ref, err := c.Settle(context.Background(), Request{LoanID: "LOAN_1", SubjectID: "GWORKER", Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	assert.Equal(t, "stellar-hash-42", ref)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(received))
	assert.Equal(t, "LOAN_1", doc.FindElement("//EndToEndId").Text())
	assert.Equal(t, "500.00", doc.FindElement("//InstdAmt").Text())
	assert.Equal(t, "USDC", doc.FindElement("//InstdAmt").SelectAttrValue("Ccy", ""))
	assert.Equal(t, "GWORKER", doc.FindElement("//Cdtr/Id").Text())
	assert.Equal(t, "2025-08-01T00:00:00Z", doc.FindElement("//GrpHdr/CreDtTm").Text())
}

func TestSettle_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(statusReport("LOAN_2", "RJCT", "", "destination account missing")))
	})

	_, err := c.Settle(context.Background(), Request{LoanID: "LOAN_2", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrSettlementFailed)
	assert.Contains(t, err.Error(), "destination account missing")
}

func TestSettle_Pending(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(statusReport("LOAN_3", "PDNG", "", "")))
	})

	_, err := c.Settle(context.Background(), Request{LoanID: "LOAN_3", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrSettlementPending)
}

func TestSettle_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})

	_, err := c.Settle(context.Background(), Request{LoanID: "LOAN_4", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrSettlementFailed)
}

func TestSettle_MalformedResponses(t *testing.T) {
	bodies := []string{
		"not xml at all <",
		statusReport("OTHER_LOAN", "ACSC", "ref", ""),
		statusReport("LOAN_5", "ACSC", "", ""),
		statusReport("LOAN_5", "WHAT", "", ""),
	}
	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		_, err := c.Settle(context.Background(), Request{LoanID: "LOAN_5", Amount: decimal.NewFromInt(1)})
		assert.Error(t, err)
	}
}
