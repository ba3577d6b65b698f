// Package settlement hands reserved loans to the external ledger that moves
// the funds, and compensates when that hand-off fails.
package settlement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	instructionNS = "urn:iso:std:iso:20022:tech:xsd:pain.001.001.09"
	currency      = "USDC"

	statusAccepted = "ACSC"
	statusRejected = "RJCT"
	statusPending  = "PDNG"
)

var (
	// ErrSettlementFailed means the external ledger refused or could not finalize the transfer.
	ErrSettlementFailed = errors.New("settlement failed")
	// ErrSettlementPending means the ledger accepted the instruction but has not finalized it yet.
	ErrSettlementPending = errors.New("settlement pending")
)

// Request is the instruction handed to the external ledger
type Request struct {
	LoanID    string
	SubjectID string
	Amount    decimal.Decimal
}

// Client posts payment instructions to the settlement gateway
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
	now    func() time.Time
}

// NewClient initializes a new settlement client
func NewClient(url string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		log: log,
		now: time.Now,
	}
}

// buildInstruction renders a single-transfer credit transfer initiation
func (c *Client) buildInstruction(req Request) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Document")
	root.CreateAttr("xmlns", instructionNS)
	initn := root.CreateElement("CstmrCdtTrfInitn")

	hdr := initn.CreateElement("GrpHdr")
	hdr.CreateElement("MsgId").SetText(req.LoanID)
	hdr.CreateElement("CreDtTm").SetText(c.now().UTC().Format(time.RFC3339))
	hdr.CreateElement("NbOfTxs").SetText("1")
	hdr.CreateElement("CtrlSum").SetText(req.Amount.StringFixed(2))

	pmt := initn.CreateElement("PmtInf")
	pmt.CreateElement("PmtInfId").SetText(req.LoanID)
	tx := pmt.CreateElement("CdtTrfTxInf")
	tx.CreateElement("PmtId").CreateElement("EndToEndId").SetText(req.LoanID)
	amt := tx.CreateElement("Amt").CreateElement("InstdAmt")
	amt.CreateAttr("Ccy", currency)
	amt.SetText(req.Amount.StringFixed(2))
	tx.CreateElement("Cdtr").CreateElement("Id").SetText(req.SubjectID)

	doc.Indent(2)
	return doc.WriteToBytes()
}

// sendRequest posts the instruction to the gateway
func (c *Client) sendRequest(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrSettlementFailed, resp.StatusCode)
	}

	c.log.Debugf("Settlement XML response: %s", string(respBody))
	return respBody, nil
}

// parseStatusReport extracts the transaction status and ledger reference
func (c *Client) parseStatusReport(raw []byte, loanID string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return "", fmt.Errorf("failed to parse XML: %w", err)
	}

	var txInfo *etree.Element
	for _, el := range doc.FindElements("//TxInfAndSts") {
		if id := el.FindElement("./OrgnlEndToEndId"); id != nil && strings.TrimSpace(id.Text()) == loanID {
			txInfo = el
			break
		}
	}
	if txInfo == nil {
		return "", fmt.Errorf("no status found for %s", loanID)
	}

	status := ""
	if el := txInfo.FindElement("./TxSts"); el != nil {
		status = strings.TrimSpace(el.Text())
	}

	switch status {
	case statusAccepted:
		ref := txInfo.FindElement("./AcctSvcrRef")
		if ref == nil || strings.TrimSpace(ref.Text()) == "" {
			return "", fmt.Errorf("accepted status without reference for %s", loanID)
		}
		return strings.TrimSpace(ref.Text()), nil
	case statusPending:
		return "", ErrSettlementPending
	case statusRejected:
		reason := "no reason given"
		if el := txInfo.FindElement("./StsRsnInf/AddtlInf"); el != nil {
			reason = strings.TrimSpace(el.Text())
		}
		return "", fmt.Errorf("%w: %s", ErrSettlementFailed, reason)
	default:
		return "", fmt.Errorf("unknown settlement status %q", status)
	}
}

// Settle submits the instruction and returns the ledger's settlement reference
func (c *Client) Settle(ctx context.Context, req Request) (string, error) {
	body, err := c.buildInstruction(req)
	if err != nil {
		return "", fmt.Errorf("failed to build instruction: %w", err)
	}

	raw, err := c.sendRequest(ctx, body)
	if err != nil {
		return "", err
	}

	ref, err := c.parseStatusReport(raw, req.LoanID)
	if err != nil {
		return "", err
	}

	c.log.Infof("Loan %s settled with reference %s", req.LoanID, ref)
	return ref, nil
}
