package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dan9191/gigcredit/internal/issuer"
	"github.com/Dan9191/gigcredit/internal/ledger"
	"github.com/Dan9191/gigcredit/internal/middleware"
	"github.com/Dan9191/gigcredit/internal/models"
	"github.com/Dan9191/gigcredit/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Handler exposes the service over HTTP
type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

// NewHandler creates a new handler
func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes registers every endpoint. auth guards the loan and pool routes;
// paths that match no route fall through to the router's 404.
func (h *Handler) Routes(r *mux.Router, auth mux.MiddlewareFunc) {
	protected := func(f http.HandlerFunc) http.Handler {
		return auth(f)
	}
	operator := func(f http.HandlerFunc) http.Handler {
		return auth(middleware.RequireRole(middleware.RoleOperator)(f))
	}

	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/score", h.Score).Methods(http.MethodPost)
	r.HandleFunc("/subjects/{subject}/demo-income", h.DemoIncome).Methods(http.MethodGet)

	// Protected routes
	r.Handle("/loans", protected(h.RequestLoan)).Methods(http.MethodPost)
	r.Handle("/loans/{id}", protected(h.GetLoan)).Methods(http.MethodGet)
	r.Handle("/subjects/{subject}/loans", protected(h.History)).Methods(http.MethodGet)
	r.Handle("/pool", protected(h.Pool)).Methods(http.MethodGet)

	// Operator routes
	r.Handle("/loans/{id}/reverse", operator(h.Reverse)).Methods(http.MethodPost)
	r.Handle("/loans/{id}/settlement", operator(h.Settlement)).Methods(http.MethodPost)
	r.Handle("/pool/deposit", operator(h.Deposit)).Methods(http.MethodPost)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Score computes a credit score from platform income
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req service.ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.svc.Score(req)
	if err != nil {
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "validation_errors": verrs})
			return
		}
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RequestLoan handles loan issuance for the authenticated subject
func (h *Handler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	var app service.LoanApplication
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	subject := middleware.Subject(r.Context())
	if app.SubjectID == "" {
		app.SubjectID = subject
	}
	if !canAccess(r.Context(), app.SubjectID) {
		writeError(w, http.StatusForbidden, "Cannot request a loan for another subject")
		return
	}

	resp, err := h.svc.RequestLoan(r.Context(), app)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "Request cancelled")
			return
		}
		h.internalError(w, err)
		return
	}

	switch {
	case resp.Success:
		writeJSON(w, http.StatusCreated, resp)
	case len(resp.ValidationErrors) > 0:
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// GetLoan returns a loan with its repayment schedule
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.Loan(mux.Vars(r)["id"])
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if !canAccess(r.Context(), details.Loan.SubjectID) {
		// Do not reveal that the loan exists.
		writeError(w, http.StatusNotFound, "Loan not found")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// History returns the loan history of a subject
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	subject := mux.Vars(r)["subject"]
	if !canAccess(r.Context(), subject) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.History(subject))
}

// DemoIncome returns deterministic sample income for a subject
func (h *Handler) DemoIncome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.DemoIncome(mux.Vars(r)["subject"]))
}

// Pool returns pool statistics
func (h *Handler) Pool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.PoolStats())
}

// Reverse voids a pending loan
func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	loan, err := h.svc.Reverse(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

type settlementCallback struct {
	Status        string `json:"status"`
	SettlementRef string `json:"settlement_ref"`
	Reason        string `json:"reason"`
}

// Settlement receives the asynchronous outcome of a settlement
func (h *Handler) Settlement(w http.ResponseWriter, r *http.Request) {
	var cb settlementCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := mux.Vars(r)["id"]
	var (
		loan models.LoanRecord
		err  error
	)
	switch cb.Status {
	case "settled":
		if cb.SettlementRef == "" {
			writeError(w, http.StatusBadRequest, "settlement_ref is required")
			return
		}
		loan, err = h.svc.ConfirmSettlement(id, cb.SettlementRef)
	case "failed":
		loan, err = h.svc.SettlementFailed(r.Context(), id, cb.Reason)
	default:
		writeError(w, http.StatusBadRequest, "status must be settled or failed")
		return
	}
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Deposit adds liquidity to the pool
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	balance, err := h.svc.Deposit(r.Context(), req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.Pool{Balance: balance})
}

func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "Loan not found")
	case errors.Is(err, issuer.ErrAlreadySettled):
		writeError(w, http.StatusConflict, "Loan already settled")
	case errors.Is(err, ledger.ErrSettledAfterVoid):
		h.log.Errorf("Late settlement: %v", err)
		writeError(w, http.StatusConflict, "Settlement confirmed for a voided loan, operator notified")
	default:
		h.internalError(w, err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	h.log.Errorf("Request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "Internal error")
}

func canAccess(ctx context.Context, subject string) bool {
	return middleware.Role(ctx) == middleware.RoleOperator || middleware.Subject(ctx) == subject
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
