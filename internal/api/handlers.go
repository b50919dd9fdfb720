// Package api is the thin HTTP boundary spec §6 allows: gorilla/mux routes
// wired directly onto internal/engine, internal/reconcile, and internal/bulk
// methods, with no authentication or role middleware — those stay external
// collaborators. Grounded on the teacher's internal/api handlers (the
// respond-JSON helpers, the promauto request metrics, the mux routing
// style), generalized from the teacher's single CreateTransferHandler onto
// the engine's three operations plus reconcile and bulk.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/ledgerbank/corebank/internal/bulk"
	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/engine"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corebank_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code.",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corebank_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const userHeader = "X-User-Id"

// Handler wires HTTP onto the core. The caller is assumed pre-authenticated
// per spec §6: Handler trusts X-User-Id exactly as an upstream gateway would
// set it, and performs no credential checks of its own.
type Handler struct {
	engine     *engine.Engine
	reconciler *reconcile.Reconciler
	bulk       *bulk.Processor
	logger     *slog.Logger
}

// NewHandler builds a Handler over the given engine, reconciler, and bulk
// processor.
func NewHandler(e *engine.Engine, r *reconcile.Reconciler, b *bulk.Processor, logger *slog.Logger) *Handler {
	return &Handler{engine: e, reconciler: r, bulk: b, logger: logger}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type moneyOpRequest struct {
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	OperationKey string `json:"operation_key"`
}

// Deposit handles POST /accounts/{id}/deposit.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.handleMoneyOp(w, r, "deposit", h.engine.Deposit)
}

// Withdraw handles POST /accounts/{id}/withdraw.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.handleMoneyOp(w, r, "withdraw", h.engine.Withdraw)
}

type moneyOp func(ctx context.Context, userID, accountID string, amount money.Amount, description, operationKey string) (*engine.OperationResult, error)

func (h *Handler) handleMoneyOp(w http.ResponseWriter, r *http.Request, endpoint string, op moneyOp) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	userID := r.Header.Get(userHeader)
	if userID == "" {
		h.respondDomainError(w, r.Method, endpoint, domain.NewError(domain.CodeUnauthorizedAccess, "missing "+userHeader+" header"))
		return
	}
	accountID := mux.Vars(r)["id"]

	var req moneyOpRequest
	if !h.decodeJSON(w, r, endpoint, &req) {
		return
	}

	amount, err := money.ParseDecimalString(req.Amount)
	if err != nil {
		h.respondDomainError(w, r.Method, endpoint, domain.NewError(domain.CodeInvalidAmount, "amount must be a decimal string"))
		return
	}

	result, err := op(r.Context(), userID, accountID, amount, req.Description, req.OperationKey)
	if err != nil {
		h.respondDomainError(w, r.Method, endpoint, err)
		return
	}
	httpRequestsTotal.WithLabelValues(r.Method, endpoint, "200").Inc()
	respondJSON(w, http.StatusOK, result)
}

type transferRequest struct {
	SourceAccountNumber      string `json:"source_account_number"`
	DestinationAccountNumber string `json:"destination_account_number"`
	Amount                   string `json:"amount"`
	Description              string `json:"description"`
	OperationKey             string `json:"operation_key"`
}

// Transfer handles POST /transfers.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/transfers"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	userID := r.Header.Get(userHeader)
	if userID == "" {
		h.respondDomainError(w, r.Method, endpoint, domain.NewError(domain.CodeUnauthorizedAccess, "missing "+userHeader+" header"))
		return
	}

	var req transferRequest
	if !h.decodeJSON(w, r, endpoint, &req) {
		return
	}

	amount, err := money.ParseDecimalString(req.Amount)
	if err != nil {
		h.respondDomainError(w, r.Method, endpoint, domain.NewError(domain.CodeInvalidAmount, "amount must be a decimal string"))
		return
	}

	result, err := h.engine.Transfer(r.Context(), userID, req.SourceAccountNumber, req.DestinationAccountNumber, amount, req.Description, req.OperationKey)
	if err != nil {
		h.respondDomainError(w, r.Method, endpoint, err)
		return
	}
	httpRequestsTotal.WithLabelValues(r.Method, endpoint, "200").Inc()
	respondJSON(w, http.StatusOK, result)
}

// Reconcile handles GET /accounts/{id}/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/accounts/{id}/reconcile"
	accountID := mux.Vars(r)["id"]

	result, err := h.reconciler.Reconcile(r.Context(), accountID)
	if err != nil {
		h.respondDomainError(w, r.Method, endpoint, err)
		return
	}
	httpRequestsTotal.WithLabelValues(r.Method, endpoint, "200").Inc()
	respondJSON(w, http.StatusOK, result)
}

// ProcessBulk handles POST /bulk. Per spec §6 this is gated to the
// "employee" role by the caller; the handler itself enforces no role check.
func (h *Handler) ProcessBulk(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/bulk"
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "upload.csv"
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, bulk.MaxInputSize+1))
	if err != nil {
		h.respondDomainError(w, r.Method, endpoint, domain.NewError(domain.CodeInvalidAmount, "failed to read request body"))
		return
	}

	summary, err := h.bulk.Process(r.Context(), filename, body)
	if err != nil {
		h.respondDomainError(w, r.Method, endpoint, err)
		return
	}
	httpRequestsTotal.WithLabelValues(r.Method, endpoint, "200").Inc()
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, endpoint string, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondDomainError(w, r.Method, endpoint, domain.NewError(domain.CodeInvalidAmount, "malformed JSON body"))
		return false
	}
	return true
}

// respondDomainError maps a domain.Error's code onto an HTTP status per the
// error table of spec §7, logging anything that isn't a domain.Error as an
// unexpected internal failure.
func (h *Handler) respondDomainError(w http.ResponseWriter, method, endpoint string, err error) {
	code := domain.CodeOf(err)
	status := statusForCode(code)
	if code == "" {
		h.logger.Error("unexpected error", slog.String("error", err.Error()))
	}
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	respondJSON(w, status, map[string]string{"code": string(code), "error": err.Error()})
}

func statusForCode(code domain.Code) int {
	switch code {
	case domain.CodeInvalidAmount, domain.CodeSelfTransfer, domain.CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.CodeAccountNotFound:
		return http.StatusNotFound
	case domain.CodeUnauthorizedAccess:
		return http.StatusForbidden
	case domain.CodeAccountFrozen, domain.CodeAccountClosed:
		return http.StatusConflict
	case domain.CodeDuplicateOperation, domain.CodeConcurrencyConflict:
		return http.StatusConflict
	case domain.CodeStorageError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

