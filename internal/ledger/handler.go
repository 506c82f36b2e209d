package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/accounts", h.createAccount)
	r.Get("/accounts", h.listAccounts)
	r.Get("/accounts/{id}", h.getAccount)
	r.Put("/accounts/{id}", h.updateAccount)
	r.Post("/transactions", h.createTransaction)
	r.Get("/transactions", h.listTransactions)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Put("/transactions/{id}", h.updateTransaction)
	r.Delete("/transactions/{id}", h.deleteTransaction)
	r.Get("/reports/income-statement", h.incomeStatement)
	r.Get("/reports/income-statement.csv", h.incomeStatementCSV)
	r.Get("/reports/balance-sheet", h.balanceSheet)
	r.Get("/reports/cash-flow", h.cashFlow)
}

type accountRequest struct {
	Code string `json:"account_code" validate:"required"`
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
}

type accountResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"account_code"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
	}
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	a, err := h.service.CreateAccount(r.Context(), AccountInput{Code: req.Code, Name: req.Name, Type: AccountType(req.Type)})
	if err != nil {
		h.logger.Error("create account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(a))
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accounts, err := h.service.ListAccounts(r.Context(), atoiDefault(q.Get("limit"), 100), atoiDefault(q.Get("skip"), 0))
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAccount(r.Context(), pathID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(a))
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	a, err := h.service.UpdateAccount(r.Context(), pathID(r), AccountInput{Code: req.Code, Name: req.Name, Type: AccountType(req.Type)})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(a))
}

type transactionRequest struct {
	Date        time.Time `json:"transaction_date"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Description string    `json:"description"`
	Kind        string    `json:"type" validate:"required,oneof=credit debit"`
	AccountID   int64     `json:"account_id" validate:"required"`
	OrderID     *int64    `json:"order_id"`
	ProjectID   *int64    `json:"project_id"`
}

type transactionResponse struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"transaction_date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Kind        string    `json:"type"`
	AccountID   int64     `json:"account_id"`
	OrderID     *int64    `json:"order_id,omitempty"`
	ProjectID   *int64    `json:"project_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransactionResponse(t Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Date:        t.Date,
		Amount:      t.Amount,
		Description: t.Description,
		Kind:        string(t.Kind),
		AccountID:   t.AccountID,
		OrderID:     t.OrderID,
		ProjectID:   t.ProjectID,
		CreatedAt:   t.CreatedAt,
	}
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.CreateTransaction(r.Context(), TransactionInput{
		Date:        req.Date,
		Amount:      req.Amount,
		Description: req.Description,
		Kind:        TransactionKind(req.Kind),
		AccountID:   req.AccountID,
		OrderID:     req.OrderID,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		h.logger.Error("create transaction", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := TransactionFilter{
		AccountID: int64(atoiDefault(q.Get("account_id"), 0)),
		OrderID:   int64(atoiDefault(q.Get("order_id"), 0)),
		ProjectID: int64(atoiDefault(q.Get("project_id"), 0)),
		From:      parseDate(q.Get("start_date")),
		To:        parseDate(q.Get("end_date")),
		Offset:    atoiDefault(q.Get("skip"), 0),
		Limit:     atoiDefault(q.Get("limit"), 100),
	}
	txs, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transactions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTransaction(r.Context(), pathID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(t))
}

func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch TransactionPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	t, err := h.service.UpdateTransaction(r.Context(), pathID(r), patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(t))
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTransaction(r.Context(), pathID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}
	report, err := h.service.IncomeStatement(r.Context(), from, to)
	if err != nil {
		h.logger.Error("income statement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) incomeStatementCSV(w http.ResponseWriter, r *http.Request) {
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}
	report, err := h.service.IncomeStatement(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="income-statement.csv"`)
	if err := WriteIncomeStatementCSV(w, report); err != nil {
		h.logger.Error("write income statement csv", slog.Any("error", err))
	}
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.BalanceSheet(r.Context())
	if err != nil {
		h.logger.Error("balance sheet", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}
	report, err := h.service.CashFlow(r.Context(), from, to)
	if err != nil {
		h.logger.Error("cash flow", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func requireRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from := parseDate(r.URL.Query().Get("start_date"))
	to := parseDate(r.URL.Query().Get("end_date"))
	if from.IsZero() || to.IsZero() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "start_date and end_date are required")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func atoiDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
