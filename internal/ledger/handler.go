package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/fundline/fundline/internal/platform/httpx"
	"github.com/fundline/fundline/internal/rbac"
)

// Handler manages worker ledger and attendance endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbacMW}
}

// MountRoutes registers ledger routes under /workers and /attendance.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpLedgerView))
		r.Get("/workers/{id}/ledger", h.listEntries)
		r.Get("/workers/{id}/balance", h.balance)
		r.Get("/workers/{id}/pending-salary", h.pendingSalary)
	})
	r.With(h.rbac.Require(rbac.OpLedgerPost)).Post("/workers/{id}/ledger", h.recordEntry)
	r.With(h.rbac.Require(rbac.OpEarningsPost)).Post("/workers/{id}/post-earnings", h.postEarnings)
	r.With(h.rbac.Require(rbac.OpAttendanceMark)).Post("/attendance", h.markAttendance)
}

type entryResponse struct {
	ID               int64  `json:"id"`
	WorkerID         int64  `json:"workerId"`
	SiteID           *int64 `json:"siteId,omitempty"`
	FundAllocationID *int64 `json:"fundAllocationId,omitempty"`
	Type             string `json:"type"`
	Amount           string `json:"amount"`
	Category         string `json:"category"`
	PaymentMode      string `json:"paymentMode,omitempty"`
	Reference        string `json:"reference,omitempty"`
	TransactionDate  string `json:"transactionDate"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:               e.ID,
		WorkerID:         e.WorkerID,
		SiteID:           e.SiteID,
		FundAllocationID: e.FundAllocationID,
		Type:             string(e.Type),
		Amount:           e.Amount.StringFixed(2),
		Category:         e.Category,
		PaymentMode:      e.PaymentMode,
		Reference:        e.Reference,
		TransactionDate:  e.TransactionDate.Format(time.RFC3339),
	}
}

func workerID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type recordEntryRequest struct {
	SiteID           *int64 `json:"siteId"`
	FundAllocationID *int64 `json:"fundAllocationId"`
	Type             string `json:"type" validate:"required,oneof=credit debit"`
	Amount           string `json:"amount" validate:"required"`
	Category         string `json:"category" validate:"required"`
	PaymentMode      string `json:"paymentMode"`
	Reference        string `json:"reference"`
	TransactionDate  string `json:"transactionDate"`
}

func (h *Handler) recordEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid worker id")
		return
	}
	var req recordEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal number")
		return
	}
	var txDate time.Time
	if req.TransactionDate != "" {
		txDate, err = time.Parse(time.RFC3339, req.TransactionDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "transactionDate must be RFC3339")
			return
		}
	}

	e, err := h.service.RecordEntry(r.Context(), RecordEntryInput{
		WorkerID:         id,
		SiteID:           req.SiteID,
		FundAllocationID: req.FundAllocationID,
		Type:             EntryType(req.Type),
		Amount:           amount,
		Category:         req.Category,
		PaymentMode:      req.PaymentMode,
		Reference:        req.Reference,
		TransactionDate:  txDate,
	})
	if err != nil {
		h.logger.Error("record ledger entry", slog.Int64("worker", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(e))
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid worker id")
		return
	}
	entries, err := h.service.Entries(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid worker id")
		return
	}
	summary, err := h.service.Balance(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"workerId":    summary.WorkerID,
		"totalCredit": summary.TotalCredit.StringFixed(2),
		"totalDebit":  summary.TotalDebit.StringFixed(2),
		"balance":     summary.Balance.StringFixed(2),
	})
}

func (h *Handler) pendingSalary(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid worker id")
		return
	}
	pending, err := h.service.PendingSalary(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"workerId":      id,
		"pendingSalary": pending.StringFixed(2),
	})
}

type markAttendanceRequest struct {
	WorkerID    int64  `json:"workerId" validate:"required"`
	SiteID      int64  `json:"siteId" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=present absent half_day leave"`
	HoursWorked string `json:"hoursWorked"`
	Overtime    string `json:"overtime"`
}

func (h *Handler) markAttendance(w http.ResponseWriter, r *http.Request) {
	var req markAttendanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	hours := decimal.Zero
	if req.HoursWorked != "" {
		if hours, err = decimal.NewFromString(req.HoursWorked); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "hoursWorked must be a decimal number")
			return
		}
	}
	overtime := decimal.Zero
	if req.Overtime != "" {
		if overtime, err = decimal.NewFromString(req.Overtime); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "overtime must be a decimal number")
			return
		}
	}

	a, err := h.service.MarkAttendance(r.Context(), MarkAttendanceInput{
		WorkerID:    req.WorkerID,
		SiteID:      req.SiteID,
		Date:        date,
		Status:      AttendanceStatus(req.Status),
		HoursWorked: hours,
		Overtime:    overtime,
	})
	if err != nil {
		h.logger.Error("mark attendance", slog.Int64("worker", req.WorkerID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":       a.ID,
		"workerId": a.WorkerID,
		"siteId":   a.SiteID,
		"date":     a.Date.Format("2006-01-02"),
		"status":   a.Status,
	})
}

type postEarningsRequest struct {
	Period string `json:"period" validate:"required"` // YYYY-MM
}

func (h *Handler) postEarnings(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid worker id")
		return
	}
	var req postEarningsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, err := time.Parse("2006-01", req.Period)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period must be YYYY-MM")
		return
	}
	end := start.AddDate(0, 1, 0).Add(-time.Second)

	e, err := h.service.PostEarnings(r.Context(), id, start, end)
	if err != nil {
		h.logger.Error("post earnings", slog.Int64("worker", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(e))
}
