package contract

import (
	"context"
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

// Handler manages labor contract endpoints.
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

// MountRoutes registers contract routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpContractManage))
		r.Post("/", h.create)
		r.Post("/{id}/activate", h.activate)
		r.Post("/{id}/hold", h.hold)
		r.Post("/{id}/resume", h.resume)
		r.Post("/{id}/terminate", h.terminate)
		r.Delete("/{id}", h.delete)
	})
	r.With(h.rbac.Require(rbac.OpContractPay)).Post("/{id}/payments", h.recordPayment)
}

type installmentResponse struct {
	InstallmentNumber int     `json:"installmentNumber"`
	Amount            string  `json:"amount"`
	PaidAmount        string  `json:"paidAmount"`
	Status            string  `json:"status"`
	DueDate           *string `json:"dueDate,omitempty"`
}

type contractResponse struct {
	ID                   int64                 `json:"id"`
	WorkerID             int64                 `json:"workerId"`
	SiteID               int64                 `json:"siteId"`
	FundAllocationID     *int64                `json:"fundAllocationId,omitempty"`
	ContractType         string                `json:"contractType"`
	TotalAmount          string                `json:"totalAmount"`
	NumberOfInstallments int                   `json:"numberOfInstallments"`
	TotalPaid            string                `json:"totalPaid"`
	RemainingAmount      string                `json:"remainingAmount"`
	Status               Status                `json:"status"`
	DailyRate            *string               `json:"dailyRate,omitempty"`
	Installments         []installmentResponse `json:"installments,omitempty"`
}

func toResponse(c Contract) contractResponse {
	resp := contractResponse{
		ID:                   c.ID,
		WorkerID:             c.WorkerID,
		SiteID:               c.SiteID,
		FundAllocationID:     c.FundAllocationID,
		ContractType:         c.ContractType,
		TotalAmount:          c.TotalAmount.StringFixed(2),
		NumberOfInstallments: c.NumberOfInstallments,
		TotalPaid:            c.TotalPaid.StringFixed(2),
		RemainingAmount:      c.RemainingAmount.StringFixed(2),
		Status:               c.Status,
	}
	if c.DailyRate != nil {
		s := c.DailyRate.StringFixed(2)
		resp.DailyRate = &s
	}
	for _, ins := range c.Installments {
		ir := installmentResponse{
			InstallmentNumber: ins.InstallmentNumber,
			Amount:            ins.Amount.StringFixed(2),
			PaidAmount:        ins.PaidAmount.StringFixed(2),
			Status:            string(ins.Status),
		}
		if ins.DueDate != nil {
			s := ins.DueDate.Format("2006-01-02")
			ir.DueDate = &s
		}
		resp.Installments = append(resp.Installments, ir)
	}
	return resp
}

func contractID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type createContractRequest struct {
	WorkerID             int64   `json:"workerId" validate:"required"`
	SiteID               int64   `json:"siteId" validate:"required"`
	FundAllocationID     *int64  `json:"fundAllocationId"`
	ContractType         string  `json:"contractType" validate:"required"`
	TotalAmount          string  `json:"totalAmount" validate:"required"`
	NumberOfInstallments int     `json:"numberOfInstallments" validate:"required,min=1"`
	DailyRate            *string `json:"dailyRate"`
	StartDate            *string `json:"startDate"`
	EndDate              *string `json:"endDate"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "totalAmount must be a decimal number")
		return
	}
	input := CreateInput{
		WorkerID:             req.WorkerID,
		SiteID:               req.SiteID,
		FundAllocationID:     req.FundAllocationID,
		ContractType:         req.ContractType,
		TotalAmount:          total,
		NumberOfInstallments: req.NumberOfInstallments,
	}
	if req.DailyRate != nil {
		rate, err := decimal.NewFromString(*req.DailyRate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dailyRate must be a decimal number")
			return
		}
		input.DailyRate = &rate
	}
	if input.StartDate, err = parseDate(req.StartDate); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "startDate must be YYYY-MM-DD")
		return
	}
	if input.EndDate, err = parseDate(req.EndDate); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "endDate must be YYYY-MM-DD")
		return
	}

	c, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create contract", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(c))
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid contract id")
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	filter.WorkerID, _ = strconv.ParseInt(q.Get("worker_id"), 10, 64)
	filter.SiteID, _ = strconv.ParseInt(q.Get("site_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	rows, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list contracts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]contractResponse, 0, len(rows))
	for _, c := range rows {
		items = append(items, toResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (Contract, error)) {
	id, ok := contractID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid contract id")
		return
	}
	c, err := fn(r.Context(), id)
	if err != nil {
		h.logger.Error("contract transition", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Activate)
}

func (h *Handler) hold(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Hold)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Resume)
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Terminate)
}

type paymentRequest struct {
	InstallmentNumber int    `json:"installmentNumber" validate:"required,min=1"`
	Amount            string `json:"amount" validate:"required"`
	PaymentMode       string `json:"paymentMode" validate:"required"`
	Reference         string `json:"reference"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid contract id")
		return
	}
	var req paymentRequest
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

	c, err := h.service.RecordPayment(r.Context(), PaymentInput{
		ContractID:        id,
		InstallmentNumber: req.InstallmentNumber,
		Amount:            amount,
		PaymentMode:       req.PaymentMode,
		Reference:         req.Reference,
	})
	if err != nil {
		h.logger.Error("record contract payment", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := contractID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid contract id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete contract", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
