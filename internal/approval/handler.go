package approval

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
	"github.com/fundline/fundline/internal/shared"
)

// Handler manages expense and bill endpoints.
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

// MountExpenseRoutes registers expense routes.
func (h *Handler) MountExpenseRoutes(r chi.Router) {
	r.Get("/", h.listExpenses)
	r.Get("/{id}", h.getExpense)
	r.With(h.rbac.Require(rbac.OpExpenseSubmit)).Post("/", h.submitExpense)
	r.Patch("/{id}", h.updateExpense)
	r.Delete("/{id}", h.deleteExpense)
	r.With(h.rbac.Require(rbac.OpExpenseDecide)).Post("/{id}/decide", h.decideExpense)
}

// MountBillRoutes registers bill routes.
func (h *Handler) MountBillRoutes(r chi.Router) {
	r.Get("/", h.listBills)
	r.Get("/{id}", h.getBill)
	r.With(h.rbac.Require(rbac.OpBillSubmit)).Post("/", h.submitBill)
	r.Patch("/{id}", h.updateBill)
	r.Delete("/{id}", h.deleteBill)
	r.With(h.rbac.Require(rbac.OpBillDecide)).Post("/{id}/decide", h.decideBill)
}

type expenseResponse struct {
	ID               int64   `json:"id"`
	SiteID           int64   `json:"siteId"`
	Category         string  `json:"category"`
	FundAllocationID *int64  `json:"fundAllocationId,omitempty"`
	RequestedAmount  *string `json:"requestedAmount,omitempty"`
	ApprovedAmount   *string `json:"approvedAmount,omitempty"`
	Status           Status  `json:"status"`
	AmountHidden     bool    `json:"amountHidden"`
	Notes            string  `json:"notes,omitempty"`
	PaymentMethod    *string `json:"paymentMethod,omitempty"`
	PaymentReference *string `json:"paymentReference,omitempty"`
	PaidDate         *string `json:"paidDate,omitempty"`
	ApprovedBy       *int64  `json:"approvedBy,omitempty"`
	SubmittedBy      int64   `json:"submittedBy"`
}

type billResponse struct {
	ID               int64   `json:"id"`
	SiteID           int64   `json:"siteId"`
	VendorName       string  `json:"vendorName"`
	VendorGSTIN      string  `json:"vendorGstin,omitempty"`
	FundAllocationID *int64  `json:"fundAllocationId,omitempty"`
	BaseAmount       *string `json:"baseAmount,omitempty"`
	GSTRate          string  `json:"gstRate"`
	GSTAmount        *string `json:"gstAmount,omitempty"`
	TotalAmount      *string `json:"totalAmount,omitempty"`
	ApprovedAmount   *string `json:"approvedAmount,omitempty"`
	Status           Status  `json:"status"`
	AmountHidden     bool    `json:"amountHidden"`
	Notes            string  `json:"notes,omitempty"`
	PaymentMethod    *string `json:"paymentMethod,omitempty"`
	PaymentReference *string `json:"paymentReference,omitempty"`
	PaidDate         *string `json:"paidDate,omitempty"`
	ApprovedBy       *int64  `json:"approvedBy,omitempty"`
	SubmittedBy      int64   `json:"submittedBy"`
}

func amountStr(d decimal.Decimal) *string {
	s := d.StringFixed(2)
	return &s
}

func optAmountStr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	return amountStr(*d)
}

func dateStr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

// canSeeAmounts reports whether the reader may see hidden amounts. Hiding is
// a display concern only; decision logic upstream always uses real values.
func canSeeAmounts(r *http.Request, hidden bool, submittedBy int64) bool {
	if !hidden {
		return true
	}
	p := shared.PrincipalFromContext(r.Context())
	return p.UserID == submittedBy || rbac.Can(p.Role, rbac.OpAmountsViewHidden)
}

func (h *Handler) toExpenseResponse(r *http.Request, e Expense) expenseResponse {
	resp := expenseResponse{
		ID:               e.ID,
		SiteID:           e.SiteID,
		Category:         e.Category,
		FundAllocationID: e.FundAllocationID,
		Status:           e.Status,
		AmountHidden:     e.AmountHidden,
		Notes:            e.Notes,
		PaymentMethod:    e.PaymentMethod,
		PaymentReference: e.PaymentReference,
		PaidDate:         dateStr(e.PaidDate),
		ApprovedBy:       e.ApprovedBy,
		SubmittedBy:      e.SubmittedBy,
	}
	if canSeeAmounts(r, e.AmountHidden, e.SubmittedBy) {
		resp.RequestedAmount = amountStr(e.RequestedAmount)
		resp.ApprovedAmount = optAmountStr(e.ApprovedAmount)
	}
	return resp
}

func (h *Handler) toBillResponse(r *http.Request, b Bill) billResponse {
	resp := billResponse{
		ID:               b.ID,
		SiteID:           b.SiteID,
		VendorName:       b.VendorName,
		VendorGSTIN:      b.VendorGSTIN,
		FundAllocationID: b.FundAllocationID,
		GSTRate:          b.GSTRate.String(),
		Status:           b.Status,
		AmountHidden:     b.AmountHidden,
		Notes:            b.Notes,
		PaymentMethod:    b.PaymentMethod,
		PaymentReference: b.PaymentReference,
		PaidDate:         dateStr(b.PaidDate),
		ApprovedBy:       b.ApprovedBy,
		SubmittedBy:      b.SubmittedBy,
	}
	if canSeeAmounts(r, b.AmountHidden, b.SubmittedBy) {
		resp.BaseAmount = amountStr(b.BaseAmount)
		resp.GSTAmount = amountStr(b.GSTAmount)
		resp.TotalAmount = amountStr(b.TotalAmount)
		resp.ApprovedAmount = optAmountStr(b.ApprovedAmount)
	}
	return resp
}

func recordID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	return d, err == nil
}

func parseOptAmount(s *string) (*decimal.Decimal, bool) {
	if s == nil {
		return nil, true
	}
	d, ok := parseAmount(*s)
	if !ok {
		return nil, false
	}
	return &d, true
}

type submitExpenseRequest struct {
	SiteID           int64  `json:"siteId" validate:"required"`
	Category         string `json:"category" validate:"required"`
	FundAllocationID *int64 `json:"fundAllocationId"`
	RequestedAmount  string `json:"requestedAmount" validate:"required"`
	AmountHidden     bool   `json:"amountHidden"`
	Notes            string `json:"notes"`
}

func (h *Handler) submitExpense(w http.ResponseWriter, r *http.Request) {
	var req submitExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, ok := parseAmount(req.RequestedAmount)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "requestedAmount must be a decimal number")
		return
	}

	e, err := h.service.SubmitExpense(r.Context(), shared.PrincipalFromContext(r.Context()), SubmitExpenseInput{
		SiteID:           req.SiteID,
		Category:         req.Category,
		FundAllocationID: req.FundAllocationID,
		RequestedAmount:  amount,
		AmountHidden:     req.AmountHidden,
		Notes:            req.Notes,
	})
	if err != nil {
		h.logger.Error("submit expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toExpenseResponse(r, e))
}

type submitBillRequest struct {
	SiteID           int64  `json:"siteId" validate:"required"`
	VendorName       string `json:"vendorName" validate:"required"`
	VendorGSTIN      string `json:"vendorGstin"`
	FundAllocationID *int64 `json:"fundAllocationId"`
	BaseAmount       string `json:"baseAmount" validate:"required"`
	GSTRate          string `json:"gstRate" validate:"required"`
	AmountHidden     bool   `json:"amountHidden"`
	Notes            string `json:"notes"`
}

func (h *Handler) submitBill(w http.ResponseWriter, r *http.Request) {
	var req submitBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	base, ok := parseAmount(req.BaseAmount)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "baseAmount must be a decimal number")
		return
	}
	rate, ok := parseAmount(req.GSTRate)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "gstRate must be a decimal number")
		return
	}

	b, err := h.service.SubmitBill(r.Context(), shared.PrincipalFromContext(r.Context()), SubmitBillInput{
		SiteID:           req.SiteID,
		VendorName:       req.VendorName,
		VendorGSTIN:      req.VendorGSTIN,
		FundAllocationID: req.FundAllocationID,
		BaseAmount:       base,
		GSTRate:          rate,
		AmountHidden:     req.AmountHidden,
		Notes:            req.Notes,
	})
	if err != nil {
		h.logger.Error("submit bill", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toBillResponse(r, b))
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid expense id")
		return
	}
	e, err := h.service.GetExpense(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toExpenseResponse(r, e))
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid bill id")
		return
	}
	b, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toBillResponse(r, b))
}

func listFilterFromQuery(r *http.Request) ListFilter {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	filter.SiteID, _ = strconv.ParseInt(q.Get("site_id"), 10, 64)
	filter.FundAllocationID, _ = strconv.ParseInt(q.Get("fund_allocation_id"), 10, 64)
	filter.SubmittedBy, _ = strconv.ParseInt(q.Get("submitted_by"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return filter
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	rows, page, err := h.service.ListExpenses(r.Context(), listFilterFromQuery(r))
	if err != nil {
		h.logger.Error("list expenses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]expenseResponse, 0, len(rows))
	for _, e := range rows {
		items = append(items, h.toExpenseResponse(r, e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	rows, page, err := h.service.ListBills(r.Context(), listFilterFromQuery(r))
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]billResponse, 0, len(rows))
	for _, b := range rows {
		items = append(items, h.toBillResponse(r, b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

type updateExpenseRequest struct {
	SiteID           *int64  `json:"siteId"`
	Category         *string `json:"category"`
	FundAllocationID *int64  `json:"fundAllocationId"`
	RequestedAmount  *string `json:"requestedAmount"`
	Notes            *string `json:"notes"`
}

func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid expense id")
		return
	}
	var req updateExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	amount, ok := parseOptAmount(req.RequestedAmount)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "requestedAmount must be a decimal number")
		return
	}

	e, err := h.service.UpdateExpense(r.Context(), shared.PrincipalFromContext(r.Context()), id, UpdateExpenseInput{
		SiteID:           req.SiteID,
		Category:         req.Category,
		FundAllocationID: req.FundAllocationID,
		RequestedAmount:  amount,
		Notes:            req.Notes,
	})
	if err != nil {
		h.logger.Error("update expense", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toExpenseResponse(r, e))
}

type updateBillRequest struct {
	SiteID      *int64  `json:"siteId"`
	VendorName  *string `json:"vendorName"`
	VendorGSTIN *string `json:"vendorGstin"`
	BaseAmount  *string `json:"baseAmount"`
	GSTRate     *string `json:"gstRate"`
	Notes       *string `json:"notes"`
}

func (h *Handler) updateBill(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid bill id")
		return
	}
	var req updateBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	base, ok := parseOptAmount(req.BaseAmount)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "baseAmount must be a decimal number")
		return
	}
	rate, ok := parseOptAmount(req.GSTRate)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "gstRate must be a decimal number")
		return
	}

	b, err := h.service.UpdateBill(r.Context(), shared.PrincipalFromContext(r.Context()), id, UpdateBillInput{
		SiteID:      req.SiteID,
		VendorName:  req.VendorName,
		VendorGSTIN: req.VendorGSTIN,
		BaseAmount:  base,
		GSTRate:     rate,
		Notes:       req.Notes,
	})
	if err != nil {
		h.logger.Error("update bill", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toBillResponse(r, b))
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid expense id")
		return
	}
	if err := h.service.DeleteExpense(r.Context(), shared.PrincipalFromContext(r.Context()), id); err != nil {
		h.logger.Error("delete expense", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteBill(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid bill id")
		return
	}
	if err := h.service.DeleteBill(r.Context(), shared.PrincipalFromContext(r.Context()), id); err != nil {
		h.logger.Error("delete bill", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type decideRequest struct {
	Action           string  `json:"action" validate:"required,oneof=approve reject credit pay"`
	ApprovedAmount   *string `json:"approvedAmount"`
	Notes            string  `json:"notes"`
	PaymentMethod    string  `json:"paymentMethod"`
	PaymentReference string  `json:"paymentReference"`
}

func (h *Handler) decodeDecision(w http.ResponseWriter, r *http.Request) (DecideInput, bool) {
	var req decideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return DecideInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return DecideInput{}, false
	}
	amount, ok := parseOptAmount(req.ApprovedAmount)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "approvedAmount must be a decimal number")
		return DecideInput{}, false
	}
	return DecideInput{
		Action:           Action(req.Action),
		ApprovedAmount:   amount,
		Notes:            req.Notes,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
	}, true
}

func (h *Handler) decideExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid expense id")
		return
	}
	input, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}
	e, err := h.service.DecideExpense(r.Context(), shared.PrincipalFromContext(r.Context()), id, input)
	if err != nil {
		h.logger.Error("decide expense", slog.Int64("id", id), slog.String("action", string(input.Action)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toExpenseResponse(r, e))
}

func (h *Handler) decideBill(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid bill id")
		return
	}
	input, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}
	b, err := h.service.DecideBill(r.Context(), shared.PrincipalFromContext(r.Context()), id, input)
	if err != nil {
		h.logger.Error("decide bill", slog.Int64("id", id), slog.String("action", string(input.Action)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toBillResponse(r, b))
}
