package allocation

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

// Handler manages allocation endpoints.
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

// MountRoutes registers allocation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpAllocationView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.With(h.rbac.Require(rbac.OpAllocationCreate)).Post("/", h.create)
	r.With(h.rbac.Require(rbac.OpAllocationUpdate)).Patch("/{id}", h.update)
	r.With(h.rbac.Require(rbac.OpAllocationDelete)).Delete("/{id}", h.delete)
	// Transition gating depends on the target status, checked in-handler.
	r.Post("/{id}/transition", h.transition)
}

type allocationResponse struct {
	ID              int64   `json:"id"`
	FromUser        int64   `json:"fromUser"`
	ToUser          int64   `json:"toUser"`
	SiteID          *int64  `json:"siteId,omitempty"`
	ParentID        *int64  `json:"parentId,omitempty"`
	Amount          string  `json:"amount"`
	Purpose         string  `json:"purpose"`
	Description     string  `json:"description,omitempty"`
	Status          Status  `json:"status"`
	AllocationDate  string  `json:"allocationDate"`
	DisbursedDate   *string `json:"disbursedDate,omitempty"`
	ReferenceNumber string  `json:"referenceNumber,omitempty"`
}

func toResponse(a FundAllocation) allocationResponse {
	resp := allocationResponse{
		ID:              a.ID,
		FromUser:        a.FromUser,
		ToUser:          a.ToUser,
		SiteID:          a.SiteID,
		ParentID:        a.ParentID,
		Amount:          a.Amount.StringFixed(2),
		Purpose:         a.Purpose,
		Description:     a.Description,
		Status:          a.Status,
		AllocationDate:  a.AllocationDate.Format(time.RFC3339),
		ReferenceNumber: a.ReferenceNumber,
	}
	if a.DisbursedDate != nil {
		s := a.DisbursedDate.Format(time.RFC3339)
		resp.DisbursedDate = &s
	}
	return resp
}

type createRequest struct {
	ToUser          int64  `json:"toUser" validate:"required"`
	SiteID          *int64 `json:"siteId"`
	ParentID        *int64 `json:"parentId"`
	Amount          string `json:"amount" validate:"required"`
	Purpose         string `json:"purpose" validate:"required"`
	Description     string `json:"description"`
	ReferenceNumber string `json:"referenceNumber"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
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

	actor := shared.PrincipalFromContext(r.Context())
	a, err := h.service.Create(r.Context(), CreateInput{
		FromUser:        actor.UserID,
		ToUser:          req.ToUser,
		SiteID:          req.SiteID,
		ParentID:        req.ParentID,
		Amount:          amount,
		Purpose:         req.Purpose,
		Description:     req.Description,
		ReferenceNumber: req.ReferenceNumber,
	})
	if err != nil {
		h.logger.Error("create allocation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(a))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid allocation id")
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	filter.SiteID, _ = strconv.ParseInt(q.Get("site_id"), 10, 64)
	filter.FromUser, _ = strconv.ParseInt(q.Get("from_user"), 10, 64)
	filter.ToUser, _ = strconv.ParseInt(q.Get("to_user"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	rows, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list allocations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]allocationResponse, 0, len(rows))
	for _, a := range rows {
		items = append(items, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

type transitionRequest struct {
	Status Status `json:"status" validate:"required"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid allocation id")
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	actor := shared.PrincipalFromContext(r.Context())
	op := rbac.OpAllocationDisburse
	if req.Status == StatusApproved || req.Status == StatusRejected {
		op = rbac.OpAllocationApprove
	}
	if !rbac.Can(actor.Role, op) {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}

	a, err := h.service.Transition(r.Context(), id, req.Status, actor)
	if err != nil {
		h.logger.Error("transition allocation", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(a))
}

type updateRequest struct {
	ToUser          *int64  `json:"toUser"`
	SiteID          *int64  `json:"siteId"`
	Amount          *string `json:"amount"`
	Purpose         *string `json:"purpose"`
	Description     *string `json:"description"`
	ReferenceNumber *string `json:"referenceNumber"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid allocation id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	patch := UpdateInput{
		ToUser:          req.ToUser,
		SiteID:          req.SiteID,
		Purpose:         req.Purpose,
		Description:     req.Description,
		ReferenceNumber: req.ReferenceNumber,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal number")
			return
		}
		patch.Amount = &amount
	}

	a, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.logger.Error("update allocation", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid allocation id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete allocation", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
