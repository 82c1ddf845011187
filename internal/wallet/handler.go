package wallet

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fundline/fundline/internal/platform/httpx"
)

// Handler serves the read-only utilization and wallet endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Utilization handles GET /allocations/{id}/utilization.
func (h *Handler) Utilization(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid allocation id")
		return
	}
	u, err := h.service.Utilization(r.Context(), id)
	if err != nil {
		h.logger.Error("allocation utilization", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

// Summary handles GET /wallet/{userID}.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	s, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		h.logger.Error("wallet summary", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}
