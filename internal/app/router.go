package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundline/fundline/internal/allocation"
	"github.com/fundline/fundline/internal/approval"
	"github.com/fundline/fundline/internal/contract"
	"github.com/fundline/fundline/internal/ledger"
	"github.com/fundline/fundline/internal/rbac"
	"github.com/fundline/fundline/internal/wallet"
	"github.com/fundline/fundline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Pool              *pgxpool.Pool
	RBACMiddleware    rbac.Middleware
	AllocationHandler *allocation.Handler
	WalletHandler     *wallet.Handler
	ApprovalHandler   *approval.Handler
	ContractHandler   *contract.Handler
	LedgerHandler     *ledger.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with fundline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
		RBAC:   params.RBACMiddleware,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("healthz db ping", slog.Any("error", err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/allocations", func(r chi.Router) {
		params.AllocationHandler.MountRoutes(r)
		r.With(params.RBACMiddleware.Require(rbac.OpWalletView)).
			Get("/{id}/utilization", params.WalletHandler.Utilization)
	})
	r.With(params.RBACMiddleware.Require(rbac.OpWalletView)).
		Get("/wallet/{userID}", params.WalletHandler.Summary)

	r.Route("/expenses", params.ApprovalHandler.MountExpenseRoutes)
	r.Route("/bills", params.ApprovalHandler.MountBillRoutes)
	r.Route("/contracts", params.ContractHandler.MountRoutes)

	params.LedgerHandler.MountRoutes(r)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
