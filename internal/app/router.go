package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/finacct"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/observability"
	"github.com/halisi-erp/halisi-erp/internal/payments/billpay"
	"github.com/halisi-erp/halisi-erp/internal/payments/commission"
	"github.com/halisi-erp/halisi-erp/internal/payments/expense"
	"github.com/halisi-erp/halisi-erp/internal/payments/income"
	"github.com/halisi-erp/halisi-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	COAHandler        *coa.Handler
	LedgerHandler     *ledger.Handler
	AccountsHandler   *finacct.Handler
	BillPayHandler    *billpay.Handler
	ExpenseHandler    *expense.Handler
	IncomeHandler     *income.Handler
	CommissionHandler *commission.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Halisi defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.COAHandler != nil {
		r.Route("/coa", params.COAHandler.MountRoutes)
	}
	if params.LedgerHandler != nil {
		r.Route("/ledger", params.LedgerHandler.MountRoutes)
	}
	if params.AccountsHandler != nil {
		r.Route("/accounts", params.AccountsHandler.MountRoutes)
	}
	if params.BillPayHandler != nil {
		r.Route("/payments/bills", params.BillPayHandler.MountRoutes)
	}
	if params.ExpenseHandler != nil {
		r.Route("/expenses", params.ExpenseHandler.MountRoutes)
	}
	if params.IncomeHandler != nil {
		r.Route("/incomes", params.IncomeHandler.MountRoutes)
	}
	if params.CommissionHandler != nil {
		r.Route("/commissions", params.CommissionHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
