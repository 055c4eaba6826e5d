package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-pos/internal/audit"
	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/credit"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/refunds"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

// Stores is implemented by store/postgres and store/memory.
type Stores interface {
	Inventory() inventory.RepositoryPort
	Cash() cash.RepositoryPort
	Credit() credit.RepositoryPort
	Sales() sales.RepositoryPort
	Refunds() refunds.RepositoryPort
}

// AuditRecorder persists informational activity rows and reads them back for
// the activity timeline.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
	Query(ctx context.Context, q shared.AuditQuery) ([]shared.AuditLog, error)
}

// Dependencies are the infrastructure pieces main hands to the container.
// Notifier, Locker, Metrics, RateLimitCounter and JobHandler may be nil.
type Dependencies struct {
	Logger           *slog.Logger
	Config           *Config
	Stores           Stores
	Audit            AuditRecorder
	Notifier         shared.Notifier
	Locker           shared.Locker
	Metrics          *observability.Metrics
	RateLimitCounter httprate.LimitCounter
	JobHandler       *jobs.Handler
}

// Container holds the wired services and the HTTP handler.
type Container struct {
	Policy    *rbac.Policy
	Inventory *inventory.Service
	Cash      *cash.Service
	Credit    *credit.Service
	Sales     *sales.Service
	Refunds   *refunds.Service
	Activity  *audit.Service
	Router    http.Handler
}

// NewContainer builds ledgers, services, handlers and the router.
func NewContainer(deps Dependencies) *Container {
	cfg := deps.Config
	if cfg == nil {
		cfg = &Config{OversellPolicy: string(inventory.OversellClamp), TotalTolerance: shared.DefaultTolerance, ReasonMinLength: 10}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Audit
	if recorder == nil {
		recorder = shared.NewMemoryAuditLogger()
	}

	policy := rbac.NewDefaultPolicy()
	rbacMiddleware := rbac.Middleware{Authorizer: policy, Logger: logger}

	stockLedger := inventory.NewLedger(inventory.OversellPolicy(cfg.OversellPolicy), logger)
	cashLedger := cash.NewLedger()
	creditLedger := credit.NewLedger()

	var (
		saleMetrics     sales.MetricsPort
		refundMetrics   refunds.MetricsPort
		registerMetrics cash.MetricsPort
	)
	if deps.Metrics != nil {
		saleMetrics, refundMetrics, registerMetrics = deps.Metrics, deps.Metrics, deps.Metrics
	}

	c := &Container{Policy: policy}
	c.Inventory = inventory.NewService(deps.Stores.Inventory(), stockLedger, recorder, policy, logger)
	c.Cash = cash.NewService(deps.Stores.Cash(), cashLedger, recorder, policy, deps.Locker, registerMetrics, logger,
		cash.ServiceConfig{LockTTL: cfg.RegisterLockTTL})
	c.Credit = credit.NewService(deps.Stores.Credit(), creditLedger, cashLedger, recorder, policy, deps.Notifier, logger)
	c.Sales = sales.NewService(deps.Stores.Sales(), stockLedger, cashLedger, creditLedger, recorder, policy, deps.Notifier, saleMetrics, logger,
		sales.Config{Tolerance: cfg.TotalTolerance, ReasonMinLength: cfg.ReasonMinLength})
	c.Refunds = refunds.NewService(deps.Stores.Refunds(), stockLedger, cashLedger, creditLedger, recorder, policy, refundMetrics, logger,
		refunds.Config{Tolerance: cfg.TotalTolerance, ReasonMinLength: cfg.ReasonMinLength, StrictAmount: cfg.RefundStrictAmount})
	c.Activity = audit.NewService(recorder, policy)

	c.Router = NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		InventoryHandler:   inventory.NewHandler(logger, c.Inventory, rbacMiddleware),
		CashHandler:        cash.NewHandler(logger, c.Cash, rbacMiddleware),
		CreditHandler:      credit.NewHandler(logger, c.Credit, rbacMiddleware),
		SalesHandler:       sales.NewHandler(logger, c.Sales, rbacMiddleware),
		RefundsHandler:     refunds.NewHandler(logger, c.Refunds, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, policy),
		ActivityHandler:    audit.NewHandler(logger, c.Activity, rbacMiddleware),
		JobHandler:         deps.JobHandler,
		RateLimitCounter:   deps.RateLimitCounter,
		Metrics:            deps.Metrics,
	})
	return c
}
