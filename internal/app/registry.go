package app

import (
	"database/sql"

	"go-leave-ledger/internal/employee"
	"go-leave-ledger/internal/ledger"
	"go-leave-ledger/internal/leaverequest"
	"go-leave-ledger/internal/leavetype"
	"go-leave-ledger/internal/messaging/kafka"
	"go-leave-ledger/internal/middleware"
	"go-leave-ledger/internal/notification"
	"go-leave-ledger/internal/policy"
	"go-leave-ledger/internal/rbac"
	"go-leave-ledger/internal/reconcile"
	"go-leave-ledger/internal/shared/sequence"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
) error {
	// --- Repositories ---
	ledgerRepo := ledger.NewRepository(db)
	seqRepo := sequence.NewRepository(db)
	employeeRepo := employee.NewRepository(gormDB)
	leaveTypeRepo := leavetype.NewRepository(gormDB)
	policyRepo := policy.NewRepository(gormDB)
	requestRepo := leaverequest.NewRepository(gormDB)
	reconcileRepo := reconcile.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- RBAC Core ---
	rbacService, err := rbac.NewService()
	if err != nil {
		return err
	}

	// --- Services ---
	notifier := notification.NewOutboxNotifier(outboxRepo)
	ledgerService := ledger.NewService(ledgerRepo, seqRepo)
	balanceResolver := ledger.NewResolver(ledgerRepo)
	leaveTypeService := leavetype.NewService(leaveTypeRepo)
	policyService := policy.NewService(db, policyRepo, employeeRepo, ledgerService, notifier)
	requestService := leaverequest.NewService(db, requestRepo, ledgerService, balanceResolver, notifier)
	reconcileService := reconcile.NewService(db, reconcileRepo, ledgerService, ledgerRepo, notifier)

	// --- Handlers ---
	balanceHandler := ledger.NewBalanceHandler(balanceResolver, employeeRepo, rdb)
	leaveTypeHandler := leavetype.NewHandler(leaveTypeService)
	policyHandler := policy.NewHandler(policyService)
	requestHandler := leaverequest.NewHandler(requestService)
	reconcileHandler := reconcile.NewHandler(reconcileService)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	api.Use(middleware.RequestID(), middleware.RateLimitByIP(rate.Limit(20), 40))
	{
		ledger.RegisterRoutes(api, balanceHandler, rbacService)
		leavetype.RegisterRoutes(api, leaveTypeHandler, rbacService)
		policy.RegisterRoutes(api, policyHandler, rbacService)
		leaverequest.RegisterRoutes(api, requestHandler, rbacService, rdb)
		reconcile.RegisterRoutes(api, reconcileHandler, rbacService)
	}

	return nil
}
