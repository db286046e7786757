package app

import (
	"context"
	"fmt"
	"os"

	"go-leave-ledger/internal/ledger"
	"go-leave-ledger/internal/messaging/kafka"
	"go-leave-ledger/internal/notification"
	"go-leave-ledger/internal/reconcile"
	"go-leave-ledger/internal/shared/connection"
	"go-leave-ledger/internal/shared/sequence"

	"go.uber.org/zap"
)

// RunReconciler executes one offline reconciliation pass and exits. Scope
// comes from the environment: RECONCILE_COMPANY_ID is required,
// RECONCILE_EMPLOYEE_ID optionally narrows the pass to one employee. The
// job is restartable; already-reconciled requests are skipped on each run.
func RunReconciler() error {
	logger := zap.L().Named("app.reconciler")

	companyID := os.Getenv("RECONCILE_COMPANY_ID")
	if companyID == "" {
		return fmt.Errorf("RECONCILE_COMPANY_ID is required")
	}
	employeeID := os.Getenv("RECONCILE_EMPLOYEE_ID")

	gormDB, err := connection.ConnectGORMWithRetry(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		5,
	)
	if err != nil {
		return err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ledgerRepo := ledger.NewRepository(sqlDB)
	seqRepo := sequence.NewRepository(sqlDB)
	ledgerService := ledger.NewService(ledgerRepo, seqRepo)
	outboxRepo := kafka.NewOutboxRepository(sqlDB)
	notifier := notification.NewOutboxNotifier(outboxRepo)
	reconcileRepo := reconcile.NewRepository(gormDB)
	reconcileService := reconcile.NewService(sqlDB, reconcileRepo, ledgerService, ledgerRepo, notifier)

	report, err := reconcileService.Run(context.Background(), companyID, employeeID)
	if err != nil {
		return err
	}

	logger.Info("reconciliation pass complete",
		zap.String("company_id", companyID),
		zap.String("employee_id", employeeID),
		zap.Int("checked", report.Checked),
		zap.Int("backfilled", report.Backfilled),
		zap.Int("skipped", report.Skipped),
	)

	return nil
}
