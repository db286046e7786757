package reconcile

import (
	"context"
	"database/sql"
	"errors"

	"go-leave-ledger/internal/events"
	"go-leave-ledger/internal/ledger"
	ledgererrors "go-leave-ledger/internal/ledger/errors"
	"go-leave-ledger/internal/notification"
	"go-leave-ledger/internal/tenant"

	"go.uber.org/zap"
)

// Report summarizes one reconciliation pass. A request counts once per
// expected entry, so a cancelled request contributes two checks.
type Report struct {
	Checked    int `json:"checked"`
	Backfilled int `json:"backfilled"`
	Skipped    int `json:"skipped"`
}

//go:generate mockgen -source=reconcile_service.go -destination=mock/reconcile_service_mock.go -package=mock
type Service interface {
	// Run audits decided leave requests against the ledger and appends the
	// entries a broken transition failed to write. Idempotent: entries that
	// already exist are skipped, never duplicated. Never crosses companies.
	Run(ctx context.Context, companyID, employeeID string) (Report, error)
}

type service struct {
	db        *sql.DB
	repo      Repository
	ledgerSvc ledger.Service
	entries   ledger.Repository
	notifier  notification.Notifier
	logger    *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	ledgerSvc ledger.Service,
	entries ledger.Repository,
	notifier notification.Notifier,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("reconcile.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("reconcile.service")
	}
	return &service{
		db:        db,
		repo:      repo,
		ledgerSvc: ledgerSvc,
		entries:   entries,
		notifier:  notifier,
		logger:    l,
	}
}

func (s *service) Run(ctx context.Context, companyID, employeeID string) (Report, error) {
	s.logger.Info("reconciliation started",
		zap.String("company_id", companyID),
		zap.String("employee_id", employeeID),
	)

	requests, err := s.repo.ListDecided(ctx, companyID, employeeID)
	if err != nil {
		return Report{}, err
	}

	tn := tenant.Context{CompanyID: companyID}
	var report Report
	for _, req := range requests {
		expected := []struct {
			txType string
			amount int
		}{
			{ledger.TypeUsed, -req.Duration},
		}
		if req.Status == "CANCELLED" {
			expected = append(expected, struct {
				txType string
				amount int
			}{ledger.TypeRestored, req.Duration})
		}

		for _, want := range expected {
			report.Checked++

			exists, err := s.entries.HasEntryForRequest(ctx, companyID, req.ID.String(), want.txType)
			if err != nil {
				return report, err
			}
			if exists {
				report.Skipped++
				continue
			}

			if err := s.backfill(ctx, tn, req, want.txType, want.amount); err != nil {
				// A concurrent pass already wrote the entry; still reconciled.
				if errors.Is(err, ledgererrors.ErrDuplicateRequestEntry) {
					report.Skipped++
					continue
				}
				return report, err
			}
			report.Backfilled++
		}
	}

	s.logger.Info("reconciliation finished",
		zap.String("company_id", companyID),
		zap.Int("checked", report.Checked),
		zap.Int("backfilled", report.Backfilled),
		zap.Int("skipped", report.Skipped),
	)

	return report, nil
}

// backfill writes one missing entry in its own transaction, so an
// interrupted run leaves every already-repaired request committed.
func (s *service) backfill(ctx context.Context, tn tenant.Context, req DecidedRequest, txType string, amount int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	requestID := req.ID.String()
	entry, err := s.ledgerSvc.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
		EmployeeID:      req.EmployeeID.String(),
		LeaveType:       req.LeaveType,
		TransactionType: txType,
		Amount:          amount,
		LeaveRequestID:  &requestID,
		Description:     "backfilled by reconciliation",
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Warn("missing ledger entry backfilled",
		zap.String("company_id", tn.CompanyID),
		zap.String("request_id", requestID),
		zap.String("transaction_type", txType),
		zap.Int("amount", amount),
		zap.Int("balance_after", entry.BalanceAfter),
	)

	s.notifier.BalanceChanged(ctx, events.LeaveBalanceChangedEvent{
		CompanyID:      tn.CompanyID,
		EmployeeID:     req.EmployeeID.String(),
		LeaveType:      req.LeaveType,
		Reason:         events.ReasonBackfilled,
		Amount:         entry.Amount,
		BalanceAfter:   entry.BalanceAfter,
		LeaveRequestID: &requestID,
	})

	return nil
}
