package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ledgererrors "go-leave-ledger/internal/ledger/errors"
	"go-leave-ledger/internal/shared/sequence"
	"go-leave-ledger/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AppendInput describes one balance-affecting transaction. Amount is signed:
// negative for usage, positive for restores and upward adjustments.
type AppendInput struct {
	EmployeeID      string
	LeaveType       string
	TransactionType string
	Amount          int
	LeaveRequestID  *string
	CustomPolicyID  *string
	Description     string

	// OpeningBalance fixes the base when the employee has no prior entry.
	// Callers that are changing the quota in the same transaction must set
	// it to the pre-change quota; left nil, the first entry opens from the
	// effective quota, which would already include that change.
	OpeningBalance *int

	// PreventNegative makes the append fail with a conflict instead of
	// letting the balance go below zero. Approvals set it; backfills and
	// adjustments do not.
	PreventNegative bool
}

//go:generate mockgen -source=ledger_service.go -destination=mock/ledger_service_mock.go -package=mock
type Service interface {
	// WithTx binds the service to the caller's transaction. Append refuses
	// to run unbound: a ledger write outside the caller's unit of work is
	// the exact failure mode this package exists to rule out.
	WithTx(tx *sql.Tx) Service
	Append(ctx context.Context, tn tenant.Context, in AppendInput) (Entry, error)
	LatestEntry(ctx context.Context, tn tenant.Context, employeeID, leaveType string) (*Entry, error)
}

type service struct {
	repo   Repository
	seq    sequence.Repository
	logger *zap.Logger
	tx     *sql.Tx
}

func NewService(repo Repository, seq sequence.Repository, logger ...*zap.Logger) Service {
	l := zap.L().Named("ledger.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("ledger.service")
	}
	return &service{repo: repo, seq: seq, logger: l}
}

func (s *service) WithTx(tx *sql.Tx) Service {
	return &service{
		repo:   s.repo.WithTx(tx),
		seq:    s.seq.WithTx(tx),
		logger: s.logger,
		tx:     tx,
	}
}

func validTransactionType(t string) bool {
	switch t {
	case TypeOpening, TypeUsed, TypeRestored, TypeAdjustment:
		return true
	}
	return false
}

func (s *service) Append(ctx context.Context, tn tenant.Context, in AppendInput) (Entry, error) {
	if s.tx == nil {
		s.logger.Error("ledger append attempted outside a transaction",
			zap.String("company_id", tn.CompanyID),
			zap.String("employee_id", in.EmployeeID),
			zap.String("transaction_type", in.TransactionType),
		)
		return Entry{}, ledgererrors.ErrAppendOutsideTransaction
	}

	companyUUID, err := uuid.Parse(tn.CompanyID)
	if err != nil {
		return Entry{}, ledgererrors.ErrInvalidCompanyID
	}
	employeeUUID, err := uuid.Parse(in.EmployeeID)
	if err != nil {
		return Entry{}, ledgererrors.ErrInvalidEmployeeID
	}
	if !validTransactionType(in.TransactionType) {
		return Entry{}, ledgererrors.ErrInvalidTransactionType
	}
	if in.Amount == 0 && (in.TransactionType == TypeUsed || in.TransactionType == TypeRestored) {
		return Entry{}, ledgererrors.ErrZeroAmountForUsage
	}

	// Serialization point for the (employee, leave_type) pair.
	if _, err := s.repo.LockBalance(ctx, tn.CompanyID, in.EmployeeID, in.LeaveType); err != nil {
		return Entry{}, err
	}

	if in.LeaveRequestID != nil {
		exists, err := s.repo.HasEntryForRequest(ctx, tn.CompanyID, *in.LeaveRequestID, in.TransactionType)
		if err != nil {
			return Entry{}, err
		}
		if exists {
			return Entry{}, ledgererrors.ErrDuplicateRequestEntry
		}
	}

	latest, err := s.repo.LatestEntry(ctx, tn.CompanyID, in.EmployeeID, in.LeaveType)
	if err != nil {
		return Entry{}, err
	}

	var balanceBefore int
	switch {
	case latest != nil:
		balanceBefore = latest.BalanceAfter
	case in.OpeningBalance != nil:
		balanceBefore = *in.OpeningBalance
	default:
		quota, err := s.repo.EffectiveQuota(ctx, tn.CompanyID, in.EmployeeID, in.LeaveType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Entry{}, ledgererrors.ErrLeaveTypeNotFound
			}
			return Entry{}, err
		}
		balanceBefore = quota.Total
	}

	balanceAfter := balanceBefore + in.Amount
	if in.PreventNegative && balanceAfter < 0 {
		s.logger.Warn("ledger append rejected, balance would go negative",
			zap.String("company_id", tn.CompanyID),
			zap.String("employee_id", in.EmployeeID),
			zap.String("leave_type", in.LeaveType),
			zap.Int("balance_before", balanceBefore),
			zap.Int("amount", in.Amount),
		)
		return Entry{}, ledgererrors.ErrInsufficientBalance
	}

	seq, err := s.seq.NextValue(ctx, tn.CompanyID, sequence.CounterLedger)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:              uuid.New(),
		CompanyID:       companyUUID,
		EmployeeID:      employeeUUID,
		LeaveType:       in.LeaveType,
		TransactionType: in.TransactionType,
		Amount:          in.Amount,
		BalanceBefore:   balanceBefore,
		BalanceAfter:    balanceAfter,
		TransactionDate: time.Now().UTC(),
		Sequence:        seq,
		Description:     in.Description,
	}
	if in.LeaveRequestID != nil {
		requestUUID, err := uuid.Parse(*in.LeaveRequestID)
		if err != nil {
			return Entry{}, ledgererrors.ErrInvalidRequestID
		}
		e.LeaveRequestID = &requestUUID
	}
	if in.CustomPolicyID != nil {
		policyUUID, err := uuid.Parse(*in.CustomPolicyID)
		if err != nil {
			return Entry{}, ledgererrors.ErrInvalidPolicyID
		}
		e.CustomPolicyID = &policyUUID
	}

	if err := s.repo.Insert(ctx, &e); err != nil {
		s.logger.Error("ledger insert failed",
			zap.String("company_id", tn.CompanyID),
			zap.String("employee_id", in.EmployeeID),
			zap.String("transaction_type", in.TransactionType),
			zap.Error(err),
		)
		return Entry{}, err
	}

	// The cached counter moves in lock-step with the ledger, inside the
	// same transaction. Only usage and restores affect used-days.
	var usedDelta int
	switch in.TransactionType {
	case TypeUsed, TypeRestored:
		usedDelta = -in.Amount
	}
	if usedDelta != 0 {
		if err := s.repo.AddUsed(ctx, tn.CompanyID, in.EmployeeID, in.LeaveType, usedDelta); err != nil {
			s.logger.Error("balance cache update failed",
				zap.String("company_id", tn.CompanyID),
				zap.String("employee_id", in.EmployeeID),
				zap.Error(err),
			)
			return Entry{}, err
		}
	}

	s.logger.Info("ledger entry appended",
		zap.String("entry_id", e.ID.String()),
		zap.String("company_id", tn.CompanyID),
		zap.String("employee_id", in.EmployeeID),
		zap.String("leave_type", in.LeaveType),
		zap.String("transaction_type", in.TransactionType),
		zap.Int("amount", in.Amount),
		zap.Int("balance_after", balanceAfter),
		zap.Int64("sequence", seq),
	)

	return e, nil
}

func (s *service) LatestEntry(ctx context.Context, tn tenant.Context, employeeID, leaveType string) (*Entry, error) {
	if _, err := uuid.Parse(tn.CompanyID); err != nil {
		return nil, ledgererrors.ErrInvalidCompanyID
	}
	if _, err := uuid.Parse(employeeID); err != nil {
		return nil, ledgererrors.ErrInvalidEmployeeID
	}
	return s.repo.LatestEntry(ctx, tn.CompanyID, employeeID, leaveType)
}
