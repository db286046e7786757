package leaverequest

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go-leave-ledger/internal/events"
	"go-leave-ledger/internal/ledger"
	leaverequesterrors "go-leave-ledger/internal/leaverequest/errors"
	"go-leave-ledger/internal/notification"
	"go-leave-ledger/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

//go:generate mockgen -source=leaverequest_service.go -destination=mock/leaverequest_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, tn tenant.Context, req CreateRequest) (Response, error)
	GetAll(ctx context.Context, tn tenant.Context) ([]Response, error)
	GetByID(ctx context.Context, tn tenant.Context, id string) (Response, error)
	Approve(ctx context.Context, tn tenant.Context, id string) (Response, error)
	Reject(ctx context.Context, tn tenant.Context, id, reason string) (Response, error)
	Cancel(ctx context.Context, tn tenant.Context, id string) (Response, error)
}

type service struct {
	db       *sql.DB
	repo     Repository
	ledger   ledger.Service
	resolver ledger.Resolver
	notifier notification.Notifier
	logger   *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	ledgerSvc ledger.Service,
	resolver ledger.Resolver,
	notifier notification.Notifier,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leaverequest.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leaverequest.service")
	}
	return &service{
		db:       db,
		repo:     repo,
		ledger:   ledgerSvc,
		resolver: resolver,
		notifier: notifier,
		logger:   l,
	}
}

// isAllowedStatusTransition encodes the whole workflow: pending goes to
// approved or rejected, approved goes to cancelled, rejected and cancelled
// are terminal.
func isAllowedStatusTransition(currentStatus, targetStatus string) bool {
	switch currentStatus {
	case StatusPending:
		return targetStatus == StatusApproved || targetStatus == StatusRejected
	case StatusApproved:
		return targetStatus == StatusCancelled
	default:
		return false
	}
}

func (s *service) Create(ctx context.Context, tn tenant.Context, req CreateRequest) (Response, error) {
	employeeID := req.EmployeeID
	if employeeID == "" {
		employeeID = tn.EmployeeID
	}

	s.logger.Debug("create leave request requested",
		zap.String("company_id", tn.CompanyID),
		zap.String("employee_id", employeeID),
		zap.String("leave_type", req.LeaveType),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	companyUUID, err := uuid.Parse(tn.CompanyID)
	if err != nil {
		return Response{}, leaverequesterrors.ErrInvalidCompanyID
	}
	employeeUUID, err := uuid.Parse(employeeID)
	if err != nil {
		return Response{}, leaverequesterrors.ErrInvalidEmployeeID
	}
	createdByUUID, err := uuid.Parse(tn.UserID)
	if err != nil {
		return Response{}, leaverequesterrors.ErrInvalidActorID
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return Response{}, err
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return Response{}, err
	}
	if startDate.After(endDate) {
		return Response{}, leaverequesterrors.ErrInvalidDateRange
	}

	belongs, err := s.repo.EmployeeBelongsToCompany(ctx, tn.CompanyID, employeeID)
	if err != nil {
		return Response{}, err
	}
	if !belongs {
		return Response{}, leaverequesterrors.ErrEmployeeNotInCompany
	}

	// Audit snapshot only. The ledger is untouched until approval.
	balance, err := s.resolver.GetBalance(ctx, tn, employeeID, req.LeaveType)
	if err != nil {
		return Response{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("create leave request begin tx failed", zap.Error(err))
		return Response{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	rules, err := qtx.FindLeaveType(ctx, tn.CompanyID, req.LeaveType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, leaverequesterrors.ErrLeaveTypeNotFound
		}
		return Response{}, err
	}
	if !rules.IsActive {
		return Response{}, leaverequesterrors.ErrLeaveTypeInactive
	}

	overlap, err := qtx.HasOverlappingPeriod(ctx, tn.CompanyID, employeeID, startDate, endDate, nil)
	if err != nil {
		return Response{}, err
	}
	if overlap {
		s.logger.Warn("create leave request overlap detected",
			zap.String("company_id", tn.CompanyID),
			zap.String("employee_id", employeeID),
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
		)
		return Response{}, leaverequesterrors.ErrLeaveOverlap
	}

	duration := int(endDate.Sub(startDate).Hours()/24) + 1
	l := &LeaveRequest{
		ID:               uuid.New(),
		CompanyID:        companyUUID,
		EmployeeID:       employeeUUID,
		LeaveType:        req.LeaveType,
		StartDate:        startDate,
		EndDate:          endDate,
		Duration:         duration,
		Reason:           req.Reason,
		Status:           StatusPending,
		BalanceAtRequest: balance.Remaining,
		CreatedBy:        createdByUUID,
	}

	// Types that skip approval are approved in the same transaction, usage
	// entry included, so the auto path keeps the same atomicity guarantee
	// as a manual approval.
	var autoApproved *ledger.Entry
	if !rules.RequiresApproval {
		l.Status = StatusApproved
		l.ApprovedBy = &createdByUUID
		now := time.Now().UTC()
		l.ApprovedAt = &now
	}

	if err := qtx.Create(ctx, l); err != nil {
		s.logger.Error("create leave request persist failed", zap.Error(err))
		return Response{}, err
	}

	if l.Status == StatusApproved {
		requestID := l.ID.String()
		entry, err := s.ledger.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       req.LeaveType,
			TransactionType: ledger.TypeUsed,
			Amount:          -duration,
			LeaveRequestID:  &requestID,
			Description:     "leave request auto-approved",
			PreventNegative: true,
		})
		if err != nil {
			return Response{}, err
		}
		autoApproved = &entry
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("create leave request commit failed", zap.Error(err))
		return Response{}, err
	}

	s.logger.Info("leave request created",
		zap.String("request_id", l.ID.String()),
		zap.String("company_id", tn.CompanyID),
		zap.String("employee_id", employeeID),
		zap.String("status", l.Status),
		zap.Int("duration", duration),
	)

	if autoApproved != nil {
		requestID := l.ID.String()
		s.notifier.BalanceChanged(ctx, events.LeaveBalanceChangedEvent{
			CompanyID:      tn.CompanyID,
			EmployeeID:     employeeID,
			LeaveType:      req.LeaveType,
			Reason:         events.ReasonApproved,
			Amount:         autoApproved.Amount,
			BalanceAfter:   autoApproved.BalanceAfter,
			LeaveRequestID: &requestID,
		})
	}

	return mapToResponse(*l), nil
}

func (s *service) GetAll(ctx context.Context, tn tenant.Context) ([]Response, error) {
	requests, err := s.repo.FindAllByCompany(ctx, tn.CompanyID)
	if err != nil {
		return nil, err
	}

	resp := make([]Response, len(requests))
	for i, l := range requests {
		resp[i] = mapToResponse(l)
	}
	return resp, nil
}

func (s *service) GetByID(ctx context.Context, tn tenant.Context, id string) (Response, error) {
	l, err := s.repo.FindByIDAndCompany(ctx, tn.CompanyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Response{}, leaverequesterrors.ErrRequestNotFound
		}
		return Response{}, err
	}
	return mapToResponse(*l), nil
}

// Approve flips the request to APPROVED and appends the matching usage
// entry in one transaction. A failed append aborts the whole transition;
// the status can never land on APPROVED without its ledger entry.
func (s *service) Approve(ctx context.Context, tn tenant.Context, id string) (Response, error) {
	actorUUID, err := uuid.Parse(tn.UserID)
	if err != nil {
		return Response{}, leaverequesterrors.ErrInvalidActorID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("approve leave request begin tx failed", zap.Error(err))
		return Response{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByIDForUpdate(ctx, tn.CompanyID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, leaverequesterrors.ErrRequestNotFound
		}
		return Response{}, err
	}
	if !isAllowedStatusTransition(l.Status, StatusApproved) {
		s.logger.Warn("approve leave request invalid transition",
			zap.String("request_id", id),
			zap.String("from_status", l.Status),
		)
		return Response{}, leaverequesterrors.ErrInvalidStatusTransition
	}

	l.Status = StatusApproved
	l.ApprovedBy = &actorUUID
	now := time.Now().UTC()
	l.ApprovedAt = &now
	l.RejectionReason = nil

	if err := qtx.UpdateStatus(ctx, l); err != nil {
		s.logger.Error("approve leave request persist failed",
			zap.String("request_id", id),
			zap.Error(err),
		)
		return Response{}, err
	}

	requestID := l.ID.String()
	entry, err := s.ledger.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
		EmployeeID:      l.EmployeeID.String(),
		LeaveType:       l.LeaveType,
		TransactionType: ledger.TypeUsed,
		Amount:          -l.Duration,
		LeaveRequestID:  &requestID,
		Description:     "leave request approved",
		PreventNegative: true,
	})
	if err != nil {
		return Response{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("approve leave request commit failed",
			zap.String("request_id", id),
			zap.Error(err),
		)
		return Response{}, err
	}

	s.logger.Info("leave request approved",
		zap.String("request_id", id),
		zap.String("company_id", tn.CompanyID),
		zap.String("employee_id", l.EmployeeID.String()),
		zap.Int("duration", l.Duration),
		zap.Int("balance_after", entry.BalanceAfter),
	)

	s.notifier.BalanceChanged(ctx, events.LeaveBalanceChangedEvent{
		CompanyID:      tn.CompanyID,
		EmployeeID:     l.EmployeeID.String(),
		LeaveType:      l.LeaveType,
		Reason:         events.ReasonApproved,
		Amount:         entry.Amount,
		BalanceAfter:   entry.BalanceAfter,
		LeaveRequestID: &requestID,
	})

	return mapToResponse(*l), nil
}

// Reject is a status-only transition. No ledger entry is written because
// nothing was ever deducted for a pending request.
func (s *service) Reject(ctx context.Context, tn tenant.Context, id, reason string) (Response, error) {
	if reason == "" {
		return Response{}, leaverequesterrors.ErrRejectionReasonRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("reject leave request begin tx failed", zap.Error(err))
		return Response{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByIDForUpdate(ctx, tn.CompanyID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, leaverequesterrors.ErrRequestNotFound
		}
		return Response{}, err
	}
	if !isAllowedStatusTransition(l.Status, StatusRejected) {
		return Response{}, leaverequesterrors.ErrInvalidStatusTransition
	}

	l.Status = StatusRejected
	l.ApprovedBy = nil
	l.ApprovedAt = nil
	l.RejectionReason = &reason

	if err := qtx.UpdateStatus(ctx, l); err != nil {
		s.logger.Error("reject leave request persist failed",
			zap.String("request_id", id),
			zap.Error(err),
		)
		return Response{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("reject leave request commit failed",
			zap.String("request_id", id),
			zap.Error(err),
		)
		return Response{}, err
	}

	s.logger.Info("leave request rejected",
		zap.String("request_id", id),
		zap.String("company_id", tn.CompanyID),
	)

	return mapToResponse(*l), nil
}

// Cancel restores the days an earlier approval consumed, in the same
// transaction as the status change. The approver fields are kept so the
// record still shows who approved it before cancellation.
func (s *service) Cancel(ctx context.Context, tn tenant.Context, id string) (Response, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("cancel leave request begin tx failed", zap.Error(err))
		return Response{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByIDForUpdate(ctx, tn.CompanyID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, leaverequesterrors.ErrRequestNotFound
		}
		return Response{}, err
	}
	if !isAllowedStatusTransition(l.Status, StatusCancelled) {
		s.logger.Warn("cancel leave request invalid transition",
			zap.String("request_id", id),
			zap.String("from_status", l.Status),
		)
		return Response{}, leaverequesterrors.ErrInvalidStatusTransition
	}

	l.Status = StatusCancelled

	if err := qtx.UpdateStatus(ctx, l); err != nil {
		s.logger.Error("cancel leave request persist failed",
			zap.String("request_id", id),
			zap.Error(err),
		)
		return Response{}, err
	}

	requestID := l.ID.String()
	entry, err := s.ledger.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
		EmployeeID:      l.EmployeeID.String(),
		LeaveType:       l.LeaveType,
		TransactionType: ledger.TypeRestored,
		Amount:          l.Duration,
		LeaveRequestID:  &requestID,
		Description:     "leave request cancelled",
	})
	if err != nil {
		return Response{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("cancel leave request commit failed",
			zap.String("request_id", id),
			zap.Error(err),
		)
		return Response{}, err
	}

	s.logger.Info("leave request cancelled",
		zap.String("request_id", id),
		zap.String("company_id", tn.CompanyID),
		zap.String("employee_id", l.EmployeeID.String()),
		zap.Int("duration", l.Duration),
		zap.Int("balance_after", entry.BalanceAfter),
	)

	s.notifier.BalanceChanged(ctx, events.LeaveBalanceChangedEvent{
		CompanyID:      tn.CompanyID,
		EmployeeID:     l.EmployeeID.String(),
		LeaveType:      l.LeaveType,
		Reason:         events.ReasonCancelled,
		Amount:         entry.Amount,
		BalanceAfter:   entry.BalanceAfter,
		LeaveRequestID: &requestID,
	})

	return mapToResponse(*l), nil
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, leaverequesterrors.ErrInvalidDateFormat
	}
	return t, nil
}

func mapToResponse(l LeaveRequest) Response {
	resp := Response{
		ID:               l.ID.String(),
		CompanyID:        l.CompanyID.String(),
		EmployeeID:       l.EmployeeID.String(),
		LeaveType:        l.LeaveType,
		StartDate:        l.StartDate.Format("2006-01-02"),
		EndDate:          l.EndDate.Format("2006-01-02"),
		Duration:         l.Duration,
		Reason:           l.Reason,
		Status:           l.Status,
		BalanceAtRequest: l.BalanceAtRequest,
		CreatedBy:        l.CreatedBy.String(),
	}
	if l.ApprovedBy != nil {
		v := l.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	if l.ApprovedAt != nil {
		v := l.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &v
	}
	resp.RejectionReason = l.RejectionReason
	return resp
}
