package leavetype

import (
	"context"
	"errors"
	"strings"

	leavetypeerrors "go-leave-ledger/internal/leavetype/errors"
	"go-leave-ledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -source=leavetype_service.go -destination=mock/leavetype_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, tn tenant.Context, req CreateLeaveTypeRequest) (LeaveTypeResponse, error)
	GetAll(ctx context.Context, tn tenant.Context) ([]LeaveTypeResponse, error)
	GetByCode(ctx context.Context, tn tenant.Context, code string) (LeaveTypeResponse, error)
	Update(ctx context.Context, tn tenant.Context, code string, req UpdateLeaveTypeRequest) (LeaveTypeResponse, error)
	Delete(ctx context.Context, tn tenant.Context, code string) error
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger ...*zap.Logger) Service {
	l := zap.L().Named("leavetype.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leavetype.service")
	}
	return &service{repo: repo, logger: l}
}

func (s *service) Create(ctx context.Context, tn tenant.Context, req CreateLeaveTypeRequest) (LeaveTypeResponse, error) {
	companyUUID, err := uuid.Parse(tn.CompanyID)
	if err != nil {
		return LeaveTypeResponse{}, leavetypeerrors.ErrInvalidCompanyID
	}
	actorUUID, err := uuid.Parse(tn.UserID)
	if err != nil {
		return LeaveTypeResponse{}, leavetypeerrors.ErrInvalidActorID
	}

	lt := &LeaveType{
		ID:                 uuid.New(),
		CompanyID:          companyUUID,
		Code:               strings.ToUpper(req.Code),
		Name:               req.Name,
		DefaultAnnualQuota: req.DefaultAnnualQuota,
		IsPaid:             *req.IsPaid,
		RequiresApproval:   *req.RequiresApproval,
		IsActive:           true,
		CreatedBy:          actorUUID,
	}

	if err := s.repo.Create(ctx, lt); err != nil {
		mapped := mapRepositoryError(err)
		s.logger.Error("create leave type failed",
			zap.String("company_id", tn.CompanyID),
			zap.String("code", lt.Code),
			zap.Error(err),
		)
		return LeaveTypeResponse{}, mapped
	}

	s.logger.Info("leave type created",
		zap.String("company_id", tn.CompanyID),
		zap.String("code", lt.Code),
		zap.Int("default_annual_quota", lt.DefaultAnnualQuota),
	)
	return mapToResponse(*lt), nil
}

func (s *service) GetAll(ctx context.Context, tn tenant.Context) ([]LeaveTypeResponse, error) {
	types, err := s.repo.FindAllByCompany(ctx, tn.CompanyID)
	if err != nil {
		return nil, err
	}

	resp := make([]LeaveTypeResponse, len(types))
	for i, lt := range types {
		resp[i] = mapToResponse(lt)
	}
	return resp, nil
}

func (s *service) GetByCode(ctx context.Context, tn tenant.Context, code string) (LeaveTypeResponse, error) {
	lt, err := s.repo.FindByCode(ctx, tn.CompanyID, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveTypeResponse{}, leavetypeerrors.ErrLeaveTypeNotFound
		}
		return LeaveTypeResponse{}, err
	}
	return mapToResponse(*lt), nil
}

// Update changes name, quota and active flag. Code is immutable: it is the
// key ledger entries are written against.
func (s *service) Update(ctx context.Context, tn tenant.Context, code string, req UpdateLeaveTypeRequest) (LeaveTypeResponse, error) {
	lt, err := s.repo.FindByCode(ctx, tn.CompanyID, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveTypeResponse{}, leavetypeerrors.ErrLeaveTypeNotFound
		}
		return LeaveTypeResponse{}, err
	}

	lt.Name = req.Name
	lt.DefaultAnnualQuota = req.DefaultAnnualQuota
	lt.IsActive = *req.IsActive

	if err := s.repo.Update(ctx, lt); err != nil {
		s.logger.Error("update leave type failed",
			zap.String("company_id", tn.CompanyID),
			zap.String("code", code),
			zap.Error(err),
		)
		return LeaveTypeResponse{}, err
	}

	s.logger.Info("leave type updated",
		zap.String("company_id", tn.CompanyID),
		zap.String("code", code),
		zap.Bool("is_active", lt.IsActive),
	)
	return mapToResponse(*lt), nil
}

// Delete soft-deletes an unreferenced type. Once ledger entries reference a
// code it can only be deactivated, so history stays resolvable.
func (s *service) Delete(ctx context.Context, tn tenant.Context, code string) error {
	if _, err := s.repo.FindByCode(ctx, tn.CompanyID, code); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return leavetypeerrors.ErrLeaveTypeNotFound
		}
		return err
	}

	referenced, err := s.repo.CodeReferenced(ctx, tn.CompanyID, code)
	if err != nil {
		return err
	}
	if referenced {
		return leavetypeerrors.ErrCodeReferenced
	}

	return s.repo.Delete(ctx, tn.CompanyID, code)
}

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return leavetypeerrors.ErrCodeAlreadyExists
	}
	if strings.Contains(strings.ToLower(err.Error()), "duplicate key value") {
		return leavetypeerrors.ErrCodeAlreadyExists
	}

	return err
}

func mapToResponse(lt LeaveType) LeaveTypeResponse {
	return LeaveTypeResponse{
		ID:                 lt.ID.String(),
		CompanyID:          lt.CompanyID.String(),
		Code:               lt.Code,
		Name:               lt.Name,
		DefaultAnnualQuota: lt.DefaultAnnualQuota,
		IsPaid:             lt.IsPaid,
		RequiresApproval:   lt.RequiresApproval,
		IsActive:           lt.IsActive,
	}
}
