package policy

import (
	"context"
	"database/sql"
	"errors"

	"go-leave-ledger/internal/employee"
	"go-leave-ledger/internal/events"
	"go-leave-ledger/internal/ledger"
	"go-leave-ledger/internal/notification"
	policyerrors "go-leave-ledger/internal/policy/errors"
	"go-leave-ledger/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -source=policy_service.go -destination=mock/policy_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, tn tenant.Context, req CreatePolicyRequest) (PolicyResponse, error)
	GetAll(ctx context.Context, tn tenant.Context) ([]PolicyResponse, error)
	GetByID(ctx context.Context, tn tenant.Context, id string) (PolicyResponse, error)
	Deactivate(ctx context.Context, tn tenant.Context, id string) (PolicyResponse, error)
}

type service struct {
	db        *sql.DB
	repo      Repository
	employees employee.Repository
	ledger    ledger.Service
	notifier  notification.Notifier
	logger    *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	employees employee.Repository,
	ledgerSvc ledger.Service,
	notifier notification.Notifier,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("policy.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("policy.service")
	}
	return &service{db: db, repo: repo, employees: employees, ledger: ledgerSvc, notifier: notifier, logger: l}
}

// Create writes the policy, its members, and one CUSTOM_ADJUSTMENT ledger
// entry per covered employee in a single transaction. The adjustment shifts
// the running balance to the new total without rewriting history.
func (s *service) Create(ctx context.Context, tn tenant.Context, req CreatePolicyRequest) (PolicyResponse, error) {
	s.logger.Debug("create policy requested",
		zap.String("company_id", tn.CompanyID),
		zap.String("leave_type", req.LeaveType),
		zap.Int("override_quota", req.OverrideQuota),
		zap.Int("employees", len(req.EmployeeIDs)),
	)

	companyUUID, err := uuid.Parse(tn.CompanyID)
	if err != nil {
		return PolicyResponse{}, policyerrors.ErrInvalidCompanyID
	}
	actorUUID, err := uuid.Parse(tn.UserID)
	if err != nil {
		return PolicyResponse{}, policyerrors.ErrInvalidActorID
	}

	employeeUUIDs := make([]uuid.UUID, len(req.EmployeeIDs))
	for i, id := range req.EmployeeIDs {
		eu, err := uuid.Parse(id)
		if err != nil {
			return PolicyResponse{}, policyerrors.ErrInvalidEmployeeID
		}
		employeeUUIDs[i] = eu
	}

	for _, id := range req.EmployeeIDs {
		belongs, err := s.employees.BelongsToCompany(ctx, tn.CompanyID, id)
		if err != nil {
			return PolicyResponse{}, err
		}
		if !belongs {
			return PolicyResponse{}, policyerrors.ErrEmployeeNotInCompany
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("create policy begin tx failed", zap.Error(err))
		return PolicyResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	ledgerTx := s.ledger.WithTx(tx)

	defaults, err := qtx.LeaveTypeDefaults(ctx, tn.CompanyID, req.LeaveType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PolicyResponse{}, policyerrors.ErrLeaveTypeNotFound
		}
		return PolicyResponse{}, err
	}

	// Conflict check runs inside the transaction so two concurrent creates
	// for the same pair cannot both pass.
	for _, id := range req.EmployeeIDs {
		covered, err := qtx.HasActiveCovering(ctx, tn.CompanyID, req.LeaveType, id)
		if err != nil {
			return PolicyResponse{}, err
		}
		if covered {
			s.logger.Warn("create policy conflict",
				zap.String("company_id", tn.CompanyID),
				zap.String("leave_type", req.LeaveType),
				zap.String("employee_id", id),
			)
			return PolicyResponse{}, policyerrors.ErrDuplicateActivePolicy
		}
	}

	p := &CustomLeavePolicy{
		ID:            uuid.New(),
		CompanyID:     companyUUID,
		LeaveType:     req.LeaveType,
		OverrideQuota: req.OverrideQuota,
		IsActive:      true,
		CreatedBy:     actorUUID,
	}
	for _, eu := range employeeUUIDs {
		p.Members = append(p.Members, PolicyMember{PolicyID: p.ID, EmployeeID: eu})
	}

	if err := qtx.Create(ctx, p); err != nil {
		s.logger.Error("create policy persist failed", zap.Error(err))
		return PolicyResponse{}, err
	}

	// No active policy covers these employees (checked above), so the
	// current effective quota is the type default for every member. The
	// default is also pinned as the opening balance: the policy row is
	// already visible inside this transaction, so the effective quota
	// would otherwise include the override before the adjustment lands.
	delta := req.OverrideQuota - defaults.DefaultAnnualQuota
	openingBalance := defaults.DefaultAnnualQuota
	policyID := p.ID.String()
	appended := make([]ledger.Entry, 0, len(req.EmployeeIDs))
	for _, id := range req.EmployeeIDs {
		entry, err := ledgerTx.Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      id,
			LeaveType:       req.LeaveType,
			TransactionType: ledger.TypeAdjustment,
			Amount:          delta,
			CustomPolicyID:  &policyID,
			OpeningBalance:  &openingBalance,
			Description:     "custom policy quota override",
		})
		if err != nil {
			s.logger.Error("policy adjustment append failed",
				zap.String("policy_id", policyID),
				zap.String("employee_id", id),
				zap.Error(err),
			)
			return PolicyResponse{}, err
		}
		appended = append(appended, entry)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("create policy commit failed", zap.Error(err))
		return PolicyResponse{}, err
	}

	s.logger.Info("custom policy created",
		zap.String("policy_id", policyID),
		zap.String("company_id", tn.CompanyID),
		zap.String("leave_type", req.LeaveType),
		zap.Int("override_quota", req.OverrideQuota),
		zap.Int("members", len(req.EmployeeIDs)),
	)

	for _, entry := range appended {
		s.notifier.BalanceChanged(ctx, events.LeaveBalanceChangedEvent{
			CompanyID:    tn.CompanyID,
			EmployeeID:   entry.EmployeeID.String(),
			LeaveType:    entry.LeaveType,
			Reason:       events.ReasonAdjusted,
			Amount:       entry.Amount,
			BalanceAfter: entry.BalanceAfter,
		})
	}

	return mapToResponse(*p), nil
}

func (s *service) GetAll(ctx context.Context, tn tenant.Context) ([]PolicyResponse, error) {
	policies, err := s.repo.FindAllByCompany(ctx, tn.CompanyID)
	if err != nil {
		return nil, err
	}

	resp := make([]PolicyResponse, len(policies))
	for i, p := range policies {
		resp[i] = mapToResponse(p)
	}
	return resp, nil
}

func (s *service) GetByID(ctx context.Context, tn tenant.Context, id string) (PolicyResponse, error) {
	p, err := s.repo.FindByIDAndCompany(ctx, tn.CompanyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PolicyResponse{}, policyerrors.ErrPolicyNotFound
		}
		return PolicyResponse{}, err
	}
	return mapToResponse(*p), nil
}

// Deactivate flips the policy off for future quota resolution only. Past
// adjustment entries stay in the ledger untouched; reversing them would
// rewrite history the balances were computed from.
func (s *service) Deactivate(ctx context.Context, tn tenant.Context, id string) (PolicyResponse, error) {
	p, err := s.repo.FindByIDAndCompany(ctx, tn.CompanyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PolicyResponse{}, policyerrors.ErrPolicyNotFound
		}
		return PolicyResponse{}, err
	}
	if !p.IsActive {
		return PolicyResponse{}, policyerrors.ErrPolicyAlreadyInactive
	}

	if err := s.repo.Deactivate(ctx, tn.CompanyID, id); err != nil {
		s.logger.Error("deactivate policy failed", zap.String("policy_id", id), zap.Error(err))
		return PolicyResponse{}, err
	}

	s.logger.Info("custom policy deactivated",
		zap.String("policy_id", id),
		zap.String("company_id", tn.CompanyID),
	)

	p.IsActive = false
	return mapToResponse(*p), nil
}

func mapToResponse(p CustomLeavePolicy) PolicyResponse {
	resp := PolicyResponse{
		ID:            p.ID.String(),
		CompanyID:     p.CompanyID.String(),
		LeaveType:     p.LeaveType,
		OverrideQuota: p.OverrideQuota,
		IsActive:      p.IsActive,
		CreatedBy:     p.CreatedBy.String(),
	}
	for _, m := range p.Members {
		resp.EmployeeIDs = append(resp.EmployeeIDs, m.EmployeeID.String())
	}
	return resp
}
