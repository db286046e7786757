package leaverequest

import (
	"context"
	"database/sql"
	"time"

	"go-leave-ledger/internal/tenant"

	"gorm.io/gorm"
)

// TypeRules is the subset of the leave type registry the state machine
// needs: whether requests against the type are accepted at all, and whether
// they wait for an approver.
type TypeRules struct {
	IsActive         bool
	RequiresApproval bool
}

//go:generate mockgen -source=leaverequest_repo.go -destination=mock/leaverequest_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository

	Create(ctx context.Context, l *LeaveRequest) error
	FindByIDForUpdate(ctx context.Context, companyID, id string) (*LeaveRequest, error)
	UpdateStatus(ctx context.Context, l *LeaveRequest) error

	FindAllByCompany(ctx context.Context, companyID string) ([]LeaveRequest, error)
	FindByIDAndCompany(ctx context.Context, companyID, id string) (*LeaveRequest, error)

	EmployeeBelongsToCompany(ctx context.Context, companyID, employeeID string) (bool, error)
	HasOverlappingPeriod(ctx context.Context, companyID, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error)
	FindLeaveType(ctx context.Context, companyID, code string) (TypeRules, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

func (r *repository) Create(ctx context.Context, l *LeaveRequest) error {
	if r.tx == nil {
		return r.db.WithContext(ctx).Create(l).Error
	}

	query := `
        INSERT INTO leave_requests (
            id, company_id, employee_id, leave_type, start_date, end_date,
            duration, reason, status, balance_at_request, created_by,
            approved_by, approved_at, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
    `
	_, err := r.tx.ExecContext(
		ctx, query,
		l.ID, l.CompanyID, l.EmployeeID, l.LeaveType, l.StartDate, l.EndDate,
		l.Duration, l.Reason, l.Status, l.BalanceAtRequest, l.CreatedBy,
		l.ApprovedBy, l.ApprovedAt,
	)
	return err
}

// FindByIDForUpdate locks the request row for the rest of the transaction,
// so two transitions on the same request serialize on the row, not on luck.
func (r *repository) FindByIDForUpdate(ctx context.Context, companyID, id string) (*LeaveRequest, error) {
	query := `
SELECT
	id, company_id, employee_id, leave_type, start_date, end_date,
	duration, reason, status, balance_at_request, created_by,
	approved_by, approved_at, rejection_reason
FROM leave_requests
WHERE company_id = $1 AND id = $2 AND deleted_at IS NULL
FOR UPDATE
`

	var l LeaveRequest
	var row *sql.Row
	if r.tx != nil {
		row = r.tx.QueryRowContext(ctx, query, companyID, id)
	} else {
		row = r.db.WithContext(ctx).Raw(query, companyID, id).Row()
	}

	err := row.Scan(
		&l.ID, &l.CompanyID, &l.EmployeeID, &l.LeaveType, &l.StartDate, &l.EndDate,
		&l.Duration, &l.Reason, &l.Status, &l.BalanceAtRequest, &l.CreatedBy,
		&l.ApprovedBy, &l.ApprovedAt, &l.RejectionReason,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) UpdateStatus(ctx context.Context, l *LeaveRequest) error {
	if r.tx == nil {
		return r.db.WithContext(ctx).Save(l).Error
	}

	query := `
UPDATE leave_requests
SET
	status = $3,
	approved_by = $4,
	approved_at = $5,
	rejection_reason = $6,
	updated_at = now()
WHERE company_id = $1 AND id = $2 AND deleted_at IS NULL
`
	_, err := r.tx.ExecContext(
		ctx, query,
		l.CompanyID, l.ID, l.Status, l.ApprovedBy, l.ApprovedAt, l.RejectionReason,
	)
	return err
}

func (r *repository) FindAllByCompany(ctx context.Context, companyID string) ([]LeaveRequest, error) {
	var requests []LeaveRequest
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Order("start_date DESC").
		Find(&requests).Error
	return requests, err
}

func (r *repository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*LeaveRequest, error) {
	var l LeaveRequest
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		First(&l, "id = ?", id).Error
	return &l, err
}

func (r *repository) EmployeeBelongsToCompany(ctx context.Context, companyID, employeeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("employees").
		Where("id = ?", employeeID).
		Where("company_id = ?", companyID).
		Where("deleted_at IS NULL").
		Count(&count).Error
	return count > 0, err
}

// HasOverlappingPeriod ignores rejected and cancelled requests; a denied or
// withdrawn period does not block a new request for the same dates.
func (r *repository) HasOverlappingPeriod(ctx context.Context, companyID, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error) {
	db := r.db.WithContext(ctx).
		Model(&LeaveRequest{}).
		Where("company_id = ?", companyID).
		Where("employee_id = ?", employeeID).
		Where("status NOT IN ?", []string{StatusRejected, StatusCancelled}).
		Where("NOT (end_date < ? OR start_date > ?)", startDate, endDate)

	if excludeID != nil && *excludeID != "" {
		db = db.Where("id <> ?", *excludeID)
	}

	var count int64
	err := db.Count(&count).Error
	return count > 0, err
}

func (r *repository) FindLeaveType(ctx context.Context, companyID, code string) (TypeRules, error) {
	query := `
SELECT is_active, requires_approval
FROM leave_types
WHERE company_id = $1 AND code = $2 AND deleted_at IS NULL
`

	var rules TypeRules
	if r.tx != nil {
		err := r.tx.QueryRowContext(ctx, query, companyID, code).Scan(&rules.IsActive, &rules.RequiresApproval)
		return rules, err
	}

	row := r.db.WithContext(ctx).Raw(query, companyID, code).Row()
	err := row.Scan(&rules.IsActive, &rules.RequiresApproval)
	return rules, err
}
