package policy

import (
	"context"
	"database/sql"

	"go-leave-ledger/internal/tenant"

	"gorm.io/gorm"
)

// TypeDefaults is what the overlay needs to know about a leave type before
// it can compute an adjustment delta.
type TypeDefaults struct {
	DefaultAnnualQuota int
	IsActive           bool
}

//go:generate mockgen -source=policy_repo.go -destination=mock/policy_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository

	Create(ctx context.Context, p *CustomLeavePolicy) error
	HasActiveCovering(ctx context.Context, companyID, leaveType, employeeID string) (bool, error)

	FindAllByCompany(ctx context.Context, companyID string) ([]CustomLeavePolicy, error)
	FindByIDAndCompany(ctx context.Context, companyID, id string) (*CustomLeavePolicy, error)
	Deactivate(ctx context.Context, companyID, id string) error

	LeaveTypeDefaults(ctx context.Context, companyID, code string) (TypeDefaults, error)
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

// Create inserts the policy and its member set. Inside a transaction the
// writes go through the caller's tx so they commit with the ledger
// adjustments or not at all.
func (r *repository) Create(ctx context.Context, p *CustomLeavePolicy) error {
	if r.tx == nil {
		return r.db.WithContext(ctx).Create(p).Error
	}

	policyQuery := `
        INSERT INTO custom_leave_policies (
            id, company_id, leave_type, override_quota, is_active, created_by, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
    `
	if _, err := r.tx.ExecContext(
		ctx, policyQuery,
		p.ID, p.CompanyID, p.LeaveType, p.OverrideQuota, p.IsActive, p.CreatedBy,
	); err != nil {
		return err
	}

	memberQuery := `
        INSERT INTO custom_leave_policy_members (policy_id, employee_id) VALUES ($1, $2)
    `
	for _, m := range p.Members {
		if _, err := r.tx.ExecContext(ctx, memberQuery, m.PolicyID, m.EmployeeID); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) HasActiveCovering(ctx context.Context, companyID, leaveType, employeeID string) (bool, error) {
	query := `
SELECT EXISTS (
	SELECT 1
	FROM custom_leave_policies p
	JOIN custom_leave_policy_members m ON m.policy_id = p.id
	WHERE p.company_id = $1
		AND p.leave_type = $2
		AND m.employee_id = $3
		AND p.is_active = true
		AND p.deleted_at IS NULL
)
`

	var exists bool
	if r.tx != nil {
		err := r.tx.QueryRowContext(ctx, query, companyID, leaveType, employeeID).Scan(&exists)
		return exists, err
	}
	err := r.db.WithContext(ctx).Raw(query, companyID, leaveType, employeeID).Scan(&exists).Error
	return exists, err
}

func (r *repository) FindAllByCompany(ctx context.Context, companyID string) ([]CustomLeavePolicy, error) {
	var policies []CustomLeavePolicy
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Preload("Members").
		Order("created_at DESC").
		Find(&policies).Error
	return policies, err
}

func (r *repository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*CustomLeavePolicy, error) {
	var p CustomLeavePolicy
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Preload("Members").
		First(&p, "id = ?", id).Error
	return &p, err
}

func (r *repository) Deactivate(ctx context.Context, companyID, id string) error {
	return r.db.WithContext(ctx).
		Model(&CustomLeavePolicy{}).
		Scopes(tenant.Scope(companyID)).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *repository) LeaveTypeDefaults(ctx context.Context, companyID, code string) (TypeDefaults, error) {
	query := `
SELECT default_annual_quota, is_active
FROM leave_types
WHERE company_id = $1 AND code = $2 AND deleted_at IS NULL
`

	var td TypeDefaults
	if r.tx != nil {
		err := r.tx.QueryRowContext(ctx, query, companyID, code).Scan(&td.DefaultAnnualQuota, &td.IsActive)
		return td, err
	}

	row := r.db.WithContext(ctx).Raw(query, companyID, code).Row()
	err := row.Scan(&td.DefaultAnnualQuota, &td.IsActive)
	return td, err
}
