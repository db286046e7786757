package reconcile

import (
	"context"
	"time"

	"go-leave-ledger/internal/tenant"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DecidedRequest is the slice of a leave request the backfill needs. A
// cancelled request was necessarily approved first, so it is expected to
// carry both a usage and a restore entry.
type DecidedRequest struct {
	ID         uuid.UUID
	EmployeeID uuid.UUID
	LeaveType  string
	Duration   int
	Status     string
	DecidedAt  time.Time
}

//go:generate mockgen -source=reconcile_repo.go -destination=mock/reconcile_repo_mock.go -package=mock
type Repository interface {
	// ListDecided returns approved and cancelled requests for one company,
	// optionally narrowed to one employee, oldest first.
	ListDecided(ctx context.Context, companyID, employeeID string) ([]DecidedRequest, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListDecided(ctx context.Context, companyID, employeeID string) ([]DecidedRequest, error) {
	// Table() bypasses gorm's soft-delete scoping, so the filter is explicit.
	q := r.db.WithContext(ctx).
		Table("leave_requests").
		Select("id, employee_id, leave_type, duration, status, COALESCE(approved_at, updated_at) AS decided_at").
		Scopes(tenant.Scope(companyID)).
		Where("status IN ?", []string{"APPROVED", "CANCELLED"}).
		Where("deleted_at IS NULL").
		Order("created_at ASC")

	if employeeID != "" {
		q = q.Where("employee_id = ?", employeeID)
	}

	var requests []DecidedRequest
	err := q.Scan(&requests).Error
	return requests, err
}
