package leaverequest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeaveRequest is the workflow side of the leave ledger. Approvals and
// cancellations are the only transitions that write ledger entries, and they
// do so in the same transaction as the status change.
type LeaveRequest struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;index:idx_leave_requests_company_status"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index:idx_leave_requests_employee_dates"`

	LeaveType string    `gorm:"type:varchar(30);not null"`
	StartDate time.Time `gorm:"type:date;not null;index:idx_leave_requests_employee_dates"`
	EndDate   time.Time `gorm:"type:date;not null;index:idx_leave_requests_employee_dates"`
	Duration  int       `gorm:"type:int;not null;default:1"`
	Reason    string    `gorm:"type:text"`

	Status string `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_leave_requests_company_status"`

	// BalanceAtRequest is a point-in-time audit snapshot taken when the
	// request was created. It never feeds balance computation.
	BalanceAtRequest int `gorm:"type:int;not null;default:0"`

	CreatedBy       uuid.UUID  `gorm:"type:uuid;not null"`
	ApprovedBy      *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt      *time.Time
	RejectionReason *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index:idx_leave_requests_deleted_at"`
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}
