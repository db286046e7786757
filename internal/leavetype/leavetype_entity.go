package leavetype

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeaveType is one tenant's leave category. Code is unique per company and
// becomes immutable once ledger entries reference it.
type LeaveType struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_leave_type_code,where:deleted_at IS NULL"`
	Code      string    `gorm:"type:varchar(30);not null;uniqueIndex:uq_leave_type_code,where:deleted_at IS NULL"`
	Name      string    `gorm:"type:varchar(100);not null"`

	DefaultAnnualQuota int  `gorm:"type:int;not null;default:0"`
	IsPaid             bool `gorm:"not null;default:true"`
	RequiresApproval   bool `gorm:"not null;default:true"`
	IsActive           bool `gorm:"not null;default:true"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index:idx_leave_types_deleted_at"`
}

func (LeaveType) TableName() string {
	return "leave_types"
}
