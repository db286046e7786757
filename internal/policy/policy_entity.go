package policy

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomLeavePolicy overrides one leave type's default annual quota for a
// set of employees. At most one active policy may cover a given
// (employee, leave_type) pair.
type CustomLeavePolicy struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index:idx_policies_company"`
	LeaveType string    `gorm:"type:varchar(30);not null"`

	OverrideQuota int  `gorm:"type:int;not null"`
	IsActive      bool `gorm:"not null;default:true"`

	Members []PolicyMember `gorm:"foreignKey:PolicyID"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index:idx_policies_deleted_at"`
}

func (CustomLeavePolicy) TableName() string {
	return "custom_leave_policies"
}

type PolicyMember struct {
	PolicyID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	EmployeeID uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_policy_members_employee"`
}

func (PolicyMember) TableName() string {
	return "custom_leave_policy_members"
}
