package employee

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Employee carries only what the leave subsystem needs: identity, tenant
// membership, and the link back to the auth user.
type Employee struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID uuid.UUID  `gorm:"type:uuid;not null;index:idx_employees_company"`
	UserID    *uuid.UUID `gorm:"type:uuid;uniqueIndex:uq_employees_user,where:deleted_at IS NULL"`

	FullName string `gorm:"type:varchar(150);not null"`
	IsActive bool   `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index:idx_employees_deleted_at"`
}

func (Employee) TableName() string {
	return "employees"
}
