package ledger

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TypeOpening    = "OPENING"
	TypeUsed       = "USED"
	TypeRestored   = "RESTORED"
	TypeAdjustment = "CUSTOM_ADJUSTMENT"
)

// Entry is one immutable, signed transaction against an employee's leave
// balance. Corrections are new entries, never edits; the (transaction_date,
// sequence) pair gives a total order per (employee, leave_type).
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;index:idx_ledger_pair"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index:idx_ledger_pair"`
	LeaveType  string    `gorm:"type:varchar(30);not null;index:idx_ledger_pair"`

	TransactionType string `gorm:"type:varchar(30);not null"`
	Amount          int    `gorm:"type:int;not null"`
	BalanceBefore   int    `gorm:"type:int;not null"`
	BalanceAfter    int    `gorm:"type:int;not null"`

	LeaveRequestID *uuid.UUID `gorm:"type:uuid;index:idx_ledger_request,where:deleted_at IS NULL"`
	CustomPolicyID *uuid.UUID `gorm:"type:uuid"`

	TransactionDate time.Time `gorm:"not null"`
	Sequence        int64     `gorm:"not null"`
	Description     string    `gorm:"type:text"`

	CreatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index:idx_ledger_deleted_at"`
}

func (Entry) TableName() string {
	return "leave_ledger_entries"
}

// Quota is the effective entitlement for one (employee, leave_type) pair:
// the active custom policy override when one exists, else the type default.
type Quota struct {
	Total            int
	IsPaid           bool
	TypeActive       bool
	RequiresApproval bool
	HasCustomPolicy  bool
	CustomPolicyID   *string
}
