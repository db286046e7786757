package events

import "time"

const LeaveBalanceChangedTopic = "hr.leave.balance.v1"

const (
	ReasonApproved   = "REQUEST_APPROVED"
	ReasonCancelled  = "REQUEST_CANCELLED"
	ReasonAdjusted   = "POLICY_ADJUSTMENT"
	ReasonBackfilled = "LEDGER_BACKFILL"
)

// LeaveBalanceChangedEvent tells downstream consumers (notifications, chat)
// that an employee's leave balance moved. Delivery is best-effort and never
// part of the transaction that moved the balance.
type LeaveBalanceChangedEvent struct {
	CompanyID      string    `json:"company_id"`
	EmployeeID     string    `json:"employee_id"`
	LeaveType      string    `json:"leave_type"`
	Reason         string    `json:"reason"`
	Amount         int       `json:"amount"`
	BalanceAfter   int       `json:"balance_after"`
	LeaveRequestID *string   `json:"leave_request_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
