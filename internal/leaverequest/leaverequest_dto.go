package leaverequest

type CreateRequest struct {
	EmployeeID string `json:"employee_id" binding:"omitempty,uuid"`
	LeaveType  string `json:"leave_type" binding:"required,max=30"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
	Reason     string `json:"reason"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type Response struct {
	ID               string  `json:"id"`
	CompanyID        string  `json:"company_id"`
	EmployeeID       string  `json:"employee_id"`
	LeaveType        string  `json:"leave_type"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	Duration         int     `json:"duration"`
	Reason           string  `json:"reason"`
	Status           string  `json:"status"`
	BalanceAtRequest int     `json:"balance_at_request"`
	CreatedBy        string  `json:"created_by"`
	ApprovedBy       *string `json:"approved_by,omitempty"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
	RejectionReason  *string `json:"rejection_reason,omitempty"`
}
