package leavetype

type CreateLeaveTypeRequest struct {
	Code               string `json:"code" binding:"required,uppercase,max=30"`
	Name               string `json:"name" binding:"required,max=100"`
	DefaultAnnualQuota int    `json:"default_annual_quota" binding:"gte=0"`
	IsPaid             *bool  `json:"is_paid" binding:"required"`
	RequiresApproval   *bool  `json:"requires_approval" binding:"required"`
}

type UpdateLeaveTypeRequest struct {
	Name               string `json:"name" binding:"required,max=100"`
	DefaultAnnualQuota int    `json:"default_annual_quota" binding:"gte=0"`
	IsActive           *bool  `json:"is_active" binding:"required"`
}

type LeaveTypeResponse struct {
	ID                 string `json:"id"`
	CompanyID          string `json:"company_id"`
	Code               string `json:"code"`
	Name               string `json:"name"`
	DefaultAnnualQuota int    `json:"default_annual_quota"`
	IsPaid             bool   `json:"is_paid"`
	RequiresApproval   bool   `json:"requires_approval"`
	IsActive           bool   `json:"is_active"`
}
