package policy

type CreatePolicyRequest struct {
	LeaveType     string   `json:"leave_type" binding:"required,max=30"`
	EmployeeIDs   []string `json:"employee_ids" binding:"required,min=1,dive,uuid"`
	OverrideQuota int      `json:"override_quota" binding:"gte=0"`
}

type PolicyResponse struct {
	ID            string   `json:"id"`
	CompanyID     string   `json:"company_id"`
	LeaveType     string   `json:"leave_type"`
	OverrideQuota int      `json:"override_quota"`
	IsActive      bool     `json:"is_active"`
	EmployeeIDs   []string `json:"employee_ids"`
	CreatedBy     string   `json:"created_by"`
}
