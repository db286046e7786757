package tenant

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Context is the verified tenant identity for one call. It is built from the
// auth middleware's claims and passed explicitly into every service so
// isolation is enforced at the call boundary, never via ambient state.
type Context struct {
	CompanyID  string
	EmployeeID string
	UserID     string
	Role       string
}

// FromGin assembles the tenant context from the keys the auth middleware set.
func FromGin(c *gin.Context) Context {
	return Context{
		CompanyID:  c.GetString("company_id"),
		EmployeeID: c.GetString("employee_id"),
		UserID:     c.GetString("user_id_validated"),
		Role:       c.GetString("role"),
	}
}

// Scope filters any gorm query down to one company's rows.
func Scope(companyID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("company_id = ?", companyID)
	}
}
