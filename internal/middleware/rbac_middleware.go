package middleware

import (
	"net/http"

	"go-leave-ledger/internal/domain"

	"github.com/gin-gonic/gin"
)

type ContextKey string

const (
	ContextCompanyID ContextKey = "company_id"
	ContextRole      ContextKey = "role"
)

// RBACService is a local interface; anything with a matching Enforce method
// satisfies it, which keeps this package free of the casbin wiring.
type RBACService interface {
	Enforce(req domain.EnforceRequest) (bool, error)
}

func RBACAuthorize(service RBACService, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok1 := c.Get(string(ContextRole))
		companyID, ok2 := c.Get(string(ContextCompanyID))

		if !ok1 || !ok2 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
			c.Abort()
			return
		}

		req := domain.EnforceRequest{
			Role:      role.(string),
			CompanyID: companyID.(string),
			Resource:  resource,
			Action:    action,
		}

		allowed, err := service.Enforce(req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "forbidden",
				"message":  "You do not have permission to access this resource",
				"required": resource + ":" + action,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
