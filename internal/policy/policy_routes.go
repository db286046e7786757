package policy

import (
	"go-leave-ledger/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService middleware.RBACService,
) {
	policies := r.Group("/leave-policies")
	policies.Use(
		middleware.AuthMiddleware(),
		middleware.ExtractUserID(),
		middleware.ContextLogger(zap.L()),
	)
	{
		policies.GET("", middleware.RBACAuthorize(rbacService, "leave-policy", "read"), handler.GetAll)
		policies.GET("/:id", middleware.RBACAuthorize(rbacService, "leave-policy", "read"), handler.GetByID)
		policies.POST("", middleware.RBACAuthorize(rbacService, "leave-policy", "manage"), handler.Create)
		policies.POST("/:id/deactivate", middleware.RBACAuthorize(rbacService, "leave-policy", "manage"), handler.Deactivate)
	}
}
