package reconcile

import (
	"go-leave-ledger/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService middleware.RBACService,
) {
	group := r.Group("/reconcile")
	group.Use(middleware.AuthMiddleware())
	{
		group.POST("", middleware.RBACAuthorize(rbacService, "reconcile", "run"), handler.Run)
	}
}
