package leavetype

import (
	"go-leave-ledger/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService middleware.RBACService,
) {
	types := r.Group("/leave-types")
	types.Use(middleware.AuthMiddleware())
	{
		types.GET("", middleware.RBACAuthorize(rbacService, "leave-type", "read"), handler.GetAll)
		types.GET("/:code", middleware.RBACAuthorize(rbacService, "leave-type", "read"), handler.GetByCode)
		types.POST("", middleware.RBACAuthorize(rbacService, "leave-type", "manage"), handler.Create)
		types.PUT("/:code", middleware.RBACAuthorize(rbacService, "leave-type", "manage"), handler.Update)
		types.DELETE("/:code", middleware.RBACAuthorize(rbacService, "leave-type", "manage"), handler.Delete)
	}
}
