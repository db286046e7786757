package leaverequest

import (
	"go-leave-ledger/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService middleware.RBACService,
	rdb *redis.Client,
) {
	requests := r.Group("/leave-requests")
	requests.Use(
		middleware.AuthMiddleware(),
		middleware.ExtractUserID(),
		middleware.ContextLogger(zap.L()),
		middleware.Idempotency(rdb),
	)
	{
		requests.GET("", middleware.RBACAuthorize(rbacService, "leave", "read"), handler.GetAll)
		requests.GET("/:id", middleware.RBACAuthorize(rbacService, "leave", "read"), handler.GetByID)
		requests.POST("", middleware.RBACAuthorize(rbacService, "leave", "create"), handler.Create)
		requests.POST("/:id/approve", middleware.RBACAuthorize(rbacService, "leave", "decide"), handler.Approve)
		requests.POST("/:id/reject", middleware.RBACAuthorize(rbacService, "leave", "decide"), handler.Reject)
		requests.POST("/:id/cancel", middleware.RBACAuthorize(rbacService, "leave", "cancel"), handler.Cancel)
	}
}
