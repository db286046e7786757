package ledger

import (
	"go-leave-ledger/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *BalanceHandler,
	rbacService middleware.RBACService,
) {
	balances := r.Group("/balances")
	balances.Use(middleware.AuthMiddleware())
	{
		balances.GET("", middleware.RBACAuthorize(rbacService, "balance", "read"), handler.GetBalances)
	}
}
