package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go-leave-ledger/internal/employee"
	ledgererrors "go-leave-ledger/internal/ledger/errors"
	"go-leave-ledger/internal/shared/apperror"
	"go-leave-ledger/internal/shared/response"
	"go-leave-ledger/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const balanceCacheTTL = 30 * time.Second

type BalanceHandler struct {
	resolver  Resolver
	employees employee.Repository
	rdb       *redis.Client
	logger    *zap.Logger
}

func NewBalanceHandler(resolver Resolver, employees employee.Repository, rdb *redis.Client, logger ...*zap.Logger) *BalanceHandler {
	l := zap.L().Named("ledger.balance_handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("ledger.balance_handler")
	}
	return &BalanceHandler{resolver: resolver, employees: employees, rdb: rdb, logger: l}
}

func (h *BalanceHandler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("balance request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// GetBalances answers the presentation layer's balance lookup: the caller's
// own balances by default, another employee's when employee_id is given
// (route-guarded). leave_type narrows the answer to one type.
func (h *BalanceHandler) GetBalances(c *gin.Context) {
	ctx := c.Request.Context()
	tn := tenant.FromGin(c)

	employeeID := c.Query("employee_id")
	if employeeID == "" {
		employeeID = tn.EmployeeID
	}
	leaveType := c.Query("leave_type")

	// Looking up someone else's balance requires that the target employee
	// actually belongs to the caller's company.
	if employeeID != tn.EmployeeID {
		belongs, err := h.employees.BelongsToCompany(ctx, tn.CompanyID, employeeID)
		if err != nil {
			h.writeServiceError(c, err)
			return
		}
		if !belongs {
			h.writeServiceError(c, ledgererrors.ErrEmployeeNotFound)
			return
		}
	}

	if leaveType != "" {
		b, err := h.resolver.GetBalance(ctx, tn, employeeID, leaveType)
		if err != nil {
			h.writeServiceError(c, err)
			return
		}
		response.Success(c, http.StatusOK, b, nil)
		return
	}

	cacheKey := fmt.Sprintf("balances:%s:%s", tn.CompanyID, employeeID)
	if cached, err := h.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var balances []Balance
		if err := json.Unmarshal([]byte(cached), &balances); err == nil {
			response.Success(c, http.StatusOK, balances, nil)
			return
		}
	}

	balances, err := h.resolver.GetBalances(ctx, tn, employeeID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	if payload, err := json.Marshal(balances); err == nil {
		if err := h.rdb.Set(context.WithoutCancel(ctx), cacheKey, payload, balanceCacheTTL).Err(); err != nil {
			h.logger.Warn("balance cache write failed", zap.Error(err))
		}
	}

	response.Success(c, http.StatusOK, balances, nil)
}
