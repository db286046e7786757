package ledger_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-leave-ledger/internal/ledger"
	"go-leave-ledger/internal/shared/response"
	"go-leave-ledger/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeBalanceResolver struct {
	getBalanceFn  func(ctx context.Context, tn tenant.Context, employeeID, leaveType string) (ledger.Balance, error)
	getBalancesFn func(ctx context.Context, tn tenant.Context, employeeID string) ([]ledger.Balance, error)
}

func (f *fakeBalanceResolver) GetBalance(ctx context.Context, tn tenant.Context, employeeID, leaveType string) (ledger.Balance, error) {
	if f.getBalanceFn != nil {
		return f.getBalanceFn(ctx, tn, employeeID, leaveType)
	}
	return ledger.Balance{}, nil
}

func (f *fakeBalanceResolver) GetBalances(ctx context.Context, tn tenant.Context, employeeID string) ([]ledger.Balance, error) {
	if f.getBalancesFn != nil {
		return f.getBalancesFn(ctx, tn, employeeID)
	}
	return nil, nil
}

type fakeEmployeeChecker struct {
	belongsFn func(ctx context.Context, companyID, employeeID string) (bool, error)
}

func (f *fakeEmployeeChecker) BelongsToCompany(ctx context.Context, companyID, employeeID string) (bool, error) {
	if f.belongsFn != nil {
		return f.belongsFn(ctx, companyID, employeeID)
	}
	return true, nil
}

func newBalanceTestContext(t *testing.T, target, companyID, employeeID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Set("company_id", companyID)
	c.Set("employee_id", employeeID)
	c.Set("user_id_validated", uuid.New().String())
	c.Set("role", "employee")
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.ApiEnvelope {
	t.Helper()
	var env response.ApiEnvelope
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestBalanceHandler_GetBalances(t *testing.T) {
	companyID := uuid.New().String()
	employeeID := uuid.New().String()

	sample := []ledger.Balance{
		{LeaveType: "ANNUAL", Total: 15, Used: 2, Remaining: 13},
		{LeaveType: "SICK", Total: 10, Used: 0, Remaining: 10},
	}
	payload, err := json.Marshal(sample)
	assert.NoError(t, err)
	cacheKey := fmt.Sprintf("balances:%s:%s", companyID, employeeID)

	t.Run("cache miss resolves and fills the cache", func(t *testing.T) {
		rdb, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet(cacheKey).RedisNil()
		redisMock.ExpectSet(cacheKey, payload, 30*time.Second).SetVal("OK")

		resolver := &fakeBalanceResolver{
			getBalancesFn: func(ctx context.Context, tn tenant.Context, eid string) ([]ledger.Balance, error) {
				assert.Equal(t, employeeID, eid)
				return sample, nil
			},
		}
		handler := ledger.NewBalanceHandler(resolver, &fakeEmployeeChecker{}, rdb)

		c, w := newBalanceTestContext(t, "/leave-balances", companyID, employeeID)
		handler.GetBalances(c)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		assert.True(t, env.Ok)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache hit never touches the resolver", func(t *testing.T) {
		rdb, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet(cacheKey).SetVal(string(payload))

		resolver := &fakeBalanceResolver{
			getBalancesFn: func(ctx context.Context, tn tenant.Context, eid string) ([]ledger.Balance, error) {
				t.Fatal("resolver must not run on a cache hit")
				return nil, nil
			},
		}
		handler := ledger.NewBalanceHandler(resolver, &fakeEmployeeChecker{}, rdb)

		c, w := newBalanceTestContext(t, "/leave-balances", companyID, employeeID)
		handler.GetBalances(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("single type lookup bypasses the cache", func(t *testing.T) {
		rdb, redisMock := redismock.NewClientMock()

		resolver := &fakeBalanceResolver{
			getBalanceFn: func(ctx context.Context, tn tenant.Context, eid, lt string) (ledger.Balance, error) {
				assert.Equal(t, "ANNUAL", lt)
				return sample[0], nil
			},
		}
		handler := ledger.NewBalanceHandler(resolver, &fakeEmployeeChecker{}, rdb)

		c, w := newBalanceTestContext(t, "/leave-balances?leave_type=ANNUAL", companyID, employeeID)
		handler.GetBalances(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("negative foreign employee outside the company", func(t *testing.T) {
		rdb, _ := redismock.NewClientMock()

		employees := &fakeEmployeeChecker{
			belongsFn: func(ctx context.Context, cid, eid string) (bool, error) {
				return false, nil
			},
		}
		handler := ledger.NewBalanceHandler(&fakeBalanceResolver{}, employees, rdb)

		target := "/leave-balances?employee_id=" + uuid.New().String()
		c, w := newBalanceTestContext(t, target, companyID, employeeID)
		handler.GetBalances(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Ok)
	})
}
