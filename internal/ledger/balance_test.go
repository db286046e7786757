package ledger_test

import (
	"context"
	"database/sql"
	"testing"

	"go-leave-ledger/internal/ledger"
	ledgererrors "go-leave-ledger/internal/ledger/errors"
	"go-leave-ledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBalanceResolver_GetBalance(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	tn := tenant.Context{CompanyID: companyID}

	t.Run("no entries yet, balance equals the quota", func(t *testing.T) {
		repo := &fakeLedgerRepository{
			effectiveQuotaFn: func(ctx context.Context, cid, eid, lt string) (ledger.Quota, error) {
				return ledger.Quota{Total: 12, IsPaid: true}, nil
			},
		}
		resolver := ledger.NewResolver(repo)

		b, err := resolver.GetBalance(ctx, tn, employeeID, "ANNUAL")

		assert.NoError(t, err)
		assert.Equal(t, 12, b.Total)
		assert.Equal(t, 0, b.Used)
		assert.Equal(t, 12, b.Remaining)
		assert.True(t, b.IsPaid)
	})

	t.Run("balance comes from the ledger tip", func(t *testing.T) {
		repo := &fakeLedgerRepository{
			effectiveQuotaFn: func(ctx context.Context, cid, eid, lt string) (ledger.Quota, error) {
				return ledger.Quota{Total: 15}, nil
			},
			latestEntryFn: func(ctx context.Context, cid, eid, lt string) (*ledger.Entry, error) {
				return &ledger.Entry{BalanceAfter: 14}, nil
			},
		}
		resolver := ledger.NewResolver(repo)

		b, err := resolver.GetBalance(ctx, tn, employeeID, "ANNUAL")

		assert.NoError(t, err)
		assert.Equal(t, 15, b.Total)
		assert.Equal(t, 1, b.Used)
		assert.Equal(t, 14, b.Remaining)
	})

	t.Run("custom policy override shows up in the total", func(t *testing.T) {
		policyID := uuid.New().String()
		repo := &fakeLedgerRepository{
			effectiveQuotaFn: func(ctx context.Context, cid, eid, lt string) (ledger.Quota, error) {
				return ledger.Quota{Total: 15, HasCustomPolicy: true, CustomPolicyID: &policyID}, nil
			},
			latestEntryFn: func(ctx context.Context, cid, eid, lt string) (*ledger.Entry, error) {
				return &ledger.Entry{BalanceAfter: 13}, nil
			},
		}
		resolver := ledger.NewResolver(repo)

		b, err := resolver.GetBalance(ctx, tn, employeeID, "ANNUAL")

		assert.NoError(t, err)
		assert.Equal(t, 15, b.Total)
		assert.Equal(t, 2, b.Used)
		assert.Equal(t, 13, b.Remaining)
		assert.True(t, b.HasCustomPolicy)
		assert.Equal(t, policyID, *b.CustomPolicyID)
	})

	t.Run("ledger wins over a diverged cache", func(t *testing.T) {
		repo := &fakeLedgerRepository{
			effectiveQuotaFn: func(ctx context.Context, cid, eid, lt string) (ledger.Quota, error) {
				return ledger.Quota{Total: 10}, nil
			},
			latestEntryFn: func(ctx context.Context, cid, eid, lt string) (*ledger.Entry, error) {
				return &ledger.Entry{BalanceAfter: 7}, nil
			},
			cachedUsedFn: func(ctx context.Context, cid, eid, lt string) (int, bool, error) {
				return 5, true, nil
			},
		}
		resolver := ledger.NewResolver(repo)

		b, err := resolver.GetBalance(ctx, tn, employeeID, "ANNUAL")

		assert.NoError(t, err)
		assert.Equal(t, 3, b.Used)
		assert.Equal(t, 7, b.Remaining)
	})

	t.Run("negative unknown leave type", func(t *testing.T) {
		repo := &fakeLedgerRepository{
			effectiveQuotaFn: func(ctx context.Context, cid, eid, lt string) (ledger.Quota, error) {
				return ledger.Quota{}, sql.ErrNoRows
			},
		}
		resolver := ledger.NewResolver(repo)

		_, err := resolver.GetBalance(ctx, tn, employeeID, "NOPE")

		assert.ErrorIs(t, err, ledgererrors.ErrLeaveTypeNotFound)
	})

	t.Run("negative invalid employee id", func(t *testing.T) {
		resolver := ledger.NewResolver(&fakeLedgerRepository{})

		_, err := resolver.GetBalance(ctx, tn, "not-a-uuid", "ANNUAL")

		assert.ErrorIs(t, err, ledgererrors.ErrInvalidEmployeeID)
	})
}

func TestBalanceResolver_GetBalances(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	tn := tenant.Context{CompanyID: companyID}

	t.Run("one balance per registered type", func(t *testing.T) {
		repo := &fakeLedgerRepository{
			listLeaveTypeCodesFn: func(ctx context.Context, cid string) ([]string, error) {
				return []string{"ANNUAL", "SICK"}, nil
			},
			effectiveQuotaFn: func(ctx context.Context, cid, eid, lt string) (ledger.Quota, error) {
				if lt == "ANNUAL" {
					return ledger.Quota{Total: 15}, nil
				}
				return ledger.Quota{Total: 10}, nil
			},
		}
		resolver := ledger.NewResolver(repo)

		balances, err := resolver.GetBalances(ctx, tn, employeeID)

		assert.NoError(t, err)
		assert.Len(t, balances, 2)
		assert.Equal(t, "ANNUAL", balances[0].LeaveType)
		assert.Equal(t, 15, balances[0].Total)
		assert.Equal(t, "SICK", balances[1].LeaveType)
		assert.Equal(t, 10, balances[1].Total)
	})
}
