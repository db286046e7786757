package ledger_test

import (
	"context"
	"database/sql"
	"testing"

	"go-leave-ledger/internal/ledger"
	ledgererrors "go-leave-ledger/internal/ledger/errors"
	"go-leave-ledger/internal/shared/sequence"
	"go-leave-ledger/internal/tenant"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeLedgerRepository struct {
	insertFn             func(ctx context.Context, e *ledger.Entry) error
	latestEntryFn        func(ctx context.Context, companyID, employeeID, leaveType string) (*ledger.Entry, error)
	hasEntryForRequestFn func(ctx context.Context, companyID, leaveRequestID, transactionType string) (bool, error)
	lockBalanceFn        func(ctx context.Context, companyID, employeeID, leaveType string) (int, error)
	addUsedFn            func(ctx context.Context, companyID, employeeID, leaveType string, delta int) error
	cachedUsedFn         func(ctx context.Context, companyID, employeeID, leaveType string) (int, bool, error)
	effectiveQuotaFn     func(ctx context.Context, companyID, employeeID, leaveType string) (ledger.Quota, error)
	listLeaveTypeCodesFn func(ctx context.Context, companyID string) ([]string, error)
}

func (f *fakeLedgerRepository) WithTx(tx *sql.Tx) ledger.Repository { return f }

func (f *fakeLedgerRepository) Insert(ctx context.Context, e *ledger.Entry) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, e)
	}
	return nil
}

func (f *fakeLedgerRepository) LatestEntry(ctx context.Context, companyID, employeeID, leaveType string) (*ledger.Entry, error) {
	if f.latestEntryFn != nil {
		return f.latestEntryFn(ctx, companyID, employeeID, leaveType)
	}
	return nil, nil
}

func (f *fakeLedgerRepository) HasEntryForRequest(ctx context.Context, companyID, leaveRequestID, transactionType string) (bool, error) {
	if f.hasEntryForRequestFn != nil {
		return f.hasEntryForRequestFn(ctx, companyID, leaveRequestID, transactionType)
	}
	return false, nil
}

func (f *fakeLedgerRepository) LockBalance(ctx context.Context, companyID, employeeID, leaveType string) (int, error) {
	if f.lockBalanceFn != nil {
		return f.lockBalanceFn(ctx, companyID, employeeID, leaveType)
	}
	return 0, nil
}

func (f *fakeLedgerRepository) AddUsed(ctx context.Context, companyID, employeeID, leaveType string, delta int) error {
	if f.addUsedFn != nil {
		return f.addUsedFn(ctx, companyID, employeeID, leaveType, delta)
	}
	return nil
}

func (f *fakeLedgerRepository) CachedUsed(ctx context.Context, companyID, employeeID, leaveType string) (int, bool, error) {
	if f.cachedUsedFn != nil {
		return f.cachedUsedFn(ctx, companyID, employeeID, leaveType)
	}
	return 0, false, nil
}

func (f *fakeLedgerRepository) EffectiveQuota(ctx context.Context, companyID, employeeID, leaveType string) (ledger.Quota, error) {
	if f.effectiveQuotaFn != nil {
		return f.effectiveQuotaFn(ctx, companyID, employeeID, leaveType)
	}
	return ledger.Quota{}, nil
}

func (f *fakeLedgerRepository) ListLeaveTypeCodes(ctx context.Context, companyID string) ([]string, error) {
	if f.listLeaveTypeCodesFn != nil {
		return f.listLeaveTypeCodesFn(ctx, companyID)
	}
	return nil, nil
}

type fakeSequenceRepository struct {
	next int64
}

func (f *fakeSequenceRepository) WithTx(tx *sql.Tx) sequence.Repository { return f }

func (f *fakeSequenceRepository) NextValue(ctx context.Context, companyID, counterType string) (int64, error) {
	f.next++
	return f.next, nil
}

type ledgerServiceDeps struct {
	db      *sql.DB
	sqlMock sqlmock.Sqlmock
	service ledger.Service
	repo    *fakeLedgerRepository
	seq     *fakeSequenceRepository
}

func setupLedgerServiceTest(t *testing.T) *ledgerServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	repo := &fakeLedgerRepository{}
	seq := &fakeSequenceRepository{}
	svc := ledger.NewService(repo, seq)

	return &ledgerServiceDeps{
		db:      db,
		sqlMock: sqlMock,
		service: svc,
		repo:    repo,
		seq:     seq,
	}
}

func beginTestTx(t *testing.T, deps *ledgerServiceDeps) *sql.Tx {
	t.Helper()
	deps.sqlMock.ExpectBegin()
	tx, err := deps.db.BeginTx(context.Background(), nil)
	assert.NoError(t, err)
	return tx
}

func TestLedgerService_Append(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	tn := tenant.Context{CompanyID: companyID}

	t.Run("refuses to run outside a transaction", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeUsed,
			Amount:          -1,
		})

		assert.ErrorIs(t, err, ledgererrors.ErrAppendOutsideTransaction)
	})

	t.Run("first entry opens from the effective quota", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		deps.repo.effectiveQuotaFn = func(ctx context.Context, cid, eid, lt string) (ledger.Quota, error) {
			assert.Equal(t, companyID, cid)
			assert.Equal(t, employeeID, eid)
			assert.Equal(t, "ANNUAL", lt)
			return ledger.Quota{Total: 15}, nil
		}
		var inserted *ledger.Entry
		deps.repo.insertFn = func(ctx context.Context, e *ledger.Entry) error {
			inserted = e
			return nil
		}
		var usedDelta int
		deps.repo.addUsedFn = func(ctx context.Context, cid, eid, lt string, delta int) error {
			usedDelta = delta
			return nil
		}

		tx := beginTestTx(t, deps)
		entry, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeUsed,
			Amount:          -1,
			PreventNegative: true,
		})

		assert.NoError(t, err)
		assert.NotNil(t, inserted)
		assert.Equal(t, 15, entry.BalanceBefore)
		assert.Equal(t, 14, entry.BalanceAfter)
		assert.Equal(t, int64(1), entry.Sequence)
		assert.Equal(t, 1, usedDelta)
	})

	t.Run("opening balance pins the base for a first entry", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		// A quota-changing caller already made its change visible inside
		// the transaction; consulting the effective quota here would count
		// the change twice.
		deps.repo.effectiveQuotaFn = func(ctx context.Context, cid, eid, lt string) (ledger.Quota, error) {
			t.Fatal("effective quota must not be consulted when the opening balance is pinned")
			return ledger.Quota{}, nil
		}

		openingBalance := 10
		tx := beginTestTx(t, deps)
		entry, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeAdjustment,
			Amount:          5,
			OpeningBalance:  &openingBalance,
		})

		assert.NoError(t, err)
		assert.Equal(t, 10, entry.BalanceBefore)
		assert.Equal(t, 15, entry.BalanceAfter)
	})

	t.Run("existing history wins over a pinned opening balance", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		deps.repo.latestEntryFn = func(ctx context.Context, cid, eid, lt string) (*ledger.Entry, error) {
			return &ledger.Entry{BalanceAfter: 8}, nil
		}

		openingBalance := 10
		tx := beginTestTx(t, deps)
		entry, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeAdjustment,
			Amount:          5,
			OpeningBalance:  &openingBalance,
		})

		assert.NoError(t, err)
		assert.Equal(t, 8, entry.BalanceBefore)
		assert.Equal(t, 13, entry.BalanceAfter)
	})

	t.Run("chains from the latest entry", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		deps.repo.latestEntryFn = func(ctx context.Context, cid, eid, lt string) (*ledger.Entry, error) {
			return &ledger.Entry{BalanceAfter: 9, Sequence: 7}, nil
		}

		tx := beginTestTx(t, deps)
		entry, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeRestored,
			Amount:          3,
		})

		assert.NoError(t, err)
		assert.Equal(t, 9, entry.BalanceBefore)
		assert.Equal(t, 12, entry.BalanceAfter)
	})

	t.Run("negative duplicate request entry", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		requestID := uuid.New().String()
		deps.repo.hasEntryForRequestFn = func(ctx context.Context, cid, rid, txType string) (bool, error) {
			assert.Equal(t, requestID, rid)
			assert.Equal(t, ledger.TypeUsed, txType)
			return true, nil
		}

		tx := beginTestTx(t, deps)
		_, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeUsed,
			Amount:          -2,
			LeaveRequestID:  &requestID,
		})

		assert.ErrorIs(t, err, ledgererrors.ErrDuplicateRequestEntry)
	})

	t.Run("negative overdraft prevented", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		deps.repo.latestEntryFn = func(ctx context.Context, cid, eid, lt string) (*ledger.Entry, error) {
			return &ledger.Entry{BalanceAfter: 2}, nil
		}
		deps.repo.insertFn = func(ctx context.Context, e *ledger.Entry) error {
			t.Fatal("insert must not be called when overdraft is prevented")
			return nil
		}

		tx := beginTestTx(t, deps)
		_, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeUsed,
			Amount:          -3,
			PreventNegative: true,
		})

		assert.ErrorIs(t, err, ledgererrors.ErrInsufficientBalance)
	})

	t.Run("overdraft allowed without prevention flag", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		deps.repo.latestEntryFn = func(ctx context.Context, cid, eid, lt string) (*ledger.Entry, error) {
			return &ledger.Entry{BalanceAfter: 2}, nil
		}

		tx := beginTestTx(t, deps)
		entry, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeAdjustment,
			Amount:          -5,
		})

		assert.NoError(t, err)
		assert.Equal(t, -3, entry.BalanceAfter)
	})

	t.Run("negative invalid transaction type", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		tx := beginTestTx(t, deps)
		_, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: "TRANSFER",
			Amount:          1,
		})

		assert.ErrorIs(t, err, ledgererrors.ErrInvalidTransactionType)
	})

	t.Run("negative zero amount usage", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		tx := beginTestTx(t, deps)
		_, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeUsed,
			Amount:          0,
		})

		assert.ErrorIs(t, err, ledgererrors.ErrZeroAmountForUsage)
	})

	t.Run("replaying the history reproduces the final balance", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		var history []ledger.Entry
		deps.repo.effectiveQuotaFn = func(ctx context.Context, cid, eid, lt string) (ledger.Quota, error) {
			return ledger.Quota{Total: 12}, nil
		}
		deps.repo.insertFn = func(ctx context.Context, e *ledger.Entry) error {
			history = append(history, *e)
			return nil
		}
		deps.repo.latestEntryFn = func(ctx context.Context, cid, eid, lt string) (*ledger.Entry, error) {
			if len(history) == 0 {
				return nil, nil
			}
			tip := history[len(history)-1]
			return &tip, nil
		}

		tx := beginTestTx(t, deps)
		svc := deps.service.WithTx(tx)
		steps := []struct {
			txType string
			amount int
		}{
			{ledger.TypeUsed, -1},
			{ledger.TypeRestored, 1},
			{ledger.TypeAdjustment, 5},
			{ledger.TypeUsed, -3},
		}
		for _, step := range steps {
			_, err := svc.Append(ctx, tn, ledger.AppendInput{
				EmployeeID:      employeeID,
				LeaveType:       "ANNUAL",
				TransactionType: step.txType,
				Amount:          step.amount,
			})
			assert.NoError(t, err)
		}

		// Folding amount over the sequence-ordered history must land on the
		// recorded final balance, link by link.
		assert.Len(t, history, len(steps))
		running := history[0].BalanceBefore
		assert.Equal(t, 12, running)
		for i, e := range history {
			assert.Equal(t, int64(i+1), e.Sequence)
			assert.Equal(t, running, e.BalanceBefore)
			running += e.Amount
			assert.Equal(t, running, e.BalanceAfter)
		}
		assert.Equal(t, 14, history[len(history)-1].BalanceAfter)
	})

	t.Run("adjustment does not touch the used cache", func(t *testing.T) {
		deps := setupLedgerServiceTest(t)
		defer deps.db.Close()

		deps.repo.latestEntryFn = func(ctx context.Context, cid, eid, lt string) (*ledger.Entry, error) {
			return &ledger.Entry{BalanceAfter: 8}, nil
		}
		deps.repo.addUsedFn = func(ctx context.Context, cid, eid, lt string, delta int) error {
			t.Fatal("adjustments must not move used days")
			return nil
		}

		tx := beginTestTx(t, deps)
		entry, err := deps.service.WithTx(tx).Append(ctx, tn, ledger.AppendInput{
			EmployeeID:      employeeID,
			LeaveType:       "ANNUAL",
			TransactionType: ledger.TypeAdjustment,
			Amount:          5,
		})

		assert.NoError(t, err)
		assert.Equal(t, 13, entry.BalanceAfter)
	})
}
