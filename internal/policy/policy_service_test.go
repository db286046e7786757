package policy_test

import (
	"context"
	"database/sql"
	"testing"

	"go-leave-ledger/internal/events"
	"go-leave-ledger/internal/ledger"
	"go-leave-ledger/internal/policy"
	policyerrors "go-leave-ledger/internal/policy/errors"
	"go-leave-ledger/internal/tenant"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type fakePolicyRepository struct {
	createFn             func(ctx context.Context, p *policy.CustomLeavePolicy) error
	hasActiveCoveringFn  func(ctx context.Context, companyID, leaveType, employeeID string) (bool, error)
	findAllByCompanyFn   func(ctx context.Context, companyID string) ([]policy.CustomLeavePolicy, error)
	findByIDAndCompanyFn func(ctx context.Context, companyID, id string) (*policy.CustomLeavePolicy, error)
	deactivateFn         func(ctx context.Context, companyID, id string) error
	leaveTypeDefaultsFn  func(ctx context.Context, companyID, code string) (policy.TypeDefaults, error)
}

func (f *fakePolicyRepository) WithTx(tx *sql.Tx) policy.Repository { return f }

func (f *fakePolicyRepository) Create(ctx context.Context, p *policy.CustomLeavePolicy) error {
	if f.createFn != nil {
		return f.createFn(ctx, p)
	}
	return nil
}

func (f *fakePolicyRepository) HasActiveCovering(ctx context.Context, companyID, leaveType, employeeID string) (bool, error) {
	if f.hasActiveCoveringFn != nil {
		return f.hasActiveCoveringFn(ctx, companyID, leaveType, employeeID)
	}
	return false, nil
}

func (f *fakePolicyRepository) FindAllByCompany(ctx context.Context, companyID string) ([]policy.CustomLeavePolicy, error) {
	if f.findAllByCompanyFn != nil {
		return f.findAllByCompanyFn(ctx, companyID)
	}
	return nil, nil
}

func (f *fakePolicyRepository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*policy.CustomLeavePolicy, error) {
	if f.findByIDAndCompanyFn != nil {
		return f.findByIDAndCompanyFn(ctx, companyID, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePolicyRepository) Deactivate(ctx context.Context, companyID, id string) error {
	if f.deactivateFn != nil {
		return f.deactivateFn(ctx, companyID, id)
	}
	return nil
}

func (f *fakePolicyRepository) LeaveTypeDefaults(ctx context.Context, companyID, code string) (policy.TypeDefaults, error) {
	if f.leaveTypeDefaultsFn != nil {
		return f.leaveTypeDefaultsFn(ctx, companyID, code)
	}
	return policy.TypeDefaults{DefaultAnnualQuota: 10, IsActive: true}, nil
}

type fakeEmployeeRepository struct {
	belongsFn func(ctx context.Context, companyID, employeeID string) (bool, error)
}

func (f *fakeEmployeeRepository) BelongsToCompany(ctx context.Context, companyID, employeeID string) (bool, error) {
	if f.belongsFn != nil {
		return f.belongsFn(ctx, companyID, employeeID)
	}
	return true, nil
}

type fakeLedgerService struct {
	appends  []ledger.AppendInput
	appendFn func(ctx context.Context, tn tenant.Context, in ledger.AppendInput) (ledger.Entry, error)
}

func (f *fakeLedgerService) WithTx(tx *sql.Tx) ledger.Service { return f }

func (f *fakeLedgerService) Append(ctx context.Context, tn tenant.Context, in ledger.AppendInput) (ledger.Entry, error) {
	if f.appendFn != nil {
		return f.appendFn(ctx, tn, in)
	}
	f.appends = append(f.appends, in)
	return ledger.Entry{
		ID:              uuid.New(),
		EmployeeID:      uuid.MustParse(in.EmployeeID),
		LeaveType:       in.LeaveType,
		TransactionType: in.TransactionType,
		Amount:          in.Amount,
	}, nil
}

func (f *fakeLedgerService) LatestEntry(ctx context.Context, tn tenant.Context, employeeID, leaveType string) (*ledger.Entry, error) {
	return nil, nil
}

type recordingNotifier struct {
	events []events.LeaveBalanceChangedEvent
}

func (r *recordingNotifier) BalanceChanged(ctx context.Context, ev events.LeaveBalanceChangedEvent) {
	r.events = append(r.events, ev)
}

type policyServiceDeps struct {
	db        *sql.DB
	sqlMock   sqlmock.Sqlmock
	service   policy.Service
	repo      *fakePolicyRepository
	employees *fakeEmployeeRepository
	ledger    *fakeLedgerService
	notifier  *recordingNotifier
}

func setupPolicyServiceTest(t *testing.T) *policyServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	repo := &fakePolicyRepository{}
	employees := &fakeEmployeeRepository{}
	ledgerSvc := &fakeLedgerService{}
	notifier := &recordingNotifier{}
	svc := policy.NewService(db, repo, employees, ledgerSvc, notifier)

	return &policyServiceDeps{
		db:        db,
		sqlMock:   sqlMock,
		service:   svc,
		repo:      repo,
		employees: employees,
		ledger:    ledgerSvc,
		notifier:  notifier,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func TestPolicyService_Create(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()
	actorID := uuid.New().String()
	tn := tenant.Context{CompanyID: companyID, UserID: actorID, Role: "hr"}

	t.Run("success appends one adjustment per member", func(t *testing.T) {
		deps := setupPolicyServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		first := uuid.New().String()
		second := uuid.New().String()

		resp, err := deps.service.Create(ctx, tn, policy.CreatePolicyRequest{
			LeaveType:     "ANNUAL",
			EmployeeIDs:   []string{first, second},
			OverrideQuota: 15,
		})

		assert.NoError(t, err)
		assert.True(t, resp.IsActive)
		assert.Equal(t, 15, resp.OverrideQuota)
		assert.ElementsMatch(t, []string{first, second}, resp.EmployeeIDs)

		// Default quota is 10, override is 15, so each member gets a +5
		// adjustment tied to the new policy. The opening balance is pinned
		// to the default: the policy row is already visible inside the
		// transaction, and a member with no prior entries would otherwise
		// open from the override and land above it.
		assert.Len(t, deps.ledger.appends, 2)
		for _, in := range deps.ledger.appends {
			assert.Equal(t, ledger.TypeAdjustment, in.TransactionType)
			assert.Equal(t, 5, in.Amount)
			assert.Equal(t, resp.ID, *in.CustomPolicyID)
			assert.Equal(t, 10, *in.OpeningBalance)
			assert.False(t, in.PreventNegative)
		}

		assert.Len(t, deps.notifier.events, 2)
		assert.Equal(t, events.ReasonAdjusted, deps.notifier.events[0].Reason)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("lowered quota appends a negative adjustment", func(t *testing.T) {
		deps := setupPolicyServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		_, err := deps.service.Create(ctx, tn, policy.CreatePolicyRequest{
			LeaveType:     "ANNUAL",
			EmployeeIDs:   []string{uuid.New().String()},
			OverrideQuota: 7,
		})

		assert.NoError(t, err)
		assert.Len(t, deps.ledger.appends, 1)
		assert.Equal(t, -3, deps.ledger.appends[0].Amount)
	})

	t.Run("negative employee outside the company", func(t *testing.T) {
		deps := setupPolicyServiceTest(t)
		defer deps.db.Close()

		deps.employees.belongsFn = func(ctx context.Context, cid, eid string) (bool, error) {
			return false, nil
		}

		_, err := deps.service.Create(ctx, tn, policy.CreatePolicyRequest{
			LeaveType:     "ANNUAL",
			EmployeeIDs:   []string{uuid.New().String()},
			OverrideQuota: 15,
		})

		assert.ErrorIs(t, err, policyerrors.ErrEmployeeNotInCompany)
		assert.Empty(t, deps.ledger.appends)
	})

	t.Run("negative unknown leave type", func(t *testing.T) {
		deps := setupPolicyServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		deps.repo.leaveTypeDefaultsFn = func(ctx context.Context, cid, code string) (policy.TypeDefaults, error) {
			return policy.TypeDefaults{}, sql.ErrNoRows
		}

		_, err := deps.service.Create(ctx, tn, policy.CreatePolicyRequest{
			LeaveType:     "NOPE",
			EmployeeIDs:   []string{uuid.New().String()},
			OverrideQuota: 15,
		})

		assert.ErrorIs(t, err, policyerrors.ErrLeaveTypeNotFound)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative member already covered by an active policy", func(t *testing.T) {
		deps := setupPolicyServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		deps.repo.hasActiveCoveringFn = func(ctx context.Context, cid, lt, eid string) (bool, error) {
			return true, nil
		}

		_, err := deps.service.Create(ctx, tn, policy.CreatePolicyRequest{
			LeaveType:     "ANNUAL",
			EmployeeIDs:   []string{uuid.New().String()},
			OverrideQuota: 15,
		})

		assert.ErrorIs(t, err, policyerrors.ErrDuplicateActivePolicy)
		assert.Empty(t, deps.ledger.appends)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative invalid employee id", func(t *testing.T) {
		deps := setupPolicyServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Create(ctx, tn, policy.CreatePolicyRequest{
			LeaveType:     "ANNUAL",
			EmployeeIDs:   []string{"not-a-uuid"},
			OverrideQuota: 15,
		})

		assert.ErrorIs(t, err, policyerrors.ErrInvalidEmployeeID)
	})
}

func TestPolicyService_Deactivate(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()
	tn := tenant.Context{CompanyID: companyID, UserID: uuid.New().String(), Role: "hr"}

	activePolicy := func() *policy.CustomLeavePolicy {
		return &policy.CustomLeavePolicy{
			ID:            uuid.New(),
			CompanyID:     uuid.MustParse(companyID),
			LeaveType:     "ANNUAL",
			OverrideQuota: 15,
			IsActive:      true,
			CreatedBy:     uuid.New(),
		}
	}

	t.Run("success flips the policy off", func(t *testing.T) {
		deps := setupPolicyServiceTest(t)
		defer deps.db.Close()

		p := activePolicy()
		deps.repo.findByIDAndCompanyFn = func(ctx context.Context, cid, id string) (*policy.CustomLeavePolicy, error) {
			return p, nil
		}
		deactivated := false
		deps.repo.deactivateFn = func(ctx context.Context, cid, id string) error {
			deactivated = true
			return nil
		}

		resp, err := deps.service.Deactivate(ctx, tn, p.ID.String())

		assert.NoError(t, err)
		assert.True(t, deactivated)
		assert.False(t, resp.IsActive)
		// Deactivation never touches the ledger.
		assert.Empty(t, deps.ledger.appends)
	})

	t.Run("negative already inactive", func(t *testing.T) {
		deps := setupPolicyServiceTest(t)
		defer deps.db.Close()

		p := activePolicy()
		p.IsActive = false
		deps.repo.findByIDAndCompanyFn = func(ctx context.Context, cid, id string) (*policy.CustomLeavePolicy, error) {
			return p, nil
		}

		_, err := deps.service.Deactivate(ctx, tn, p.ID.String())

		assert.ErrorIs(t, err, policyerrors.ErrPolicyAlreadyInactive)
	})

	t.Run("negative not found", func(t *testing.T) {
		deps := setupPolicyServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Deactivate(ctx, tn, uuid.New().String())

		assert.ErrorIs(t, err, policyerrors.ErrPolicyNotFound)
	})
}
