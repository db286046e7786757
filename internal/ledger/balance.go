package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	ledgererrors "go-leave-ledger/internal/ledger/errors"
	"go-leave-ledger/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Balance is the answer to "how much leave does this employee have left".
// The ledger is the source of truth; Total comes from the registry or an
// active policy override, Balance from the ledger tip, Used is the
// difference.
type Balance struct {
	LeaveType       string  `json:"leave_type"`
	Total           int     `json:"total"`
	Used            int     `json:"used"`
	Remaining       int     `json:"balance"`
	IsPaid          bool    `json:"is_paid"`
	HasCustomPolicy bool    `json:"has_custom_policy"`
	CustomPolicyID  *string `json:"custom_policy_id,omitempty"`
}

//go:generate mockgen -source=balance.go -destination=mock/balance_resolver_mock.go -package=mock
type Resolver interface {
	GetBalance(ctx context.Context, tn tenant.Context, employeeID, leaveType string) (Balance, error)
	GetBalances(ctx context.Context, tn tenant.Context, employeeID string) ([]Balance, error)
}

type resolver struct {
	repo   Repository
	logger *zap.Logger
	group  singleflight.Group
}

func NewResolver(repo Repository, logger ...*zap.Logger) Resolver {
	l := zap.L().Named("ledger.resolver")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("ledger.resolver")
	}
	return &resolver{repo: repo, logger: l}
}

// GetBalance never takes locks; concurrent identical lookups are collapsed
// through singleflight.
func (r *resolver) GetBalance(ctx context.Context, tn tenant.Context, employeeID, leaveType string) (Balance, error) {
	if _, err := uuid.Parse(tn.CompanyID); err != nil {
		return Balance{}, ledgererrors.ErrInvalidCompanyID
	}
	if _, err := uuid.Parse(employeeID); err != nil {
		return Balance{}, ledgererrors.ErrInvalidEmployeeID
	}

	key := fmt.Sprintf("%s:%s:%s", tn.CompanyID, employeeID, leaveType)
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.resolve(ctx, tn.CompanyID, employeeID, leaveType)
	})
	if err != nil {
		return Balance{}, err
	}
	return v.(Balance), nil
}

func (r *resolver) resolve(ctx context.Context, companyID, employeeID, leaveType string) (Balance, error) {
	quota, err := r.repo.EffectiveQuota(ctx, companyID, employeeID, leaveType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ledgererrors.ErrLeaveTypeNotFound
		}
		return Balance{}, err
	}

	latest, err := r.repo.LatestEntry(ctx, companyID, employeeID, leaveType)
	if err != nil {
		return Balance{}, err
	}

	balance := quota.Total
	if latest != nil {
		balance = latest.BalanceAfter
	}
	used := quota.Total - balance

	// The cached counter must track the ledger in lock-step; a divergence
	// is flagged, never silently trusted. The ledger-derived value wins.
	cachedUsed, ok, err := r.repo.CachedUsed(ctx, companyID, employeeID, leaveType)
	if err != nil {
		return Balance{}, err
	}
	if ok && cachedUsed != used {
		r.logger.Warn("balance cache diverged from ledger",
			zap.String("company_id", companyID),
			zap.String("employee_id", employeeID),
			zap.String("leave_type", leaveType),
			zap.Int("ledger_used", used),
			zap.Int("cached_used", cachedUsed),
		)
	}

	return Balance{
		LeaveType:       leaveType,
		Total:           quota.Total,
		Used:            used,
		Remaining:       balance,
		IsPaid:          quota.IsPaid,
		HasCustomPolicy: quota.HasCustomPolicy,
		CustomPolicyID:  quota.CustomPolicyID,
	}, nil
}

func (r *resolver) GetBalances(ctx context.Context, tn tenant.Context, employeeID string) ([]Balance, error) {
	if _, err := uuid.Parse(tn.CompanyID); err != nil {
		return nil, ledgererrors.ErrInvalidCompanyID
	}
	if _, err := uuid.Parse(employeeID); err != nil {
		return nil, ledgererrors.ErrInvalidEmployeeID
	}

	codes, err := r.repo.ListLeaveTypeCodes(ctx, tn.CompanyID)
	if err != nil {
		return nil, err
	}

	balances := make([]Balance, 0, len(codes))
	for _, code := range codes {
		b, err := r.resolve(ctx, tn.CompanyID, employeeID, code)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, nil
}
