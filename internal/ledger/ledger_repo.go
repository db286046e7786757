package ledger

import (
	"context"
	"database/sql"
)

//go:generate mockgen -source=ledger_repo.go -destination=mock/ledger_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository

	Insert(ctx context.Context, e *Entry) error
	LatestEntry(ctx context.Context, companyID, employeeID, leaveType string) (*Entry, error)
	HasEntryForRequest(ctx context.Context, companyID, leaveRequestID, transactionType string) (bool, error)

	// LockBalance upserts the denormalized balance row for the pair and
	// returns the cached used-days counter. The upsert takes a row lock, so
	// within a transaction it serializes every balance-affecting write for
	// the same (employee, leave_type).
	LockBalance(ctx context.Context, companyID, employeeID, leaveType string) (int, error)
	AddUsed(ctx context.Context, companyID, employeeID, leaveType string, delta int) error
	CachedUsed(ctx context.Context, companyID, employeeID, leaveType string) (int, bool, error)

	EffectiveQuota(ctx context.Context, companyID, employeeID, leaveType string) (Quota, error)
	ListLeaveTypeCodes(ctx context.Context, companyID string) ([]string, error)
}

type repository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

type querier interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func (r *repository) q() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *repository) Insert(ctx context.Context, e *Entry) error {
	query := `
        INSERT INTO leave_ledger_entries (
            id, company_id, employee_id, leave_type,
            transaction_type, amount, balance_before, balance_after,
            leave_request_id, custom_policy_id,
            transaction_date, sequence, description
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `

	_, err := r.q().ExecContext(
		ctx, query,
		e.ID, e.CompanyID, e.EmployeeID, e.LeaveType,
		e.TransactionType, e.Amount, e.BalanceBefore, e.BalanceAfter,
		e.LeaveRequestID, e.CustomPolicyID,
		e.TransactionDate, e.Sequence, e.Description,
	)
	return err
}

func (r *repository) LatestEntry(ctx context.Context, companyID, employeeID, leaveType string) (*Entry, error) {
	query := `
SELECT
	id, company_id, employee_id, leave_type,
	transaction_type, amount, balance_before, balance_after,
	leave_request_id, custom_policy_id,
	transaction_date, sequence, description
FROM leave_ledger_entries
WHERE company_id = $1
	AND employee_id = $2
	AND leave_type = $3
	AND deleted_at IS NULL
ORDER BY transaction_date DESC, sequence DESC
LIMIT 1
`

	var e Entry
	err := r.q().QueryRowContext(ctx, query, companyID, employeeID, leaveType).Scan(
		&e.ID, &e.CompanyID, &e.EmployeeID, &e.LeaveType,
		&e.TransactionType, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
		&e.LeaveRequestID, &e.CustomPolicyID,
		&e.TransactionDate, &e.Sequence, &e.Description,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) HasEntryForRequest(ctx context.Context, companyID, leaveRequestID, transactionType string) (bool, error) {
	query := `
SELECT EXISTS (
	SELECT 1
	FROM leave_ledger_entries
	WHERE company_id = $1
		AND leave_request_id = $2
		AND transaction_type = $3
		AND deleted_at IS NULL
)
`

	var exists bool
	err := r.q().QueryRowContext(ctx, query, companyID, leaveRequestID, transactionType).Scan(&exists)
	return exists, err
}

func (r *repository) LockBalance(ctx context.Context, companyID, employeeID, leaveType string) (int, error) {
	// ON CONFLICT DO UPDATE locks the existing row for the rest of the
	// transaction, which is exactly the per-pair serialization point.
	query := `
INSERT INTO leave_balances (company_id, employee_id, leave_type, used_days, updated_at)
VALUES ($1, $2, $3, 0, now())
ON CONFLICT (company_id, employee_id, leave_type) DO UPDATE
SET updated_at = now()
RETURNING used_days
`

	var used int
	err := r.q().QueryRowContext(ctx, query, companyID, employeeID, leaveType).Scan(&used)
	return used, err
}

func (r *repository) AddUsed(ctx context.Context, companyID, employeeID, leaveType string, delta int) error {
	query := `
UPDATE leave_balances
SET used_days = used_days + $4, updated_at = now()
WHERE company_id = $1 AND employee_id = $2 AND leave_type = $3
`

	_, err := r.q().ExecContext(ctx, query, companyID, employeeID, leaveType, delta)
	return err
}

func (r *repository) CachedUsed(ctx context.Context, companyID, employeeID, leaveType string) (int, bool, error) {
	query := `
SELECT used_days
FROM leave_balances
WHERE company_id = $1 AND employee_id = $2 AND leave_type = $3
`

	var used int
	err := r.q().QueryRowContext(ctx, query, companyID, employeeID, leaveType).Scan(&used)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return used, true, nil
}

func (r *repository) EffectiveQuota(ctx context.Context, companyID, employeeID, leaveType string) (Quota, error) {
	typeQuery := `
SELECT default_annual_quota, is_paid, requires_approval, is_active
FROM leave_types
WHERE company_id = $1 AND code = $2 AND deleted_at IS NULL
`

	var q Quota
	err := r.q().QueryRowContext(ctx, typeQuery, companyID, leaveType).Scan(
		&q.Total, &q.IsPaid, &q.RequiresApproval, &q.TypeActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Quota{}, sql.ErrNoRows
		}
		return Quota{}, err
	}

	overrideQuery := `
SELECT p.id::text, p.override_quota
FROM custom_leave_policies p
JOIN custom_leave_policy_members m ON m.policy_id = p.id
WHERE p.company_id = $1
	AND p.leave_type = $2
	AND m.employee_id = $3
	AND p.is_active = true
	AND p.deleted_at IS NULL
LIMIT 1
`

	var policyID string
	var override int
	err = r.q().QueryRowContext(ctx, overrideQuery, companyID, leaveType, employeeID).Scan(&policyID, &override)
	if err == sql.ErrNoRows {
		return q, nil
	}
	if err != nil {
		return Quota{}, err
	}

	q.Total = override
	q.HasCustomPolicy = true
	q.CustomPolicyID = &policyID
	return q, nil
}

func (r *repository) ListLeaveTypeCodes(ctx context.Context, companyID string) ([]string, error) {
	query := `
SELECT code
FROM leave_types
WHERE company_id = $1 AND deleted_at IS NULL
ORDER BY code ASC
`

	rows, err := r.q().QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
