package sequence

import (
	"context"
	"database/sql"
)

// CounterLedger numbers ledger entries; the per-company counter breaks
// transaction_date ties so "latest entry" is always unambiguous.
const CounterLedger = "ledger_entry"

//go:generate mockgen -source=sequence_repo.go -destination=mock/sequence_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	NextValue(ctx context.Context, companyID string, counterType string) (int64, error)
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

// NextValue increments and returns the per-company counter with an atomic
// UPSERT so concurrent transactions never observe the same value.
func (r *repository) NextValue(ctx context.Context, companyID string, counterType string) (int64, error) {
	query := `
		INSERT INTO company_counters (company_id, counter_type, last_value, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (company_id, counter_type) DO UPDATE
		SET last_value = company_counters.last_value + 1, updated_at = now()
		RETURNING last_value
	`

	var nextValue int64
	if err := r.queryRower().QueryRowContext(ctx, query, companyID, counterType).Scan(&nextValue); err != nil {
		return 0, err
	}

	return nextValue, nil
}

func (r *repository) queryRower() interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}
