package reconcile_test

import (
	"context"
	"testing"
	"time"

	"go-leave-ledger/internal/reconcile"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestReconcileRepository_ListDecided(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()

	openGorm := func(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
		t.Helper()
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
		assert.NoError(t, err)
		return gormDB, mock
	}

	t.Run("filters out soft-deleted requests", func(t *testing.T) {
		gormDB, mock := openGorm(t)

		requestID := uuid.New()
		employeeID := uuid.New()
		// Table() bypasses gorm's model-driven soft-delete scoping, so the
		// query itself must carry the filter.
		mock.ExpectQuery(`FROM "leave_requests" WHERE .+status IN .+deleted_at IS NULL.+ORDER BY created_at ASC`).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "employee_id", "leave_type", "duration", "status", "decided_at"},
			).AddRow(requestID.String(), employeeID.String(), "ANNUAL", 3, "APPROVED", time.Now()))

		repo := reconcile.NewRepository(gormDB)
		requests, err := repo.ListDecided(ctx, companyID, "")

		assert.NoError(t, err)
		assert.Len(t, requests, 1)
		assert.Equal(t, requestID, requests[0].ID)
		assert.Equal(t, "APPROVED", requests[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("narrows to one employee when given", func(t *testing.T) {
		gormDB, mock := openGorm(t)

		employeeID := uuid.New().String()
		mock.ExpectQuery(`FROM "leave_requests" WHERE .+deleted_at IS NULL.+employee_id`).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "employee_id", "leave_type", "duration", "status", "decided_at"},
			))

		repo := reconcile.NewRepository(gormDB)
		requests, err := repo.ListDecided(ctx, companyID, employeeID)

		assert.NoError(t, err)
		assert.Empty(t, requests)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
