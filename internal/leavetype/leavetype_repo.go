package leavetype

import (
	"context"

	"go-leave-ledger/internal/tenant"

	"gorm.io/gorm"
)

//go:generate mockgen -source=leavetype_repo.go -destination=mock/leavetype_repo_mock.go -package=mock
type Repository interface {
	Create(ctx context.Context, lt *LeaveType) error
	FindAllByCompany(ctx context.Context, companyID string) ([]LeaveType, error)
	FindByCode(ctx context.Context, companyID, code string) (*LeaveType, error)
	Update(ctx context.Context, lt *LeaveType) error
	Delete(ctx context.Context, companyID, code string) error
	CodeReferenced(ctx context.Context, companyID, code string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, lt *LeaveType) error {
	return r.db.WithContext(ctx).Create(lt).Error
}

func (r *repository) FindAllByCompany(ctx context.Context, companyID string) ([]LeaveType, error) {
	var types []LeaveType
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Order("code ASC").
		Find(&types).Error
	return types, err
}

func (r *repository) FindByCode(ctx context.Context, companyID, code string) (*LeaveType, error) {
	var lt LeaveType
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		First(&lt, "code = ?", code).Error
	return &lt, err
}

func (r *repository) Update(ctx context.Context, lt *LeaveType) error {
	return r.db.WithContext(ctx).Save(lt).Error
}

func (r *repository) Delete(ctx context.Context, companyID, code string) error {
	return r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Delete(&LeaveType{}, "code = ?", code).Error
}

func (r *repository) CodeReferenced(ctx context.Context, companyID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("leave_ledger_entries").
		Where("company_id = ?", companyID).
		Where("leave_type = ?", code).
		Count(&count).Error
	return count > 0, err
}
