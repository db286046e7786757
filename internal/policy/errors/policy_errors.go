package policyerrors

import (
	"net/http"

	"go-leave-ledger/internal/shared/apperror"
)

var (
	ErrInvalidCompanyID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid company id",
		http.StatusBadRequest,
	)
	ErrInvalidActorID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid actor id",
		http.StatusBadRequest,
	)
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid employee id",
		http.StatusBadRequest,
	)
	ErrPolicyNotFound = apperror.New(
		apperror.CodeNotFound,
		"custom leave policy not found",
		http.StatusNotFound,
	)
	ErrLeaveTypeNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave type not found",
		http.StatusNotFound,
	)
	ErrEmployeeNotInCompany = apperror.New(
		apperror.CodeInvalidInput,
		"employee does not belong to this company",
		http.StatusBadRequest,
	)
	ErrDuplicateActivePolicy = apperror.New(
		apperror.CodeConflict,
		"an active policy already covers this employee and leave type",
		http.StatusConflict,
	)
	ErrPolicyAlreadyInactive = apperror.New(
		apperror.CodeInvalidState,
		"policy is already inactive",
		http.StatusConflict,
	)
)
