package leavetypeerrors

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
	ErrLeaveTypeNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave type not found",
		http.StatusNotFound,
	)
	ErrCodeAlreadyExists = apperror.New(
		apperror.CodeConflict,
		"a leave type with this code already exists",
		http.StatusConflict,
	)
	ErrCodeReferenced = apperror.New(
		apperror.CodeConflict,
		"leave type is referenced by ledger entries and cannot be removed",
		http.StatusConflict,
	)
)
