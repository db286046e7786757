package ledgererrors

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
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid employee id",
		http.StatusBadRequest,
	)
	ErrInvalidRequestID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid leave request id",
		http.StatusBadRequest,
	)
	ErrInvalidPolicyID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid custom policy id",
		http.StatusBadRequest,
	)
	ErrInvalidTransactionType = apperror.New(
		apperror.CodeInvalidInput,
		"invalid ledger transaction type",
		http.StatusBadRequest,
	)
	ErrZeroAmountForUsage = apperror.New(
		apperror.CodeInvalidInput,
		"usage and restore entries require a non-zero amount",
		http.StatusBadRequest,
	)
	ErrLeaveTypeNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave type not found",
		http.StatusNotFound,
	)
	ErrEmployeeNotFound = apperror.New(
		apperror.CodeNotFound,
		"employee not found",
		http.StatusNotFound,
	)
	ErrDuplicateRequestEntry = apperror.New(
		apperror.CodeConflict,
		"a ledger entry of this type already references the leave request",
		http.StatusConflict,
	)
	ErrInsufficientBalance = apperror.New(
		apperror.CodeConflict,
		"insufficient leave balance",
		http.StatusConflict,
	)
	// ErrAppendOutsideTransaction guards the atomicity contract: a ledger
	// write may only run inside the caller's transaction so a status change
	// and its ledger entry commit or roll back together.
	ErrAppendOutsideTransaction = apperror.New(
		apperror.CodeConsistencyError,
		"ledger append attempted outside a transaction",
		http.StatusInternalServerError,
	)
)
