package apperror

import "fmt"

// AppError is the one error type the HTTP layer knows how to translate.
// Services return sentinel instances and callers match them with errors.Is;
// Code is the machine-readable taxonomy entry, Message is what the client
// sees.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}
