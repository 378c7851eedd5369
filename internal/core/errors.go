// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrWeakPassword        = errors.New("password does not meet policy")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrCodeExpired         = errors.New("verification code expired")
	ErrCodeInvalid         = errors.New("verification code invalid")
	ErrCodeAlreadyConsumed = errors.New("verification code already consumed")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrTokenExpired        = errors.New("token expired")
	ErrPermissionDenied    = errors.New("permission denied")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, "UNAUTHORIZED")
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "FORBIDDEN")
}

func TokenExpiredError() *AppError {
	return NewAppError(ErrTokenExpired, "token has expired", http.StatusUnauthorized, "TOKEN_EXPIRED")
}

func TokenInvalidError() *AppError {
	return NewAppError(ErrTokenInvalid, "token is invalid", http.StatusUnauthorized, "TOKEN_INVALID")
}

// kindTable maps every auth error kind to the status category the transport
// layer reports for it.
var kindTable = []struct {
	err    error
	status int
	code   string
}{
	{ErrDuplicateUsername, http.StatusConflict, "DUPLICATE_USERNAME"},
	{ErrDuplicateEmail, http.StatusConflict, "DUPLICATE_EMAIL"},
	{ErrWeakPassword, http.StatusUnprocessableEntity, "WEAK_PASSWORD"},
	{ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{ErrCodeExpired, http.StatusGone, "CODE_EXPIRED"},
	{ErrCodeInvalid, http.StatusBadRequest, "CODE_INVALID"},
	{ErrCodeAlreadyConsumed, http.StatusConflict, "CODE_ALREADY_CONSUMED"},
	{ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
	{ErrTokenInvalid, http.StatusUnauthorized, "TOKEN_INVALID"},
	{ErrPermissionDenied, http.StatusForbidden, "PERMISSION_DENIED"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
}

// ToAppError translates a service error into its transport category. Errors
// that match no known kind become a 500.
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	for _, k := range kindTable {
		if errors.Is(err, k.err) {
			return NewAppError(k.err, k.err.Error(), k.status, k.code)
		}
	}

	return NewAppError(
		err,
		"internal server error",
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
	)
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound,
		"NOT_FOUND",
	)
}
