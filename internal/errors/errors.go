package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ===========================================================================
// Application errors
// Sentinels are matched with errors.Is and mapped to HTTP status codes.
// ===========================================================================

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal server error")
	ErrTimeout        = errors.New("timeout")

	// ErrExternal wraps failures of a third-party API (SMTP, OVH, Graph, LLM...)
	ErrExternal = errors.New("external service error")

	// ErrNotConfigured means a tenant integration section is missing or disabled
	ErrNotConfigured = errors.New("integration not configured")

	// ErrAlreadyConverted is returned when a quote already produced an invoice
	ErrAlreadyConverted = errors.New("quote already converted")

	// Auth errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// ===========================================================================
// AppError
// ===========================================================================

// AppError carries a user facing message next to the wrapped sentinel
type AppError struct {
	Err        error
	Message    string
	Code       string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	// the cause of an external failure never reaches Message, logs still need it
	if errors.Is(e.Err, ErrExternal) {
		return e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError from a sentinel error
func New(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: StatusCode(err),
		Code:       ErrorCode(err),
	}
}

// Newf is New with a formatted message
func Newf(err error, format string, args ...any) *AppError {
	return New(err, fmt.Sprintf(format, args...))
}

// NotFound builds the French "<entity> non trouvé" message shown to users
func NotFound(entity string) *AppError {
	return New(ErrNotFound, entity+" non trouvé")
}

// Invalid builds an ErrInvalidInput with a user facing message
func Invalid(message string) *AppError {
	return New(ErrInvalidInput, message)
}

// External wraps a third-party failure. The cause stays in the chain for
// logs; the user facing message only names the service.
func External(service string, cause error) error {
	return &AppError{
		Err:        fmt.Errorf("%s: %w: %w", service, ErrExternal, cause),
		Message:    fmt.Sprintf("Le service %s est indisponible, réessayez plus tard.", service),
		Code:       ErrorCode(ErrExternal),
		StatusCode: StatusCode(ErrExternal),
	}
}

// Wrap adds context while keeping the chain intact
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Message returns the user facing message of err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// ===========================================================================
// Error mapping
// ===========================================================================

// StatusCode returns the HTTP status code for err
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateEntry),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrAlreadyConverted):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the API error code for err
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrNotConfigured):
		return "NOT_CONFIGURED"
	case errors.Is(err, ErrDuplicateEntry):
		return "DUPLICATE_ENTRY"
	case errors.Is(err, ErrAlreadyConverted):
		return "ALREADY_CONVERTED"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrExternal):
		return "EXTERNAL_ERROR"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrInvalidToken):
		return "INVALID_TOKEN"
	default:
		return "INTERNAL_ERROR"
	}
}

// Is helper for errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}
