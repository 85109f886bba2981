// Package auth authenticates API requests with bearer session tokens and guards
// routes by role.
package auth

import (
	"errors"
	"net/http"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/service"
)

// Authentication errors.
var (
	// ErrInvalidAuthorizationHeader indicates the Authorization header is malformed.
	ErrInvalidAuthorizationHeader = errors.New("invalid authorization header")

	// ErrUnauthenticated indicates the route needs a session and none was presented.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInsufficientRole indicates the user's role does not allow the route.
	ErrInsufficientRole = errors.New("insufficient role")
)

// ErrorCode is the machine-readable code of an auth failure.
type ErrorCode string

const (
	ErrorCodeUnauthenticated    ErrorCode = "Unauthenticated"
	ErrorCodeInvalidToken       ErrorCode = "InvalidToken"
	ErrorCodeMalformedHeader    ErrorCode = "AuthorizationHeaderMalformed"
	ErrorCodeAccountDisabled    ErrorCode = "AccountDisabled"
	ErrorCodeForbidden          ErrorCode = "Forbidden"
	ErrorCodeServiceUnavailable ErrorCode = "ServiceUnavailable"
)

// AuthError represents an authentication error with its HTTP status.
type AuthError struct {
	// Code is the error code.
	Code ErrorCode `json:"code"`

	// Message is the error message.
	Message string `json:"message"`

	// HTTPStatus is the HTTP status code.
	HTTPStatus int `json:"-"`
}

func (e *AuthError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewAuthError creates a new AuthError from a standard error.
func NewAuthError(err error) *AuthError {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return &AuthError{Code: ErrorCodeUnauthenticated, Message: err.Error(), HTTPStatus: http.StatusUnauthorized}

	case errors.Is(err, service.ErrInvalidSession):
		return &AuthError{Code: ErrorCodeInvalidToken, Message: err.Error(), HTTPStatus: http.StatusUnauthorized}

	case errors.Is(err, ErrInvalidAuthorizationHeader):
		return &AuthError{Code: ErrorCodeMalformedHeader, Message: err.Error(), HTTPStatus: http.StatusUnauthorized}

	case errors.Is(err, domain.ErrUserInactive):
		return &AuthError{Code: ErrorCodeAccountDisabled, Message: err.Error(), HTTPStatus: http.StatusForbidden}

	case errors.Is(err, ErrInsufficientRole), errors.Is(err, domain.ErrForbidden):
		return &AuthError{Code: ErrorCodeForbidden, Message: err.Error(), HTTPStatus: http.StatusForbidden}

	default:
		return &AuthError{Code: ErrorCodeServiceUnavailable, Message: "authentication unavailable", HTTPStatus: http.StatusServiceUnavailable}
	}
}
