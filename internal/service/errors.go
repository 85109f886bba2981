// Package service provides business logic services for Inkwell.
package service

import (
	"errors"
	"fmt"

	"github.com/prn-tf/inkwell/internal/domain"
)

// Common service errors. Each wraps a domain kind so transports map them
// without knowing the service.
var (
	// User errors
	ErrEmailTaken      = fmt.Errorf("%w: email already registered", domain.ErrConflict)
	ErrInvalidPassword = fmt.Errorf("%w: password too short", domain.ErrValidation)
	ErrInvalidEmail    = fmt.Errorf("%w: invalid email format", domain.ErrValidation)
	ErrWrongPassword   = fmt.Errorf("%w: current password is incorrect", domain.ErrValidation)

	// Session errors
	ErrInvalidSession = errors.New("invalid or expired session")

	// Content errors
	ErrParentMismatch = fmt.Errorf("%w: parent comment belongs to another post", domain.ErrValidation)
	ErrPostNotPublic  = fmt.Errorf("%w: post is not published", domain.ErrNotFound)
	ErrInvalidStatus  = fmt.Errorf("%w: unknown post status", domain.ErrValidation)
)
