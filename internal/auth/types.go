package auth

import (
	"context"

	"github.com/prn-tf/inkwell/internal/domain"
)

// =============================================================================
// Authentication Types
// =============================================================================

// AuthType represents the type of authentication used in a request.
type AuthType int

const (
	// AuthTypeUnknown indicates an unrecognized Authorization scheme.
	AuthTypeUnknown AuthType = iota

	// AuthTypeAnonymous indicates no credentials were presented.
	AuthTypeAnonymous

	// AuthTypeBearer indicates a bearer session token.
	AuthTypeBearer
)

// String returns the string representation of the auth type.
func (at AuthType) String() string {
	switch at {
	case AuthTypeAnonymous:
		return "anonymous"
	case AuthTypeBearer:
		return "bearer"
	default:
		return "unknown"
	}
}

// =============================================================================
// Context Types
// =============================================================================

// AuthContext contains authentication information attached to a request.
// This is set by the auth middleware after successful authentication.
type AuthContext struct {
	// User is the authenticated user.
	User *domain.User

	// Token is the bearer token the request presented.
	Token string

	// AuthType is the type of authentication used.
	AuthType AuthType
}

// authContextKey is the context key for AuthContext.
type authContextKey struct{}

// AuthContextKey is the key used to store AuthContext in request context.
var AuthContextKey = authContextKey{}

// WithAuthContext returns ctx carrying ac.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// GetAuthContext retrieves the AuthContext from a request context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(ctx context.Context) *domain.User {
	if ac := GetAuthContext(ctx); ac != nil {
		return ac.User
	}
	return nil
}

// RequireAuth is a helper to get auth context or return error.
func RequireAuth(ctx context.Context) (*AuthContext, error) {
	authCtx := GetAuthContext(ctx)
	if authCtx == nil || authCtx.User == nil {
		return nil, ErrUnauthenticated
	}
	return authCtx, nil
}
