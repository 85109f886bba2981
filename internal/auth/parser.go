package auth

import (
	"net/http"
	"strings"
)

// =============================================================================
// Authorization Header Parsing
// =============================================================================

const (
	// AuthorizationHeader carries the bearer token.
	AuthorizationHeader = "Authorization"

	// BearerScheme is the only accepted scheme.
	BearerScheme = "Bearer"

	// SessionCookie optionally carries the token for browser clients.
	SessionCookie = "inkwell_session"
)

// GetAuthType determines the authentication type from a request.
func GetAuthType(r *http.Request) AuthType {
	if h := r.Header.Get(AuthorizationHeader); h != "" {
		if _, ok := parseBearer(h); ok {
			return AuthTypeBearer
		}
		return AuthTypeUnknown
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return AuthTypeBearer
	}
	return AuthTypeAnonymous
}

// ExtractToken returns the session token from the Authorization header or the
// session cookie. The header wins when both are present.
func ExtractToken(r *http.Request) (string, error) {
	if h := r.Header.Get(AuthorizationHeader); h != "" {
		token, ok := parseBearer(h)
		if !ok {
			return "", ErrInvalidAuthorizationHeader
		}
		return token, nil
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", ErrUnauthenticated
}

// parseBearer splits "Bearer <token>". The scheme is case-insensitive.
func parseBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
