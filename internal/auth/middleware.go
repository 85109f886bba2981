package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/domain"
)

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Config contains configuration for the auth middleware.
type Config struct {
	// AllowAnonymous lets requests without credentials through with no AuthContext.
	// Routes that need a user add RequireUser.
	AllowAnonymous bool

	// SkipPaths are paths that skip authentication.
	SkipPaths []string
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{
		AllowAnonymous: true,
		SkipPaths:      []string{"/health", "/metrics"},
	}
}

// Middleware creates an authentication middleware. Presented credentials are
// always verified; a bad token fails the request even on public routes.
func Middleware(authn Authenticator, config Config, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			switch GetAuthType(r) {
			case AuthTypeAnonymous:
				if config.AllowAnonymous {
					next.ServeHTTP(w, r)
					return
				}
				writeAuthError(w, ErrUnauthenticated)
				return

			case AuthTypeBearer:
				token, err := ExtractToken(r)
				if err != nil {
					writeAuthError(w, err)
					return
				}
				user, err := authn.Authenticate(r.Context(), token)
				if err != nil {
					logger.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer authentication failed")
					writeAuthError(w, err)
					return
				}
				r = r.WithContext(WithAuthContext(r.Context(), &AuthContext{
					User:     user,
					Token:    token,
					AuthType: AuthTypeBearer,
				}))

			default:
				writeAuthError(w, ErrInvalidAuthorizationHeader)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests without an authenticated user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := RequireAuth(r.Context()); err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose user holds none of roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := RequireAuth(r.Context())
			if err != nil {
				writeAuthError(w, err)
				return
			}
			if !ac.User.HasRole(roles...) {
				writeAuthError(w, ErrInsufficientRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthError writes a JSON error response.
func writeAuthError(w http.ResponseWriter, err error) {
	authErr := NewAuthError(err)

	w.Header().Set("Content-Type", "application/json")
	if authErr.HTTPStatus == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", BearerScheme)
	}
	w.WriteHeader(authErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]*AuthError{"error": authErr})
}
