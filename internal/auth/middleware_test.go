package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/service"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer a b", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := parseBearer(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestMiddleware(t *testing.T) {
	admin := &domain.User{Base: domain.Base{ID: "u1"}, Role: domain.RoleAdmin}

	authn := new(MockAuthenticator)
	authn.On("Authenticate", mock.Anything, "good").Return(admin, nil)
	authn.On("Authenticate", mock.Anything, "stale").Return(nil, service.ErrInvalidSession)
	authn.On("Authenticate", mock.Anything, "disabled").Return(nil, domain.ErrUserInactive)

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := CurrentUser(r.Context()); u != nil {
			_, _ = w.Write([]byte(u.ID))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})
	handler := Middleware(authn, DefaultConfig(), zerolog.Nop())(echo)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{"anonymous", func(r *http.Request) {}, http.StatusOK, "anonymous"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK, "u1"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good"}) }, http.StatusOK, "u1"},
		{"stale token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer stale") }, http.StatusUnauthorized, "InvalidToken"},
		{"disabled", func(r *http.Request) { r.Header.Set("Authorization", "Bearer disabled") }, http.StatusForbidden, "AccountDisabled"},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic xyz") }, http.StatusUnauthorized, "AuthorizationHeaderMalformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
			tt.setup(r)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			require.Equal(t, tt.wantStatus, w.Code)
			require.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestMiddleware_SkipPaths(t *testing.T) {
	authn := new(MockAuthenticator)
	handler := Middleware(authn, Config{SkipPaths: []string{"/health"}}, zerolog.Nop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	authn.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	guarded := RequireRole(domain.RoleAuthor, domain.RoleAdmin)(ok)

	tests := []struct {
		name string
		user *domain.User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"reader", &domain.User{Role: domain.RoleUser}, http.StatusForbidden},
		{"author", &domain.User{Role: domain.RoleAuthor}, http.StatusOK},
		{"admin", &domain.User{Role: domain.RoleAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.user != nil {
				r = r.WithContext(WithAuthContext(r.Context(), &AuthContext{User: tt.user, AuthType: AuthTypeBearer}))
			}
			w := httptest.NewRecorder()
			guarded.ServeHTTP(w, r)
			require.Equal(t, tt.want, w.Code)
		})
	}
}
