package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/inkwell/internal/auth"
	"github.com/prn-tf/inkwell/internal/cache/memory"
	"github.com/prn-tf/inkwell/internal/config"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/lock"
	"github.com/prn-tf/inkwell/internal/metrics"
	"github.com/prn-tf/inkwell/internal/repository"
	"github.com/prn-tf/inkwell/internal/service"
	memstore "github.com/prn-tf/inkwell/internal/store/memory"
)

type testAPI struct {
	handler http.Handler
	users   *service.UserService
	repos   *repository.Repositories
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestAPI(t *testing.T, checks map[string]Checker) *testAPI {
	t.Helper()
	logger := zerolog.Nop()
	ctx := context.Background()

	driver := memstore.NewDriver(logger)
	catalog := domain.NewCatalog()
	require.NoError(t, repository.EnsureCollections(ctx, driver, catalog, logger))
	repos := repository.NewRepositories(repository.NewBackend(driver, catalog, repository.DefaultSettings(), logger))

	cache := memory.NewCache()
	t.Cleanup(cache.Stop)
	locker := lock.NewMemoryLocker()
	m := metrics.New()

	users := service.NewUserService(repos.User, cache, locker, m, config.AuthConfig{
		SessionTTL:        time.Hour,
		BcryptCost:        bcrypt.MinCost,
		MinPasswordLength: 8,
		LockTTL:           time.Second,
	}, logger)
	categories := service.NewCategoryService(repos.Category, logger)
	posts := service.NewPostService(repos.Post, repos.Category, cache, logger)
	comments := service.NewCommentService(repos.Comment, repos.Post, logger)
	likes := service.NewLikeService(repos.Like, repos.Post, locker, time.Second, m, logger)

	if checks == nil {
		checks = map[string]Checker{"store": driver}
	}
	rt := NewRouter(RouterConfig{
		UserHandler:     NewUserHandler(users, logger),
		CategoryHandler: NewCategoryHandler(categories, posts, logger),
		PostHandler:     NewPostHandler(posts, comments, likes, logger),
		CommentHandler:  NewCommentHandler(comments, logger),
		MediaHandler:    NewMediaHandler(nil, logger),
		HealthHandler:   NewHealthHandler(checks, logger),
		MetricsHandler:  m.Handler(),
		Instrument:      m.Middleware,
		AuthMiddleware:  auth.Middleware(users, auth.DefaultConfig(), logger),
		RequestTimeout:  5 * time.Second,
		MaxBodySize:     1 << 10,
		Logger:          logger,
	})
	return &testAPI{handler: rt.Handler(), users: users, repos: repos}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

// signUp registers and logs in, optionally granting a role, and returns the token.
func (a *testAPI) signUp(t *testing.T, email string, role domain.Role) (string, domain.ID) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse", "firstName": "Grace", "lastName": "Hopper",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))

	if role != "" && role != domain.RoleUser {
		_, err := a.users.SetRole(context.Background(), user.ID, role)
		require.NoError(t, err)
	}

	w = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	return login.AccessToken, user.ID
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error APIError `json:"error"`
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"not found", domain.NotFound(domain.EntityPost, "missing"), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", domain.Conflict(domain.EntityUser, "email"), http.StatusConflict, "CONFLICT"},
		{"validation", domain.Invalid(domain.EntityPost, domain.Violation{Field: "title", Message: "required"}), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"session", service.ErrInvalidSession, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"inactive", domain.ErrUserInactive, http.StatusForbidden, "FORBIDDEN"},
		{"busy", fmt.Errorf("like: %w", repository.ErrLockNotAcquired), http.StatusTooManyRequests, "BUSY"},
		{"store down", fmt.Errorf("%w: dial", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"cache down", repository.ErrCacheUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
		{"draft", service.ErrPostNotPublic, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusOf(tt.err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), zerolog.Nop(), errors.New("pq: secret table name"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody[errorBody](t, w)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=2&limit=5&search=go&searchFields=title,tags&sort=-createdAt,title:asc,slug", nil)
	p, err := parsePagination(r)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 5, p.Limit)
	assert.Equal(t, "go", p.Search)
	assert.Equal(t, []string{"title", "tags"}, p.SearchFields)
	require.Len(t, p.Sort, 3)
	assert.True(t, p.Sort[0].Descending())
	assert.Equal(t, "createdAt", p.Sort[0].Field)
	assert.Equal(t, "title", p.Sort[1].Field)
	assert.False(t, p.Sort[1].Descending())
	assert.Equal(t, "slug", p.Sort[2].Field)

	_, err = parsePagination(httptest.NewRequest(http.MethodGet, "/?limit=ten", nil))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "limit", domain.FieldOf(err))
}

func TestAPI_AuthFlow(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "ada@example.com", "password": "correct-horse", "firstName": "Ada", "lastName": "Lovelace",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "passwordHash")
	assert.NotContains(t, w.Body.String(), "correct-horse")

	w = api.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "ADA@example.com", "password": "correct-horse", "firstName": "Ada", "lastName": "Lovelace",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong-horse"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decodeBody[struct {
		AccessToken string       `json:"accessToken"`
		TokenType   string       `json:"tokenType"`
		User        UserResponse `json:"user"`
	}](t, w)
	require.NotEmpty(t, login.AccessToken)
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, "ada@example.com", login.User.Email)

	w = api.do(t, http.MethodGet, "/api/v1/auth/profile", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, login.User.ID, decodeBody[UserResponse](t, w).ID)

	w = api.do(t, http.MethodGet, "/api/v1/auth/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/auth/logout", login.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/auth/profile", login.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_RequestValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"unknown field", `{"email":"a@b.co","password":"correct-horse","nickname":"x"}`, "body"},
		{"trailing data", `{"email":"a@b.co","password":"correct-horse"}{}`, "body"},
		{"too large", `{"email":"` + strings.Repeat("a", 2048) + `"}`, "body"},
		{"short password", map[string]string{"email": "a@b.co", "password": "short"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/v1/auth/register", "", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := decodeBody[errorBody](t, w)
			assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
			if tt.field != "" {
				assert.Equal(t, tt.field, body.Error.Field)
			}
		})
	}
}

func TestAPI_UserAccess(t *testing.T) {
	api := newTestAPI(t, nil)
	adminToken, _ := api.signUp(t, "admin@example.com", domain.RoleAdmin)
	readerToken, readerID := api.signUp(t, "reader@example.com", domain.RoleUser)
	_, otherID := api.signUp(t, "other@example.com", domain.RoleUser)

	w := api.do(t, http.MethodGet, "/api/v1/users", readerToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/users?limit=2", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = api.do(t, http.MethodPatch, "/api/v1/users/"+otherID.String(), readerToken, map[string]string{"bio": "hi"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPatch, "/api/v1/users/"+readerID.String(), readerToken, map[string]string{"bio": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi", decodeBody[UserResponse](t, w).Bio)

	w = api.do(t, http.MethodPut, "/api/v1/users/"+otherID.String()+"/role", adminToken, map[string]string{"role": "AUTHOR"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.RoleAuthor, decodeBody[UserResponse](t, w).Role)

	// a deactivated account loses its sessions
	w = api.do(t, http.MethodDelete, "/api/v1/users/"+readerID.String(), adminToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(t, http.MethodGet, "/api/v1/auth/profile", readerToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPI_PostLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)
	adminToken, _ := api.signUp(t, "admin@example.com", domain.RoleAdmin)
	authorToken, authorID := api.signUp(t, "author@example.com", domain.RoleAuthor)
	readerToken, _ := api.signUp(t, "reader@example.com", domain.RoleUser)

	w := api.do(t, http.MethodPost, "/api/v1/categories", adminToken, map[string]any{"name": "Go Tips"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	category := decodeBody[domain.Category](t, w)
	assert.Equal(t, "go-tips", category.Slug)

	w = api.do(t, http.MethodPost, "/api/v1/posts", readerToken, map[string]any{"title": "Nope", "content": "x"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/posts", authorToken, map[string]any{
		"title": "Hello World", "content": "first post", "categories": []string{category.ID.String()}, "tags": []string{"go"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	post := decodeBody[domain.Post](t, w)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, domain.PostStatusDraft, post.Status)
	assert.Equal(t, authorID, post.Author.ID)

	// drafts are hidden from anonymous readers
	w = api.do(t, http.MethodGet, "/api/v1/posts/slug/hello-world", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = api.do(t, http.MethodGet, "/api/v1/posts/"+post.ID.String(), "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = api.do(t, http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), decodeBody[struct {
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}](t, w).Pagination.Total)
	for _, path := range []string{
		"/api/v1/posts/author/" + authorID.String(),
		"/api/v1/posts/tag/go",
		"/api/v1/categories/" + category.ID.String() + "/posts",
	} {
		w = api.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, decodeBody[[]domain.Post](t, w), path)

		w = api.do(t, http.MethodGet, path, readerToken, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, decodeBody[[]domain.Post](t, w), path)

		w = api.do(t, http.MethodGet, path, authorToken, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Len(t, decodeBody[[]domain.Post](t, w), 1, "owners see their drafts on %s", path)
	}
	w = api.do(t, http.MethodGet, "/api/v1/posts?status=DRAFT", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "hello-world")

	w = api.do(t, http.MethodPost, "/api/v1/posts/"+post.ID.String()+"/publish", authorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	published := decodeBody[domain.Post](t, w)
	require.NotNil(t, published.PublishedAt)

	// one view per reader per window
	for i := 0; i < 3; i++ {
		w = api.do(t, http.MethodGet, "/api/v1/posts/slug/hello-world", readerToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, int64(1), decodeBody[domain.Post](t, w).ViewCount)

	w = api.do(t, http.MethodGet, "/api/v1/posts?status=PUBLISHED&tag=go", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello-world")
	assert.Contains(t, w.Body.String(), "Grace")
	w = api.do(t, http.MethodGet, "/api/v1/posts/tag/go", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]domain.Post](t, w), 1)

	w = api.do(t, http.MethodGet, "/api/v1/categories/"+category.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decodeBody[domain.Category](t, w).PostCount)

	// only the owner or an admin edits
	w = api.do(t, http.MethodPatch, "/api/v1/posts/"+post.ID.String(), readerToken, map[string]string{"title": "Hijack"})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = api.do(t, http.MethodPatch, "/api/v1/posts/"+post.ID.String(), adminToken, map[string]string{"excerpt": "short"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "short", decodeBody[domain.Post](t, w).Excerpt)

	// comments and likes
	w = api.do(t, http.MethodPost, "/api/v1/posts/"+post.ID.String()+"/comments", readerToken, map[string]string{"content": "Nice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	comment := decodeBody[domain.Comment](t, w)

	w = api.do(t, http.MethodPost, "/api/v1/posts/"+post.ID.String()+"/comments", authorToken, map[string]string{
		"content": "Thanks", "parent": comment.ID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/comments/"+comment.ID.String()+"/replies", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Thanks")

	w = api.do(t, http.MethodPatch, "/api/v1/comments/"+comment.ID.String(), authorToken, map[string]string{"content": "edited"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/posts/"+post.ID.String()+"/like", readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.LikeState{Liked: true, LikeCount: 1}, decodeBody[service.LikeState](t, w))

	w = api.do(t, http.MethodPost, "/api/v1/posts/"+post.ID.String()+"/like", readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.LikeState{Liked: false, LikeCount: 0}, decodeBody[service.LikeState](t, w))

	w = api.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID.String()+"/like", readerToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID.String(), authorToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(t, http.MethodGet, "/api/v1/posts/"+post.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_CategoryListingShapes(t *testing.T) {
	api := newTestAPI(t, nil)
	adminToken, _ := api.signUp(t, "admin@example.com", domain.RoleAdmin)

	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		w := api.do(t, http.MethodPost, "/api/v1/categories", adminToken, map[string]any{"name": name})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := api.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]domain.Category](t, w), 3)

	w = api.do(t, http.MethodGet, "/api/v1/categories?page=1&limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeBody[struct {
		Data       []domain.Category `json:"data"`
		Pagination struct {
			Total   int64 `json:"total"`
			HasNext bool  `json:"hasNext"`
		} `json:"pagination"`
	}](t, w)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.True(t, page.Pagination.HasNext)

	w = api.do(t, http.MethodPost, "/api/v1/categories", "", map[string]any{"name": "Delta"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_Health(t *testing.T) {
	api := newTestAPI(t, map[string]Checker{
		"store": checkFunc(func(context.Context) error { return nil }),
	})
	w := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"ok"`)

	api = newTestAPI(t, map[string]Checker{
		"store": checkFunc(func(context.Context) error { return nil }),
		"redis": checkFunc(func(context.Context) error { return repository.ErrCacheUnavailable }),
	})
	w = api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}

func TestAPI_MetricsAndFallbacks(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.signUp(t, "m@example.com", domain.RoleUser)

	w := api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "inkwell_")

	w = api.do(t, http.MethodGet, "/api/v1/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody[errorBody](t, w).Error.Code)

	w = api.do(t, http.MethodPost, "/api/v1/media/uploads", token, map[string]string{"kind": "avatars", "contentType": "image/png"})
	require.Equal(t, http.StatusNotImplemented, w.Code)
}
